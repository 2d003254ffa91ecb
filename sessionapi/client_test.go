package sessionapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coleapp/session-service/autherrors"
	"github.com/coleapp/session-service/sessionapi"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	OperationName string                     `json:"operationName"`
	Query         string                     `json:"query"`
	Variables     map[string]json.RawMessage `json:"variables"`

	authorization string
	tenantID      string
}

// newBackend spins up a fake session endpoint that records the last request
// and replies with the given handler.
func newBackend(t *testing.T, reply func(w http.ResponseWriter, req *recordedRequest)) (*httptest.Server, *recordedRequest) {
	t.Helper()

	last := &recordedRequest{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(last))
		last.authorization = r.Header.Get("Authorization")
		last.tenantID = r.Header.Get("X-Tenant-Id")
		reply(w, last)
	}))
	t.Cleanup(ts.Close)
	return ts, last
}

func replyJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestLoginParsesPayload(t *testing.T) {
	ts, last := newBackend(t, func(w http.ResponseWriter, _ *recordedRequest) {
		replyJSON(w, http.StatusOK, `{"data":{"login":{"accessToken":"jwt-1","user":{"id":"u1","email":"admin@test.com","role":"admin","tenantId":"default"}}}}`)
	})

	client := sessionapi.NewClient(ts.URL)
	result, err := client.Login(context.Background(), "admin@test.com", "Admin123", "")
	require.NoError(t, err)
	require.Equal(t, "jwt-1", result.AccessToken)
	require.Equal(t, "admin@test.com", result.User.Email)

	require.Equal(t, "Login", last.OperationName)
	require.Equal(t, "default", last.tenantID, "default tenant header sent when none given")

	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	require.NoError(t, json.Unmarshal(last.Variables["input"], &input))
	require.Equal(t, "admin@test.com", input.Email)
	require.Equal(t, "Admin123", input.Password)
}

func TestLoginSendsExplicitTenantHeader(t *testing.T) {
	ts, last := newBackend(t, func(w http.ResponseWriter, _ *recordedRequest) {
		replyJSON(w, http.StatusOK, `{"data":{"login":{"accessToken":"jwt-1","user":{"id":"u1"}}}}`)
	})

	client := sessionapi.NewClient(ts.URL, sessionapi.WithDefaultTenantID("greenfield-high"))
	_, err := client.Login(context.Background(), "a@b.c", "Password1", "lakeside-academy")
	require.NoError(t, err)
	require.Equal(t, "lakeside-academy", last.tenantID)
}

func TestStructuredErrorBecomesTaggedError(t *testing.T) {
	ts, _ := newBackend(t, func(w http.ResponseWriter, _ *recordedRequest) {
		replyJSON(w, http.StatusOK, `{"errors":[{"message":"invalid email or password","extensions":{"code":"INVALID_CREDENTIALS"}}]}`)
	})

	client := sessionapi.NewClient(ts.URL)
	_, err := client.Login(context.Background(), "a@b.c", "bad", "")
	require.Error(t, err)
	require.True(t, autherrors.IsKind(err, autherrors.KindInvalidCredentials))
	require.Equal(t, "invalid email or password", autherrors.DisplayMessage(err))
}

func TestWhoAmISendsBearerToken(t *testing.T) {
	ts, last := newBackend(t, func(w http.ResponseWriter, _ *recordedRequest) {
		replyJSON(w, http.StatusOK, `{"data":{"me":{"id":"u1","email":"admin@test.com","role":"admin","tenantId":"default"}}}`)
	})

	client := sessionapi.NewClient(ts.URL)
	me, err := client.WhoAmI(context.Background(), "jwt-1", "default")
	require.NoError(t, err)
	require.Equal(t, "admin@test.com", me.Email)
	require.Equal(t, "Bearer jwt-1", last.authorization)
	require.Equal(t, "Me", last.OperationName)
}

func TestUnauthorizedStatusWithoutBody(t *testing.T) {
	ts, _ := newBackend(t, func(w http.ResponseWriter, _ *recordedRequest) {
		replyJSON(w, http.StatusUnauthorized, `{}`)
	})

	client := sessionapi.NewClient(ts.URL)
	_, err := client.WhoAmI(context.Background(), "stale-jwt", "")
	require.Error(t, err)
	require.True(t, autherrors.IsUnauthenticated(err))
}

func TestServerErrorStatus(t *testing.T) {
	ts, _ := newBackend(t, func(w http.ResponseWriter, _ *recordedRequest) {
		replyJSON(w, http.StatusBadGateway, `{}`)
	})

	client := sessionapi.NewClient(ts.URL)
	_, err := client.WhoAmI(context.Background(), "jwt-1", "")
	require.Error(t, err)
	require.True(t, autherrors.IsKind(err, autherrors.KindInternal))
}

func TestUnreachableServerIsNetworkUnavailable(t *testing.T) {
	client := sessionapi.NewClient("http://127.0.0.1:1")
	_, err := client.Login(context.Background(), "a@b.c", "Password1", "")
	require.Error(t, err)
	require.True(t, autherrors.IsKind(err, autherrors.KindNetworkUnavailable))
	require.Equal(t, "could not reach the server", autherrors.DisplayMessage(err))
}

func TestSlowServerIsNetworkUnavailable(t *testing.T) {
	ts, _ := newBackend(t, func(w http.ResponseWriter, _ *recordedRequest) {
		time.Sleep(200 * time.Millisecond)
		replyJSON(w, http.StatusOK, `{"data":{}}`)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := sessionapi.NewClient(ts.URL)
	_, err := client.Login(ctx, "a@b.c", "Password1", "")
	require.Error(t, err)
	require.True(t, autherrors.IsKind(err, autherrors.KindNetworkUnavailable))
	require.Equal(t, "the server took too long to respond", autherrors.DisplayMessage(err))
}

func TestRegisterPassesInput(t *testing.T) {
	ts, last := newBackend(t, func(w http.ResponseWriter, _ *recordedRequest) {
		replyJSON(w, http.StatusOK, `{"data":{"register":{"accessToken":"jwt-2","user":{"id":"u2","email":"new@test.com","role":"student"}}}}`)
	})

	client := sessionapi.NewClient(ts.URL)
	result, err := client.Register(context.Background(), sessionapi.RegisterInput{
		Email:     "new@test.com",
		Password:  "Password1",
		FirstName: "New",
		LastName:  "User",
		Role:      "student",
		TenantID:  "greenfield-high",
	})
	require.NoError(t, err)
	require.Equal(t, "jwt-2", result.AccessToken)

	require.Equal(t, "Register", last.OperationName)
	require.Equal(t, "greenfield-high", last.tenantID)

	var input sessionapi.RegisterInput
	require.NoError(t, json.Unmarshal(last.Variables["input"], &input))
	require.Equal(t, "new@test.com", input.Email)
	require.Equal(t, "student", input.Role)
}

func TestGarbageResponseBody(t *testing.T) {
	ts, _ := newBackend(t, func(w http.ResponseWriter, _ *recordedRequest) {
		replyJSON(w, http.StatusOK, `<html>proxy error</html>`)
	})

	client := sessionapi.NewClient(ts.URL)
	_, err := client.Login(context.Background(), "a@b.c", "Password1", "")
	require.Error(t, err)
	require.True(t, autherrors.IsKind(err, autherrors.KindInternal))
}
