package sessionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/coleapp/session-service/autherrors"
	"github.com/coleapp/session-service/users"
	"github.com/pkg/errors"
)

const defaultHTTPTimeout = 30 * time.Second

// Queries sent to the backend. The selection sets match what the web and
// mobile apps request.
const (
	loginQuery = `mutation Login($input: LoginInput!) {
  login(input: $input) { accessToken user { id email firstName lastName role tenantId externalIdentityId } }
}`
	registerQuery = `mutation Register($input: RegisterInput!) {
  register(input: $input) { accessToken user { id email firstName lastName role tenantId externalIdentityId } }
}`
	meQuery = `query Me {
  me { id email firstName lastName role tenantId externalIdentityId }
}`
)

var _ Service = (*Client)(nil)

// Client talks GraphQL-over-HTTP to the backend session endpoint.
type Client struct {
	endpoint        string
	httpClient      *http.Client
	defaultTenantID string
}

type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithDefaultTenantID sets the tenant sent when a call names none.
func WithDefaultTenantID(tenantID string) ClientOption {
	return func(c *Client) {
		if tenantID != "" {
			c.defaultTenantID = tenantID
		}
	}
}

func NewClient(endpoint string, options ...ClientOption) *Client {
	c := &Client{
		endpoint:        endpoint,
		httpClient:      &http.Client{Timeout: defaultHTTPTimeout},
		defaultTenantID: "default",
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *Client) Login(ctx context.Context, email, password, tenantID string) (*Result, error) {
	variables := map[string]interface{}{
		"input": map[string]string{"email": email, "password": password},
	}

	var payload struct {
		Login authPayload `json:"login"`
	}
	if err := c.do(ctx, "Login", loginQuery, variables, "", tenantID, &payload); err != nil {
		return nil, err
	}
	return payload.Login.result(), nil
}

func (c *Client) Register(ctx context.Context, input RegisterInput) (*Result, error) {
	variables := map[string]interface{}{"input": input}

	var payload struct {
		Register authPayload `json:"register"`
	}
	if err := c.do(ctx, "Register", registerQuery, variables, "", input.TenantID, &payload); err != nil {
		return nil, err
	}
	return payload.Register.result(), nil
}

func (c *Client) WhoAmI(ctx context.Context, accessToken, tenantID string) (users.Summary, error) {
	var payload struct {
		Me users.Summary `json:"me"`
	}
	if err := c.do(ctx, "Me", meQuery, nil, accessToken, tenantID, &payload); err != nil {
		return users.Summary{}, err
	}
	return payload.Me, nil
}

type authPayload struct {
	AccessToken string        `json:"accessToken"`
	User        users.Summary `json:"user"`
}

func (p authPayload) result() *Result {
	return &Result{AccessToken: p.AccessToken, User: p.User}
}

type wireRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

type wireError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type wireResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []wireError     `json:"errors"`
}

// do runs one operation and decodes the data object into out. All error
// paths return tagged autherrors values.
func (c *Client) do(ctx context.Context, operation, query string, variables map[string]interface{}, accessToken, tenantID string, out interface{}) error {
	body, err := json.Marshal(wireRequest{Query: query, OperationName: operation, Variables: variables})
	if err != nil {
		return autherrors.Wrap(autherrors.KindInternal, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return autherrors.Wrap(autherrors.KindInternal, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if tenantID == "" {
		tenantID = c.defaultTenantID
	}
	req.Header.Set("X-Tenant-Id", tenantID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return autherrors.Wrap(autherrors.KindNetworkUnavailable, "the server took too long to respond", err)
		}
		return autherrors.Wrap(autherrors.KindNetworkUnavailable, "could not reach the server", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return autherrors.Wrap(autherrors.KindNetworkUnavailable, "could not read the server response", err)
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return autherrors.Wrap(autherrors.KindInternal, "the server returned an unexpected response", err)
	}

	if len(wire.Errors) > 0 {
		// First structured error wins; its message is already
		// human-readable.
		first := wire.Errors[0]
		return autherrors.New(autherrors.KindForCode(first.Extensions.Code), first.Message)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return autherrors.New(autherrors.KindUnauthenticated, "session expired, please sign in again")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return autherrors.New(autherrors.KindInternal, http.StatusText(resp.StatusCode))
	}

	if out != nil && len(wire.Data) > 0 {
		if err := json.Unmarshal(wire.Data, out); err != nil {
			return autherrors.Wrap(autherrors.KindInternal, "the server returned an unexpected response", err)
		}
	}
	return nil
}
