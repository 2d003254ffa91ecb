package server

import (
	"encoding/json"
	"net/http"

	"github.com/coleapp/session-service/accounts"
	"github.com/coleapp/session-service/autherrors"
)

// SessionHandler dispatches the GraphQL session operations.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, autherrors.Wrap(autherrors.KindValidationFailed, "request body is not valid JSON", err))
			return
		}

		switch req.operation() {
		case opLogin:
			s.handleLogin(w, r, &req)
		case opRegister:
			s.handleRegister(w, r, &req)
		case opMe:
			s.handleMe(w, r)
		default:
			writeError(w, autherrors.New(autherrors.KindValidationFailed, "unknown operation"))
		}
	}
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, req *graphQLRequest) {
	var input loginInput
	if err := req.inputVariables(&input); err != nil {
		writeError(w, autherrors.Wrap(autherrors.KindValidationFailed, "login variables are invalid", err))
		return
	}
	if input.Email == "" || input.Password == "" {
		writeError(w, autherrors.New(autherrors.KindValidationFailed, "email and password are required"))
		return
	}

	result, err := s.accounts.Login(input.Email, input.Password, requestTenantID(r))
	if err != nil {
		s.logger.Debug().Err(err).Str("email", input.Email).Msg("login failed")
		writeError(w, err)
		return
	}

	writeData(w, map[string]interface{}{
		"login": loginPayload(result),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, req *graphQLRequest) {
	var input accounts.RegisterInput
	if err := req.inputVariables(&input); err != nil {
		writeError(w, autherrors.Wrap(autherrors.KindValidationFailed, "register variables are invalid", err))
		return
	}
	if input.TenantID == "" {
		input.TenantID = requestTenantID(r)
	}

	result, err := s.accounts.Register(input)
	if err != nil {
		s.logger.Debug().Err(err).Str("email", input.Email).Msg("register failed")
		writeError(w, err)
		return
	}

	writeData(w, map[string]interface{}{
		"register": loginPayload(result),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	raw := bearerToken(r)
	if raw == "" {
		writeError(w, autherrors.New(autherrors.KindUnauthenticated, "authentication required"))
		return
	}

	summary, err := s.accounts.WhoAmI(raw)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, map[string]interface{}{
		"me": summary,
	})
}

func loginPayload(result *accounts.LoginResult) map[string]interface{} {
	return map[string]interface{}{
		"accessToken": result.AccessToken,
		"user":        result.User,
	}
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
