package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coleapp/session-service/autherrors"
)

// The session endpoint speaks the GraphQL wire format the web and mobile
// apps already use: a POST body with query/variables, and responses with
// either a data object or a list of structured errors carrying an
// extensions.code. The operation surface is fixed (login, register, me), so
// the query text is only inspected for which operation it names.

type graphQLRequest struct {
	Query         string                     `json:"query"`
	OperationName string                     `json:"operationName,omitempty"`
	Variables     map[string]json.RawMessage `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string                 `json:"message"`
	Extensions graphQLErrorExtensions `json:"extensions,omitempty"`
}

type graphQLErrorExtensions struct {
	Code string `json:"code,omitempty"`
}

type graphQLResponse struct {
	Data   map[string]interface{} `json:"data,omitempty"`
	Errors []graphQLError         `json:"errors,omitempty"`
}

const (
	opLogin    = "login"
	opRegister = "register"
	opMe       = "me"
)

// operation determines which session operation the request names. The
// operationName wins when set; otherwise the query text is scanned.
func (r *graphQLRequest) operation() string {
	name := strings.ToLower(strings.TrimSpace(r.OperationName))
	switch name {
	case opLogin, opRegister, opMe:
		return name
	}

	query := r.Query
	if idx := strings.Index(query, "{"); idx >= 0 {
		query = query[idx:]
	}
	for _, op := range []string{opLogin, opRegister, opMe} {
		if containsField(query, op) {
			return op
		}
	}
	return ""
}

// containsField reports whether the selection set names the given field as
// a word of its own (so "me" does not match "message").
func containsField(query, field string) bool {
	for i := 0; ; {
		j := strings.Index(query[i:], field)
		if j < 0 {
			return false
		}
		j += i
		before := byte(' ')
		if j > 0 {
			before = query[j-1]
		}
		after := byte(' ')
		if j+len(field) < len(query) {
			after = query[j+len(field)]
		}
		if !isIdentByte(before) && !isIdentByte(after) {
			return true
		}
		i = j + len(field)
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// inputVariables unmarshals the request variables into dst. Both shapes
// seen in the wild are accepted: fields nested under an "input" variable,
// or spread at the top level.
func (r *graphQLRequest) inputVariables(dst interface{}) error {
	if raw, ok := r.Variables["input"]; ok {
		return json.Unmarshal(raw, dst)
	}
	flat, err := json.Marshal(r.Variables)
	if err != nil {
		return err
	}
	return json.Unmarshal(flat, dst)
}

func writeData(w http.ResponseWriter, data map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(graphQLResponse{Data: data})
}

// writeError emits a structured GraphQL error. The HTTP status stays 200
// except for Unauthenticated, which also signals at the transport level so
// plain REST middleware can react to it.
func writeError(w http.ResponseWriter, err error) {
	kind := autherrors.KindOf(err)
	if kind == autherrors.KindUnauthenticated {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	_ = json.NewEncoder(w).Encode(graphQLResponse{
		Errors: []graphQLError{{
			Message:    autherrors.DisplayMessage(err),
			Extensions: graphQLErrorExtensions{Code: autherrors.CodeForKind(kind)},
		}},
	})
}
