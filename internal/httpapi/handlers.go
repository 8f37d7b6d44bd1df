package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/gateway"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/scope"
)

type ctxKey int

const ctxKeyScope ctxKey = iota

func contextWithScope(ctx context.Context, sc scope.Scope) context.Context {
	return context.WithValue(ctx, ctxKeyScope, sc)
}

func scopeFromRequest(r *http.Request) scope.Scope {
	sc, _ := r.Context().Value(ctxKeyScope).(scope.Scope)
	return sc
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		sc, err := s.scopes.Parse(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithScope(r.Context(), sc)))
	})
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

func (s *Server) handleCaptureURL(w http.ResponseWriter, r *http.Request) {
	var req gateway.TokeniseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.gw.CaptureURL(r.Context(), scopeFromRequest(r), req)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCaptureQuery(w http.ResponseWriter, r *http.Request) {
	var req gateway.CaptureQueryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.gw.QueryCapture(r.Context(), scopeFromRequest(r), req)
	if err != nil {
		s.writeGatewayError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCppURL(w http.ResponseWriter, r *http.Request) {
	var req gateway.CppTransferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.gw.CPPaymentURL(r.Context(), scopeFromRequest(r), req))
}

func (s *Server) handleCppQuery(w http.ResponseWriter, r *http.Request) {
	var req gateway.CppQueryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.gw.QueryPaymentStatus(r.Context(), scopeFromRequest(r), req))
}

func (s *Server) handleCnpTransfer(w http.ResponseWriter, r *http.Request) {
	var req gateway.CnpTransferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.gw.CnpTransfer(r.Context(), scopeFromRequest(r), req))
}

func (s *Server) handleTokenDelete(w http.ResponseWriter, r *http.Request) {
	var req gateway.DeleteTokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.gw.DeleteToken(r.Context(), scopeFromRequest(r), req))
}

// writeGatewayError maps gateway errors onto HTTP statuses. Invalid requests
// are the caller's fault; anything else (secret unreadable, queue down) is a
// server error whose detail stays in the log, not the response.
func (s *Server) writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, gateway.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.ErrorContext(r.Context(), "gateway operation failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errors.New("malformed request body")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
