package web

import (
	"context"
	"net/http"
	"strings"
)

// TokenVerifier resolves a bearer token to the id of the user it was issued to.
type TokenVerifier interface {
	Subject(token string) (string, error)
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// withUser rejects requests without a valid bearer token and passes the
// authenticated user id to next.
func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized")
			return
		}
		userID, err := s.auth.Subject(token)
		if err != nil || userID == "" {
			writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx), userID)
	}
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
