package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"bizassist/internal/domain"
)

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by Require.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(domain.Principal)
	return p, ok
}

// rejection texts differ between user and patient tokens.
type rejection struct {
	required string
	missing  string
	expired  string
	invalid  string
	failed   string
}

var (
	userRejection = rejection{
		required: "Authentication token required.",
		missing:  "Authentication token is missing.",
		expired:  "Token expired.",
		invalid:  "Invalid token.",
		failed:   "Invalid token.",
	}
	patientRejection = rejection{
		required: "Patient authentication token required. Format is Bearer <token>.",
		missing:  "Patient authentication token is missing.",
		expired:  "Patient token expired.",
		invalid:  "Invalid patient token.",
		failed:   "Error verifying patient token.",
	}
)

// Require wraps next so it only runs with a verified bearer token. The
// principal is available to next through PrincipalFrom.
func Require(tokens *Tokens, logger *slog.Logger, next http.HandlerFunc) http.HandlerFunc {
	msgs := userRejection
	if tokens.Kind() == domain.KindPatient {
		msgs = patientRejection
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !tokens.Configured() {
			logger.Error("token secret not configured", "kind", tokens.Kind())
			reject(w, http.StatusInternalServerError, "Authentication configuration error.")
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			reject(w, http.StatusUnauthorized, msgs.required)
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if raw == "" {
			reject(w, http.StatusUnauthorized, msgs.missing)
			return
		}

		p, err := tokens.Verify(raw)
		switch {
		case err == nil:
		case errors.Is(err, ErrTokenExpired):
			reject(w, http.StatusUnauthorized, msgs.expired)
			return
		case errors.Is(err, ErrInvalidToken):
			logger.Debug("token rejected", "kind", tokens.Kind(), "err", err)
			reject(w, http.StatusUnauthorized, msgs.invalid)
			return
		default:
			logger.Warn("token verification failed", "kind", tokens.Kind(), "err", err)
			reject(w, http.StatusUnauthorized, msgs.failed)
			return
		}

		next(w, r.WithContext(WithPrincipal(r.Context(), p)))
	}
}

func reject(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
