package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/preppal/prep-assistant/internal/auth"
	"github.com/preppal/prep-assistant/internal/core"
	"github.com/preppal/prep-assistant/internal/store"
)

// GuestHeader carries the guest id. It is echoed on every guest response so
// the client can keep its in-memory chats across requests.
const GuestHeader = "X-Guest-ID"

type contextKey int

const callerKey contextKey = iota

// Caller is who is making the request. A signed-in caller has ExternalID set;
// User is nil until onboarding is done. A guest has only GuestID.
type Caller struct {
	ExternalID string
	Email      string
	User       *store.User
	GuestID    string
}

func (c *Caller) Guest() bool { return c.ExternalID == "" }

func callerFromContext(ctx context.Context) *Caller {
	if c, ok := ctx.Value(callerKey).(*Caller); ok {
		return c
	}
	return &Caller{}
}

// IdentityMiddleware resolves a Bearer token to a caller, or falls back to a
// guest identity when no Authorization header is sent.
func (h *APIHandler) IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := &Caller{}

		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := auth.ValidateJWT(h.jwtSecret, tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			caller.ExternalID = claims.Subject
			caller.Email = claims.Email

			user, err := h.identity.Resolve(r.Context(), claims.Subject)
			switch {
			case err == nil:
				caller.User = user
			case errors.Is(err, core.ErrNotFound):
			default:
				log.Printf("Error resolving user %s: %v", claims.Subject, err)
				h.respondErr(w, err)
				return
			}
		} else {
			caller.GuestID = r.Header.Get(GuestHeader)
			if _, err := uuid.Parse(caller.GuestID); err != nil {
				caller.GuestID = uuid.NewString()
			}
			w.Header().Set(GuestHeader, caller.GuestID)
		}

		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireOnboarded stops signed-in callers without a user record. Guests pass.
func (h *APIHandler) RequireOnboarded(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := callerFromContext(r.Context())
		if !caller.Guest() && caller.User == nil {
			writeError(w, http.StatusNotFound, errOnboardingRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const errOnboardingRequired = "onboarding required"

func (h *APIHandler) workspace(r *http.Request) *core.Workspace {
	caller := callerFromContext(r.Context())
	if caller.User != nil {
		return h.registry.ForUser(caller.User)
	}
	return h.registry.ForGuest(caller.GuestID)
}
