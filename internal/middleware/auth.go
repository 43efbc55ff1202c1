package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/chorewheel/internal/auth"
	"github.com/dukerupert/chorewheel/internal/model"
)

const (
	actorIDHeader  = "X-Actor-ID"
	actorPINHeader = "X-Actor-PIN"

	pinAttemptLimit  = 5
	pinAttemptWindow = time.Minute
)

// MemberLookup resolves the family member named by X-Actor-ID.
type MemberLookup interface {
	GetByID(ctx context.Context, id int64) (*model.FamilyMember, error)
	GetPINHash(ctx context.Context, id int64) (string, error)
}

// Actor reads X-Actor-ID and places the member in the request context as an
// auth.Actor. Members with a PIN must also send a matching X-Actor-PIN.
// Repeated wrong PINs from one address are throttled by limiter.
// Requests without X-Actor-ID pass through anonymously.
func Actor(members MemberLookup, limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(actorIDHeader)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid "+actorIDHeader)
				return
			}

			member, err := members.GetByID(r.Context(), id)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load actor")
				return
			}
			if member == nil {
				writeError(w, http.StatusUnauthorized, "unknown actor")
				return
			}

			if member.HasPIN {
				key := "pin:" + RealIP(r) + ":" + raw
				if !limiter.Allow(key, pinAttemptLimit, pinAttemptWindow) {
					writeError(w, http.StatusTooManyRequests, "too many PIN attempts")
					return
				}
				hash, err := members.GetPINHash(r.Context(), id)
				if err != nil {
					writeError(w, http.StatusInternalServerError, "failed to load PIN")
					return
				}
				if bcrypt.CompareHashAndPassword([]byte(hash), []byte(r.Header.Get(actorPINHeader))) != nil {
					writeError(w, http.StatusUnauthorized, "incorrect PIN")
					return
				}
				limiter.Reset(key)
			}

			ctx := auth.WithActor(r.Context(), auth.Actor{MemberID: member.ID, Role: member.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActor rejects requests that did not identify an actor.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, actorIDHeader+" is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireParent checks that the actor has the parent role.
func RequireParent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, actorIDHeader+" is required")
			return
		}
		if !auth.IsParent(r.Context()) {
			writeError(w, http.StatusForbidden, "parent role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
