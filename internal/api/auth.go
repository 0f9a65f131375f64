package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wecare/booking-service/internal/booking"
)

// AuthMiddleware extracts the caller's {id, role} from a bearer token.
// Token issuance lives in the auth collaborator; this side only verifies
// the HS256 signature and reads the sub and role claims.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, found := strings.CutPrefix(header, "Bearer ")
			if !found || raw == "" {
				writeError(w, http.StatusUnauthorized, "missing_token", "Authorization bearer token is required")
				return
			}

			identity, err := parseIdentity(raw, key)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseIdentity(raw string, key []byte) (booking.Identity, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return booking.Identity{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return booking.Identity{}, fmt.Errorf("unexpected claims type")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return booking.Identity{}, fmt.Errorf("missing sub claim")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return booking.Identity{}, fmt.Errorf("sub is not a valid UUID")
	}

	roleClaim, _ := claims["role"].(string)
	role := booking.Role(roleClaim)
	switch role {
	case booking.RolePatient, booking.RoleProfessional, booking.RoleAdmin:
	default:
		return booking.Identity{}, fmt.Errorf("unknown role %q", roleClaim)
	}

	return booking.Identity{ID: id, Role: role}, nil
}

// IdentityFrom returns the authenticated identity, if any.
func IdentityFrom(ctx context.Context) (booking.Identity, bool) {
	id, ok := ctx.Value(identityKey).(booking.Identity)
	return id, ok
}
