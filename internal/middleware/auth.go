package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"cinescript-backend/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the request-scoped caller: the authenticated user plus the
// entitlement flags the access gate reads. It is attached to the request
// context by the JWT middleware and never held in shared state.
type Identity struct {
	UserID             uuid.UUID
	Email              string
	Admin              bool
	VIP                bool
	SubscriptionActive bool
}

type JWTAuth struct {
	Secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret)}
}

// GenerateAccessToken creates a JWT with 15 minute expiry carrying the
// user's entitlement flags as claims.
func (j *JWTAuth) GenerateAccessToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":      user.ID.String(),
		"email":        user.Email,
		"admin":        user.IsAdmin,
		"vip":          user.IsVIP,
		"subscription": user.SubscriptionActive,
		"exp":          time.Now().Add(15 * time.Minute).Unix(),
		"iat":          time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// Middleware validates the bearer token and attaches the caller Identity to
// the request context.
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
			return
		}

		identity, err := j.ParseIdentity(parts[1])
		if err != nil {
			if strings.Contains(err.Error(), "expired") {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			}
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ParseIdentity verifies a token string and extracts the caller Identity.
func (j *JWTAuth) ParseIdentity(tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	})
	if err != nil {
		return Identity{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return Identity{}, jwt.ErrTokenInvalidClaims
	}

	boolClaim := func(key string) bool {
		v, _ := claims[key].(bool)
		return v
	}

	email, _ := claims["email"].(string)

	return Identity{
		UserID:             userID,
		Email:              email,
		Admin:              boolClaim("admin"),
		VIP:                boolClaim("vip"),
		SubscriptionActive: boolClaim("subscription"),
	}, nil
}

// GetIdentity extracts the caller Identity from the request context.
func GetIdentity(ctx context.Context) Identity {
	id, _ := ctx.Value(identityKey).(Identity)
	return id
}

// WithIdentity returns a context carrying the given identity. Used by
// handler tests and the websocket upgrade path.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
