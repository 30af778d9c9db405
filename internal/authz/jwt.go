package authz

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// JWTMiddleware validates an HMAC-signed bearer token and stores the subject
// and roles claims on the request context.
func JWTMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(auth, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
				return
			}
			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !claims.VerifyExpiresAt(time.Now().Unix(), true) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}
			userID, _ := claims["sub"].(string)
			if userID == "" {
				http.Error(w, "Missing subject claim", http.StatusUnauthorized)
				return
			}
			roles, ok := extractRolesFromClaims(claims)
			if !ok {
				http.Error(w, "Invalid role claim", http.StatusUnauthorized)
				return
			}
			ctx := WithIdentity(r.Context(), userID, roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractRolesFromClaims reads "roles" as a list or a single string. A
// missing claim means no roles.
func extractRolesFromClaims(claims jwt.MapClaims) ([]string, bool) {
	raw, ok := claims["roles"]
	if !ok {
		if single, ok := claims["role"].(string); ok && single != "" {
			return []string{single}, true
		}
		return nil, true
	}

	switch v := raw.(type) {
	case []interface{}:
		roles := make([]string, 0, len(v))
		for _, val := range v {
			str, ok := val.(string)
			if !ok {
				return nil, false
			}
			roles = append(roles, str)
		}
		return roles, true
	case []string:
		return v, true
	case string:
		return []string{v}, true
	}
	return nil, false
}
