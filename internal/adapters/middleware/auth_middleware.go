package middleware

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/IANDYI/vitals-service/internal/core/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// cacheEntry stores cached JWT claims keyed by JTI (JWT ID)
type cacheEntry struct {
	claims jwt.MapClaims
	exp    int64
	token  string
}

// AuthMiddleware handles JWT validation and RBAC enforcement
// Validates RS256 tokens issued by the identity provider using its mounted public key
// Uses JTI-based caching to skip repeated RSA verification
type AuthMiddleware struct {
	publicKey *rsa.PublicKey
	// L1 cache: verified claims keyed by JTI
	cache       sync.Map
	janitorStop chan bool
	logger      *zap.Logger
}

const CacheCleanupInterval = 10 * time.Minute

// NewAuthMiddleware creates a new JWT authentication middleware
func NewAuthMiddleware(publicKey *rsa.PublicKey, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &AuthMiddleware{
		publicKey:   publicKey,
		janitorStop: make(chan bool),
		logger:      logger.With(zap.String("component", "auth")),
	}

	go m.startJanitor(CacheCleanupInterval)

	return m
}

// Context keys for storing user information
type contextKey string

const (
	UserIDKey contextKey = "userID"
	RoleKey   contextKey = "role"
	TokenKey  contextKey = "token"
)

// GetClaimsFromCacheOrParse extracts claims from cache or parses token
// Returns claims, JTI, and error
// Also used by the WebSocket handler, where the token may arrive as a query parameter
func (m *AuthMiddleware) GetClaimsFromCacheOrParse(tokenString string) (jwt.MapClaims, string, error) {
	// Peek at the JTI without verifying the signature yet
	parser := new(jwt.Parser)
	unverifiedToken, _, err := parser.ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, "", err
	}

	claims, ok := unverifiedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "", errors.New("invalid token claims")
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		// No JTI: key on a token prefix plus identity to avoid collisions
		role, _ := claims["role"].(string)
		userID, _ := claims["sub"].(string)
		jti = fmt.Sprintf("%s-%s-%s", tokenString[:min(20, len(tokenString))], role, userID[:min(8, len(userID))])
		m.logger.Debug("token missing JTI, using fallback key", zap.String("role", role), zap.String("user_id", userID))
	}

	var exp int64
	if expFloat, ok := claims["exp"].(float64); ok {
		exp = int64(expFloat)
	} else if expInt, ok := claims["exp"].(int64); ok {
		exp = expInt
	} else {
		return nil, "", errors.New("missing expiration claim")
	}

	if time.Now().Unix() > exp {
		return nil, "", errors.New("token expired")
	}

	if entry, ok := m.cache.Load(jti); ok {
		cached := entry.(cacheEntry)
		// a JTI is unverified input; only the exact token that was verified may reuse the entry
		if time.Now().Unix() < cached.exp && cached.token == tokenString {
			return cached.claims, jti, nil
		}
		m.cache.Delete(jti)
	}

	// Full RSA validation on cache miss
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.publicKey, nil
	})
	if err != nil {
		return nil, "", err
	}
	if !token.Valid {
		return nil, "", jwt.ErrSignatureInvalid
	}

	verifiedClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "", errors.New("invalid token claims")
	}

	m.cache.Store(jti, cacheEntry{claims: verifiedClaims, exp: exp, token: tokenString})

	return verifiedClaims, jti, nil
}

// Authenticate validates a token and returns the caller it identifies
func (m *AuthMiddleware) Authenticate(tokenString string) (domain.Caller, error) {
	claims, _, err := m.GetClaimsFromCacheOrParse(tokenString)
	if err != nil {
		return domain.Caller{}, err
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return domain.Caller{}, errors.New("missing or invalid user ID claim")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return domain.Caller{}, errors.New("user ID claim is not a UUID")
	}

	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return domain.Caller{}, errors.New("missing or invalid role claim")
	}

	return domain.Caller{UserID: userID, Role: role}, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(authHeader string) (string, bool) {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// RequireAuth is middleware that validates JWT token from Authorization header
// Adds userID and role to request context
func (m *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		tokenString, ok := BearerToken(authHeader)
		if !ok {
			http.Error(w, "invalid authorization header", http.StatusUnauthorized)
			return
		}

		caller, err := m.Authenticate(tokenString)
		if err != nil {
			m.logger.Info("token validation failed", zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, caller.UserID.String())
		ctx = context.WithValue(ctx, RoleKey, caller.Role)
		ctx = context.WithValue(ctx, TokenKey, tokenString)

		next(w, r.WithContext(ctx))
	}
}

// RequireRole enforces role-based access control
// Only allows access if user has the required role
func (m *AuthMiddleware) RequireRole(requiredRole string, next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAnyRole([]string{requiredRole}, next)
}

// RequireAnyRole allows access if user has any of the allowed roles
func (m *AuthMiddleware) RequireAnyRole(allowedRoles []string, next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		role, ok := GetRole(r.Context())
		if !ok {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				next(w, r)
				return
			}
		}

		m.logger.Info("role mismatch",
			zap.Strings("required", allowedRoles),
			zap.String("role", role),
			zap.String("path", r.URL.Path),
		)
		http.Error(w, "forbidden", http.StatusForbidden)
	})
}

// startJanitor periodically cleans up expired cache entries
func (m *AuthMiddleware) startJanitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now().Unix()
			deleted := 0
			m.cache.Range(func(key, value interface{}) bool {
				if entry, ok := value.(cacheEntry); ok && now >= entry.exp {
					m.cache.Delete(key)
					deleted++
				}
				return true
			})
			if deleted > 0 {
				m.logger.Debug("token cache janitor purged entries", zap.Int("deleted", deleted))
			}
		case <-m.janitorStop:
			return
		}
	}
}

// Stop stops the background janitor (for graceful shutdown)
func (m *AuthMiddleware) Stop() {
	close(m.janitorStop)
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetRole extracts role from request context
func GetRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(RoleKey).(string)
	return role, ok
}

// GetToken extracts token string from request context
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// GetCaller builds the authenticated caller from request context
func GetCaller(ctx context.Context) (domain.Caller, bool) {
	userIDStr, ok := GetUserID(ctx)
	if !ok {
		return domain.Caller{}, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return domain.Caller{}, false
	}
	role, ok := GetRole(ctx)
	if !ok {
		return domain.Caller{}, false
	}
	return domain.Caller{UserID: userID, Role: role}, true
}

// IsClinician checks if the user in context is a DOCTOR
func IsClinician(ctx context.Context) bool {
	role, ok := GetRole(ctx)
	return ok && role == domain.RoleDoctor
}
