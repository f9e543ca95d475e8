package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/complaint-intake-api/internal/utils"
)

var errInvalidToken = errors.New("invalid token")

// JWTProtected returns a middleware that validates HMAC-signed bearer tokens and
// stores the subject and role in the request locals. When roles are given the
// token's role must be one of them.
func JWTProtected(secret string, roles ...string) fiber.Handler {
	parser := newTokenParser()
	allowed := roleSet(roles)

	return func(c *fiber.Ctx) error {
		authorization := c.Get(fiber.HeaderAuthorization)
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		tokenString, ok := bearerToken(authorization)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		claims, err := parseClaims(parser, secret, tokenString)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		role := storeIdentity(c, claims)
		if len(allowed) > 0 {
			if _, ok := allowed[role]; !ok {
				return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
			}
		}

		return c.Next()
	}
}

// AdminGuard protects destructive routes. An empty secret disables the guard.
func AdminGuard(secret string, roles ...string) fiber.Handler {
	if strings.TrimSpace(secret) == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return JWTProtected(secret, roles...)
}

// IdentifyCaller stores the subject of a valid bearer token in the request
// locals. Requests without a usable token continue anonymously.
func IdentifyCaller(secret string) fiber.Handler {
	if strings.TrimSpace(secret) == "" {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	parser := newTokenParser()

	return func(c *fiber.Ctx) error {
		if tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization)); ok {
			if claims, err := parseClaims(parser, secret, tokenString); err == nil {
				storeIdentity(c, claims)
			}
		}
		return c.Next()
	}
}

func newTokenParser() *jwt.Parser {
	return jwt.NewParser(jwt.WithValidMethods([]string{
		jwt.SigningMethodHS256.Alg(),
		jwt.SigningMethodHS384.Alg(),
		jwt.SigningMethodHS512.Alg(),
	}))
}

func bearerToken(authorization string) (string, bool) {
	const bearer = "Bearer "
	if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", false
	}
	token := strings.TrimSpace(authorization[len(bearer):])
	return token, token != ""
}

func parseClaims(parser *jwt.Parser, secret, tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

// storeIdentity copies subject and role into locals and returns the role.
func storeIdentity(c *fiber.Ctx, claims jwt.MapClaims) string {
	if userID := extractUserIDFromClaims(claims); userID != "" {
		c.Locals("user_id", userID)
	}
	role := extractUserRoleFromClaims(claims)
	if role != "" {
		c.Locals("user_role", role)
	}
	return role
}

func extractUserIDFromClaims(claims jwt.MapClaims) string {
	if subject, err := claims.GetSubject(); err == nil && strings.TrimSpace(subject) != "" {
		return strings.TrimSpace(subject)
	}
	if value, ok := claims["user_id"].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func extractUserRoleFromClaims(claims jwt.MapClaims) string {
	candidates := []string{"role", "roles"}
	for _, key := range candidates {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				role := strings.ToLower(strings.TrimSpace(str))
				if role != "" {
					return role
				}
			}
		}
	}
	return ""
}

func roleSet(roles []string) map[string]struct{} {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		normalized := strings.ToLower(strings.TrimSpace(role))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}
	return allowed
}
