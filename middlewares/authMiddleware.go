package middlewares

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"

	"github.com/Pariharx7/CivicTrack/models"
	"github.com/Pariharx7/CivicTrack/utils"
)

const (
	// ContextUserIDKey holds the authenticated subject's id.
	ContextUserIDKey = "user_id"
	// ContextRoleKey holds the authenticated subject's role.
	ContextRoleKey = "user_role"
)

// SubjectFrom extracts the acting subject resolved by AuthMiddleware.
func SubjectFrom(c *gin.Context) (userID string, role models.UserRole, ok bool) {
	idVal, exists := c.Get(ContextUserIDKey)
	if !exists {
		return "", "", false
	}
	id, ok := idVal.(string)
	if !ok || id == "" {
		return "", "", false
	}
	roleVal, _ := c.Get(ContextRoleKey)
	roleStr, _ := roleVal.(string)
	return id, models.UserRole(roleStr), true
}

// AuthMiddleware verifies the bearer token (or auth_token cookie) and
// stores the subject's id and role in the request context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			utils.AbortWithError(c, utils.NewUnauthenticatedError("No authorization token provided"))
			return
		}

		if jwtSecret == "" {
			utils.AbortWithError(c, utils.NewAPIError(http.StatusInternalServerError, "JWT secret not configured"))
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			utils.AbortWithError(c, utils.NewUnauthenticatedError("Invalid authorization token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			utils.AbortWithError(c, utils.NewUnauthenticatedError("Invalid token claims"))
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			utils.AbortWithError(c, utils.NewUnauthenticatedError("Invalid token claims"))
			return
		}

		role, _ := claims["role"].(string)
		if role == "" {
			role = string(models.RoleUser)
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// RequireRoles rejects subjects whose role is not in the allowed set.
// It must run after AuthMiddleware.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		_, role, ok := SubjectFrom(c)
		if !ok {
			utils.AbortWithError(c, utils.NewUnauthenticatedError("User not authenticated"))
			return
		}
		if !allowed[role] {
			utils.AbortWithError(c, utils.NewForbiddenError("Admin access required"))
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.Request.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return authHeader[7:]
		}
		return authHeader
	}
	if cookie, err := c.Cookie("auth_token"); err == nil {
		return cookie
	}
	return ""
}
