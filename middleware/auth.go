package middleware

import (
	"strings"

	"gradient/services"
	"gradient/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SubjectKey holds the token subject in the gin context
const SubjectKey = "subject"

// AuthMiddleware checks HS256 bearer tokens signed with secret. An empty
// secret disables the check.
func AuthMiddleware(secret string) gin.HandlerFunc {
	log := utils.Component("auth")
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.Unauthorized(c, "Missing or invalid token")
			c.Abort()
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims := &jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(services.TokenIssuer),
			jwt.WithExpirationRequired(),
		)
		if err != nil || !token.Valid {
			log.WithError(err).Debug("rejected token")
			utils.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}
