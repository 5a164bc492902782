package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/tokenauth"
)

// GinSubjectKey is the gin context key holding the token subject.
const GinSubjectKey = "tokenauth.subject"

// GinGuard is Guard for gin. The subject is stored under GinSubjectKey and
// in the request context.
func GinGuard(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || auth == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthenticated."})
			return
		}

		sub, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": tokenauth.PublicMessage(err, "Unauthenticated.")})
			return
		}

		c.Set(GinSubjectKey, sub)
		c.Request = c.Request.WithContext(WithSubject(c.Request.Context(), sub))
		c.Next()
	}
}

// GinSubject returns the subject stored by GinGuard.
func GinSubject(c *gin.Context) (tokenauth.Record, bool) {
	v, ok := c.Get(GinSubjectKey)
	if !ok {
		return nil, false
	}
	sub, ok := v.(tokenauth.Record)
	return sub, ok
}
