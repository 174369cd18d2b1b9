package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const adminRealm = `Basic realm="NewsHub Admin"`

func credentialsMatch(got, want []byte) bool {
	return subtle.ConstantTimeCompare(got, want) == 1
}

// basicAuthMiddleware 保护管理接口，用户名和密码都比较完再判断
func basicAuthMiddleware(user, pass string) gin.HandlerFunc {
	wantUser, wantPass := []byte(user), []byte(pass)

	return func(c *gin.Context) {
		u, p, ok := c.Request.BasicAuth()
		userOK := credentialsMatch([]byte(u), wantUser)
		passOK := credentialsMatch([]byte(p), wantPass)
		if !ok || !userOK || !passOK {
			c.Header("WWW-Authenticate", adminRealm)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "unauthorized",
				"message": "admin credentials required",
			})
			return
		}
		c.Next()
	}
}
