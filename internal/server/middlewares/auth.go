package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	v2 "github.com/tower-qa/tower-qa/api/v2"
	"github.com/tower-qa/tower-qa/internal/models"
)

const userKey = "towerqa.user"

// Authenticator checks basic credentials and bearer tokens.
type Authenticator interface {
	Basic(username, password string) (*models.User, bool)
	Verify(token string) (*models.User, error)
}

// Authenticate rejects requests without valid credentials, except for the
// paths listed in public. The authenticated user is stored on the context.
func Authenticate(auth Authenticator, public ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range public {
			if strings.HasSuffix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}

		if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
			u, err := auth.Verify(token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, v2.Error{Detail: "Invalid token."})
				return
			}
			c.Set(userKey, u)
			c.Next()
			return
		}

		if username, password, ok := c.Request.BasicAuth(); ok {
			u, valid := auth.Basic(username, password)
			if !valid {
				c.AbortWithStatusJSON(http.StatusUnauthorized, v2.Error{Detail: "Invalid username/password."})
				return
			}
			c.Set(userKey, u)
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, v2.Error{Detail: "Authentication credentials were not provided."})
	}
}

// CurrentUser returns the user stored by Authenticate.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}
