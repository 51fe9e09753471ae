package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"voltswap/apperr"
	"voltswap/models"
	"voltswap/services"
)

// envelope is the uniform JSON response shape.
type envelope struct {
	Content interface{} `json:"content"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Success bool        `json:"success"`
}

func respondOK(c *gin.Context, content interface{}, message string) {
	c.JSON(http.StatusOK, envelope{Content: content, Message: message, Code: "ok", Success: true})
}

func respondCreated(c *gin.Context, content interface{}, message string) {
	c.JSON(http.StatusCreated, envelope{Content: content, Message: message, Code: "created", Success: true})
}

// respondError serializes a service failure exactly once. Internal causes
// stay out of the payload; only the taxonomy code and message cross.
func respondError(c *gin.Context, err error) {
	ae := apperr.From(err)
	msg := ae.Message
	if ae.Kind == apperr.KindInternal {
		msg = "internal error"
	}
	c.JSON(ae.HTTPStatus(), envelope{Message: msg, Code: ae.Code, Success: false})
}

// currentCaller builds the service caller from the session.
func currentCaller(c *gin.Context) services.Caller {
	session := sessions.Default(c)
	caller := services.Caller{}
	if id, ok := session.Get("user_id").(uint); ok {
		caller.UserID = id
	}
	if role, ok := session.Get("role").(string); ok {
		caller.Role = models.Role(role)
	}
	return caller
}

// AuthRequired rejects unauthenticated requests with the JSON envelope.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if session.Get("user_id") == nil {
			respondError(c, apperr.Unauthorized("not_authenticated", "login required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RoleRequired gates a route group on the session role.
func RoleRequired(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := currentCaller(c)
		for _, r := range roles {
			if caller.Role == r {
				c.Next()
				return
			}
		}
		respondError(c, apperr.Forbidden("insufficient_role", "caller role cannot access this resource"))
		c.Abort()
	}
}
