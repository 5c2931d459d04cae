package ginserver

import (
	"strings"

	gin "github.com/gin-gonic/gin"

	"roomledger/internal/app/policies"
)

// The gateway in front of the service verifies callers and forwards their
// identity in these headers.
const (
	headerPrincipalID    = "X-Principal-ID"
	headerPrincipalRoles = "X-Principal-Roles"
)

// Principal copies the forwarded identity into the request context. Requests
// without one continue anonymously and are rejected by the command bus when
// the operation needs a caller.
func Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerPrincipalID))
		if id == "" {
			c.Next()
			return
		}
		p := policies.Principal{ID: id, Roles: parseRoles(c.GetHeader(headerPrincipalRoles))}
		c.Request = c.Request.WithContext(policies.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func parseRoles(raw string) []string {
	var roles []string
	for _, part := range strings.Split(raw, ",") {
		if role := strings.ToLower(strings.TrimSpace(part)); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}
