package middleware

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/KINGliam254/Butcher-Sauce-UAT-Ready/internal/shared/apperr"
)

const (
	HeaderAdminActor = "X-Admin-Actor"
	CtxKeyAdminActor = "admin_actor"

	// order_events.actor holds "admin:" plus the actor in 64 characters.
	MaxAdminActorLen = 58
)

// RequireAdminToken guards operator routes with a static bearer token. An
// empty token disables the routes entirely.
func RequireAdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			Fail(c, apperr.ForbiddenErr("Admin API is disabled."))
			return
		}

		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(token)) != 1 {
			Fail(c, apperr.ForbiddenErr("Admin token required."))
			return
		}

		actor := strings.TrimSpace(c.GetHeader(HeaderAdminActor))
		if actor == "" {
			actor = "token"
		}
		if utf8.RuneCountInString(actor) > MaxAdminActorLen {
			Fail(c, apperr.InvalidErr("Invalid admin actor.", map[string]string{
				HeaderAdminActor: fmt.Sprintf("must be at most %d characters", MaxAdminActorLen),
			}))
			return
		}
		c.Set(CtxKeyAdminActor, actor)
		c.Next()
	}
}

func AdminActor(c *gin.Context) string {
	return c.GetString(CtxKeyAdminActor)
}
