package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PawPantry/internal/pkg/usercontext"
)

// UserContextMiddleware builds the user context from the identity headers the
// upstream auth layer sets. Requests without a usable user id stay anonymous.
func UserContextMiddleware(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Get(usercontext.HeaderUserID))
	if raw == "" {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	isAdmin, _ := strconv.ParseBool(c.Get(usercontext.HeaderIsAdmin))
	usercontext.SetUserContext(c, usercontext.UserContext{
		UserID:     uint(id),
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
	})
	return c.Next()
}
