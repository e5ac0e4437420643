package web

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// SessionCookie names the cookie holding the browser's session id.
	SessionCookie = "suradas_session"

	sessionLocal = "session"
)

// sessionMiddleware assigns each browser a UUID session, kept in a cookie.
func (s *Server) sessionMiddleware(c *fiber.Ctx) error {
	id := c.Cookies(SessionCookie)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			Expires:  time.Now().Add(30 * 24 * time.Hour),
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
	c.Locals(sessionLocal, id)
	return c.Next()
}

func sessionOf(c *fiber.Ctx) string {
	id, _ := c.Locals(sessionLocal).(string)
	return id
}
