package auth

import (
	"strings"

	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const userIDKey = "user_id"

// UserID returns the authenticated user's ID. Only valid behind Protected.
func UserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(userIDKey).(uuid.UUID)
	return id
}

// bearerToken pulls the token from the Authorization header, falling
// back to the access_token cookie for browser clients.
func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Cookies("access_token")
}

// Protected authenticates the request and stores the caller's ID in
// locals. Expired tokens read as unauthorized; clients refresh and retry.
func (a *Auth) Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return utils.NewError(utils.CodeAuthRequired, "Authentication required")
		}

		claims, err := a.VerifyAccess(c.Context(), token)
		if err != nil {
			if err == ErrExpiredToken {
				return utils.NewError(utils.CodeAuthRequired, "Access token expired")
			}
			return utils.NewError(utils.CodeAuthRequired, "Invalid access token")
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			return utils.NewError(utils.CodeAuthRequired, "Invalid access token")
		}

		c.Locals(userIDKey, userID)
		// Downstream log lines, including the request-completion line,
		// pick the user ID up from the user context.
		c.SetUserContext(logger.WithUserID(c.UserContext(), userID.String()))
		return c.Next()
	}
}

// AdminOnly gates a route on the admin email allowlist. Runs behind
// Protected; there is no role system, just configuration.
func (a *Auth) AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == uuid.Nil {
			return utils.NewError(utils.CodeAuthRequired, "Authentication required")
		}

		user, err := a.users.GetByID(c.Context(), userID)
		if err != nil {
			return err
		}
		if user == nil {
			return utils.NewError(utils.CodeAuthRequired, "Authentication required")
		}
		if !a.cfg.IsAdminEmail(user.Email) {
			a.log.Warn(c.Context()).WithFields("user_id", userID, "path", c.Path()).Logs("non-admin hit admin route")
			return utils.NewError(utils.CodeForbidden, "Admin access required")
		}
		return c.Next()
	}
}

// CronOnly gates the job-trigger routes on the shared cron secret,
// compared exactly. An unset secret disables the routes outright.
func (a *Auth) CronOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return utils.NewError(utils.CodeAuthRequired, "Invalid cron secret")
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if a.cfg.CronSecret == "" || token != a.cfg.CronSecret {
			return utils.NewError(utils.CodeAuthRequired, "Invalid cron secret")
		}
		return c.Next()
	}
}
