package logger_test

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
)

func TestMiddlewareLogsErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(logger.WithOutput(&buf))

	app := fiber.New(fiber.Config{ErrorHandler: utils.HandleError})
	app.Use(log.Middleware())
	app.Get("/missing", func(c *fiber.Ctx) error {
		return utils.NewError(utils.CodeNotFound, "Reading not found")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// The completion line must carry the status the client saw, not
	// the 200 still on the response when the middleware unwinds.
	assert.Contains(t, buf.String(), `"status":404`)
	assert.NotContains(t, buf.String(), `"status":200`)
}

func TestMiddlewareLogsUserID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(logger.WithOutput(&buf))

	app := fiber.New(fiber.Config{ErrorHandler: utils.HandleError})
	app.Use(log.Middleware())
	app.Get("/me", func(c *fiber.Ctx) error {
		c.SetUserContext(logger.WithUserID(c.UserContext(), "user-42"))
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.Contains(t, buf.String(), `"user_id":"user-42"`)
	assert.Contains(t, buf.String(), `"request_id"`)
}
