package v1

import (
	"time"

	"github.com/astropulse/astropulse/internal/auth"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// ListAlerts returns the user's transit alerts, newest window first.
// active=true narrows to alerts whose window includes now.
func (h *Handlers) ListAlerts(c *fiber.Ctx) error {
	alerts, err := h.alerts.ListByUser(c.Context(), auth.UserID(c), c.QueryBool("active"), time.Now().UTC())
	if err != nil {
		return err
	}
	return utils.SendSuccess(c, alerts)
}

func (h *Handlers) MarkAlertRead(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	alert, err := h.alerts.MarkRead(c.Context(), id, auth.UserID(c))
	if err != nil {
		return err
	}
	if alert == nil {
		return utils.NewError(utils.CodeNotFound, "Alert not found")
	}
	return utils.SendSuccess(c, alert)
}

func (h *Handlers) DeleteAlert(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	deleted, err := h.alerts.Delete(c.Context(), id, auth.UserID(c))
	if err != nil {
		return err
	}
	if !deleted {
		return utils.NewError(utils.CodeNotFound, "Alert not found")
	}
	return utils.SendSuccess(c, fiber.Map{"deleted": true})
}
