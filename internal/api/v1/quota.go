package v1

import (
	"github.com/astropulse/astropulse/internal/auth"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// QuotaStatus reports the caller's generation allowance for the
// current period.
func (h *Handlers) QuotaStatus(c *fiber.Ctx) error {
	status, err := h.quota.Status(c.Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return utils.SendSuccess(c, status)
}
