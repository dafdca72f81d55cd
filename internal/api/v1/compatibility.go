package v1

import (
	"github.com/astropulse/astropulse/internal/auth"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// MatchCompatibility scores the caller against a partner's birth data
// and stores the resulting kuta report.
func (h *Handlers) MatchCompatibility(c *fiber.Ctx) error {
	type input struct {
		PartnerName string     `json:"partner_name" validate:"required,min=1,max=100"`
		Partner     birthInput `json:"partner_birth" validate:"required"`
	}
	in := new(input)
	if err := utils.StrictBodyParser(c, in); err != nil {
		return utils.NewError(utils.CodeValidation, "Invalid request format")
	}
	if verr := h.validate.Validate(in); verr != nil {
		return utils.NewError(utils.CodeValidation, "Validation failed", verr)
	}

	report, err := h.compat.Match(c.Context(), auth.UserID(c), in.PartnerName, in.Partner.details())
	if err != nil {
		return err
	}
	return utils.Success(c).WithStatus(fiber.StatusCreated).WithData(report).Send()
}

func (h *Handlers) ListCompatibility(c *fiber.Ctx) error {
	reports, err := h.compat.List(c.Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return utils.SendSuccess(c, reports)
}

func (h *Handlers) GetCompatibility(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	report, err := h.compat.GetByID(c.Context(), auth.UserID(c), id)
	if err != nil {
		return err
	}
	return utils.SendSuccess(c, report)
}

func (h *Handlers) DeleteCompatibility(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.compat.Delete(c.Context(), auth.UserID(c), id); err != nil {
		return err
	}
	return utils.SendSuccess(c, fiber.Map{"deleted": true})
}
