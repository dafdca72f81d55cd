package v1

import (
	"github.com/astropulse/astropulse/internal/auth"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// NatalChart returns the caller's natal chart, computing it on first use.
func (h *Handlers) NatalChart(c *fiber.Ctx) error {
	chart, err := h.charts.EnsureNatal(c.Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return utils.SendSuccess(c, chart)
}

func (h *Handlers) CreateChart(c *fiber.Ctx) error {
	type input struct {
		Name  string     `json:"name" validate:"required,min=1,max=100"`
		Birth birthInput `json:"birth" validate:"required"`
	}
	in := new(input)
	if err := utils.StrictBodyParser(c, in); err != nil {
		return utils.NewError(utils.CodeValidation, "Invalid request format")
	}
	if verr := h.validate.Validate(in); verr != nil {
		return utils.NewError(utils.CodeValidation, "Validation failed", verr)
	}

	chart, err := h.charts.Create(c.Context(), auth.UserID(c), in.Name, in.Birth.details())
	if err != nil {
		return err
	}
	return utils.Success(c).WithStatus(fiber.StatusCreated).WithData(chart).Send()
}

func (h *Handlers) ListCharts(c *fiber.Ctx) error {
	charts, err := h.charts.List(c.Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return utils.SendSuccess(c, charts)
}

func (h *Handlers) GetChart(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	chart, err := h.charts.GetByID(c.Context(), auth.UserID(c), id)
	if err != nil {
		return err
	}
	return utils.SendSuccess(c, chart)
}

func (h *Handlers) DeleteChart(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.charts.Delete(c.Context(), auth.UserID(c), id); err != nil {
		return err
	}
	return utils.SendSuccess(c, fiber.Map{"deleted": true})
}
