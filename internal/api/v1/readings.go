package v1

import (
	"github.com/astropulse/astropulse/internal/auth"
	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/internal/services"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// sendReading renders an orchestration result: 201 when the reading
// was generated on this request, 200 otherwise, with meta.source
// telling the client where it came from.
func sendReading(c *fiber.Ctx, res *services.Result) error {
	status := fiber.StatusOK
	if res.Source == services.SourceGenerated {
		status = fiber.StatusCreated
	}
	return utils.Success(c).
		WithStatus(status).
		WithData(res.Reading).
		WithMeta("source", string(res.Source)).
		Send()
}

func (h *Handlers) DailyReading(c *fiber.Ctx) error {
	res, err := h.readings.GetDaily(c.Context(), auth.UserID(c), c.Query("date"), c.QueryBool("force"))
	if err != nil {
		return err
	}
	return sendReading(c, res)
}

func (h *Handlers) WeeklyReading(c *fiber.Ctx) error {
	res, err := h.readings.GetPeriodic(c.Context(), auth.UserID(c), models.ReadingWeekly, c.QueryBool("force"))
	if err != nil {
		return err
	}
	return sendReading(c, res)
}

func (h *Handlers) MonthlyReading(c *fiber.Ctx) error {
	res, err := h.readings.GetPeriodic(c.Context(), auth.UserID(c), models.ReadingMonthly, c.QueryBool("force"))
	if err != nil {
		return err
	}
	return sendReading(c, res)
}

func (h *Handlers) LatestReading(c *fiber.Ctx) error {
	reading, err := h.readings.Latest(c.Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return utils.SendSuccess(c, reading)
}

func (h *Handlers) ListReadings(c *fiber.Ctx) error {
	f := models.ReadingFilters{
		Limit:  c.QueryInt("limit"),
		Offset: c.QueryInt("offset"),
		From:   c.Query("from"),
		To:     c.Query("to"),
	}
	if f.Limit < 0 || f.Offset < 0 {
		return utils.NewError(utils.CodeValidation, "limit and offset must not be negative")
	}
	if t := c.Query("type"); t != "" {
		rtype := models.ReadingType(t)
		if !rtype.Valid() {
			return utils.NewError(utils.CodeValidation, "Unknown reading type")
		}
		f.Type = rtype
	}
	if c.Query("saved") != "" {
		f.SavedOnly = c.QueryBool("saved")
	}
	if c.Query("read") != "" {
		isRead := c.QueryBool("read")
		f.IsRead = &isRead
	}
	for _, d := range []string{f.From, f.To} {
		if d == "" {
			continue
		}
		if _, err := utils.ParseDate(d); err != nil {
			return utils.NewError(utils.CodeValidation, "Invalid date, expected YYYY-MM-DD")
		}
	}

	page, err := h.readings.List(c.Context(), auth.UserID(c), f)
	if err != nil {
		return err
	}
	return utils.SendSuccess(c, page)
}

func (h *Handlers) ReadingStats(c *fiber.Ctx) error {
	stats, err := h.readings.Stats(c.Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return utils.Success(c).
		WithData(stats).
		WithMeta("cache", h.readings.CacheStats(c.Context())).
		Send()
}

func (h *Handlers) GetReading(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	reading, err := h.readings.GetByID(c.Context(), auth.UserID(c), id)
	if err != nil {
		return err
	}
	return utils.SendSuccess(c, reading)
}

// UpdateReading applies the partial mutation body. Saved state is
// declarative; read is one-way; feedback overwrites.
func (h *Handlers) UpdateReading(c *fiber.Ctx) error {
	type input struct {
		IsSaved  *bool   `json:"is_saved"`
		IsRead   *bool   `json:"is_read"`
		Feedback *string `json:"feedback" validate:"omitempty,oneof=helpful not_helpful"`
	}
	in := new(input)
	if err := utils.StrictBodyParser(c, in); err != nil {
		return utils.NewError(utils.CodeValidation, "Invalid request format")
	}
	if verr := h.validate.Validate(in); verr != nil {
		return utils.NewError(utils.CodeValidation, "Validation failed", verr)
	}
	if in.IsSaved == nil && in.IsRead == nil && in.Feedback == nil {
		return utils.NewError(utils.CodeValidation, "Nothing to update")
	}

	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	userID := auth.UserID(c)

	reading, err := h.readings.GetByID(c.Context(), userID, id)
	if err != nil {
		return err
	}

	if in.IsRead != nil && *in.IsRead && !reading.IsRead {
		if reading, err = h.readings.MarkRead(c.Context(), userID, id); err != nil {
			return err
		}
	}
	if in.IsSaved != nil && *in.IsSaved != reading.IsSaved {
		if reading, err = h.readings.ToggleSaved(c.Context(), userID, id); err != nil {
			return err
		}
	}
	if in.Feedback != nil {
		if reading, err = h.readings.AddFeedback(c.Context(), userID, id, models.Feedback(*in.Feedback)); err != nil {
			return err
		}
	}
	return utils.SendSuccess(c, reading)
}

func (h *Handlers) DeleteReading(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.readings.Delete(c.Context(), auth.UserID(c), id); err != nil {
		return err
	}
	return utils.SendSuccess(c, fiber.Map{"deleted": true})
}
