package v1

import (
	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// AdminCreateReading stores a hand-written reading for any user,
// bypassing generation and quota.
func (h *Handlers) AdminCreateReading(c *fiber.Ctx) error {
	type input struct {
		UserID     string                 `json:"user_id" validate:"required,uuid4"`
		Date       string                 `json:"date" validate:"required,dateonly"`
		Type       string                 `json:"type" validate:"required,oneof=daily weekly monthly"`
		Sections   models.ReadingSections `json:"sections" validate:"required"`
		Highlights []string               `json:"highlights" validate:"max=10,dive,min=1,max=200"`
	}
	in := new(input)
	if err := utils.StrictBodyParser(c, in); err != nil {
		return utils.NewError(utils.CodeValidation, "Invalid request format")
	}
	if verr := h.validate.Validate(in); verr != nil {
		return utils.NewError(utils.CodeValidation, "Validation failed", verr)
	}

	userID, err := uuid.Parse(in.UserID)
	if err != nil {
		return utils.NewError(utils.CodeValidation, "Invalid user id")
	}

	reading, err := h.readings.CreateDirect(c.Context(), userID, in.Date, models.ReadingType(in.Type), in.Sections, in.Highlights)
	if err != nil {
		return err
	}
	h.log.Info(c.Context()).WithFields("target_user", userID, "date", in.Date).Logs("admin created reading")
	return utils.Success(c).WithStatus(fiber.StatusCreated).WithData(reading).Send()
}

// AdminReadingRange lists readings across all users within [from, to].
func (h *Handlers) AdminReadingRange(c *fiber.Ctx) error {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		return utils.NewError(utils.CodeValidation, "from and to dates are required")
	}
	readings, err := h.readings.Range(c.Context(), from, to)
	if err != nil {
		return err
	}
	return utils.Success(c).
		WithData(readings).
		WithMeta("count", len(readings)).
		Send()
}

// AdminCleanupReadings bulk-deletes readings dated before the cutoff
// and purges the reading cache so no entry outlives its row.
func (h *Handlers) AdminCleanupReadings(c *fiber.Ctx) error {
	before := c.Query("before")
	if before == "" {
		return utils.NewError(utils.CodeValidation, "before date is required")
	}
	deleted, err := h.readings.CleanupBefore(c.Context(), before)
	if err != nil {
		return err
	}
	purged := h.cache.PurgeAll(c.Context())
	h.log.Info(c.Context()).WithFields("before", before, "deleted", deleted, "purged", purged).Logs("admin cleanup finished")
	return utils.SendSuccess(c, fiber.Map{"deleted": deleted, "cache_purged": purged})
}

// AdminCacheStats exposes the reading cache hit/miss counters.
func (h *Handlers) AdminCacheStats(c *fiber.Ctx) error {
	return utils.SendSuccess(c, h.cache.Stats(c.Context()))
}

// AdminSetPlan switches a user's subscription tier.
func (h *Handlers) AdminSetPlan(c *fiber.Ctx) error {
	type input struct {
		Plan string `json:"plan" validate:"required,oneof=free premium"`
	}
	in := new(input)
	if err := utils.StrictBodyParser(c, in); err != nil {
		return utils.NewError(utils.CodeValidation, "Invalid request format")
	}
	if verr := h.validate.Validate(in); verr != nil {
		return utils.NewError(utils.CodeValidation, "Validation failed", verr)
	}

	userID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	user, err := h.users.GetByID(c.Context(), userID)
	if err != nil {
		return err
	}
	if user == nil {
		return utils.NewError(utils.CodeNotFound, "User not found")
	}

	if err := h.quota.SetPlan(c.Context(), userID, models.Plan(in.Plan)); err != nil {
		return err
	}
	status, err := h.quota.Status(c.Context(), userID)
	if err != nil {
		return err
	}
	h.log.Info(c.Context()).WithFields("target_user", userID, "plan", in.Plan).Logs("admin changed plan")
	return utils.SendSuccess(c, status)
}
