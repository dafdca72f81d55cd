package v1

import (
	"strings"

	"github.com/astropulse/astropulse/internal/auth"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

func (h *Handlers) GetProfile(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	if user == nil {
		return utils.NewError(utils.CodeNotFound, "User not found")
	}
	return utils.SendSuccess(c, user)
}

func (h *Handlers) UpdateProfile(c *fiber.Ctx) error {
	type input struct {
		Name  *string     `json:"name" validate:"omitempty,min=1,max=100"`
		Birth *birthInput `json:"birth"`
	}
	in := new(input)
	if err := utils.StrictBodyParser(c, in); err != nil {
		return utils.NewError(utils.CodeValidation, "Invalid request format")
	}
	if verr := h.validate.Validate(in); verr != nil {
		return utils.NewError(utils.CodeValidation, "Validation failed", verr)
	}
	if in.Name == nil && in.Birth == nil {
		return utils.NewError(utils.CodeValidation, "Nothing to update")
	}

	userID := auth.UserID(c)
	user, err := h.users.GetByID(c.Context(), userID)
	if err != nil {
		return err
	}
	if user == nil {
		return utils.NewError(utils.CodeNotFound, "User not found")
	}

	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Birth != nil {
		user.Birth = in.Birth.details()
	}
	if err := h.users.Update(c.Context(), user); err != nil {
		return err
	}

	// Stored readings were derived from the old birth data; charts the
	// user may want to keep. Readings regenerate on demand.
	if in.Birth != nil {
		h.cache.DeleteAllForUser(c.Context(), userID)
	}

	return utils.SendSuccess(c, user)
}

// DeleteAccount removes the user and everything they own, then kills
// the session that asked for it.
func (h *Handlers) DeleteAccount(c *fiber.Ctx) error {
	type input struct {
		RefreshToken string `json:"refresh_token"`
	}
	in := new(input)
	if len(c.Body()) > 0 {
		if err := utils.StrictBodyParser(c, in); err != nil {
			return utils.NewError(utils.CodeValidation, "Invalid request format")
		}
	}

	userID := auth.UserID(c)
	if err := h.users.DeleteAccount(c.Context(), userID); err != nil {
		return err
	}
	h.cache.DeleteAllForUser(c.Context(), userID)

	access := strings.TrimSpace(strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "))
	refresh := in.RefreshToken
	if refresh == "" {
		refresh = c.Cookies("refresh_token")
	}
	h.auth.Revoke(c.Context(), access, refresh)

	h.log.Info(c.Context()).WithFields("user_id", userID).Logs("account deleted")
	return utils.SendSuccess(c, fiber.Map{"deleted": true})
}
