package v1

import (
	"strings"

	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// birthInput is the optional birth block shared by register and
// profile updates. All-or-nothing: a partial block fails validation.
type birthInput struct {
	BirthDate  string  `json:"birth_date" validate:"required,dateonly"`
	BirthTime  string  `json:"birth_time" validate:"required,clocktime"`
	BirthPlace string  `json:"birth_place" validate:"max=200"`
	Latitude   float64 `json:"latitude" validate:"latitude"`
	Longitude  float64 `json:"longitude" validate:"longitude"`
	Timezone   string  `json:"timezone" validate:"max=50"`
}

func (b *birthInput) details() models.BirthDetails {
	return models.BirthDetails{
		BirthDate:  b.BirthDate,
		BirthTime:  b.BirthTime,
		BirthPlace: b.BirthPlace,
		Latitude:   b.Latitude,
		Longitude:  b.Longitude,
		Timezone:   b.Timezone,
	}
}

func (h *Handlers) RegisterUser(c *fiber.Ctx) error {
	type input struct {
		Email    string      `json:"email" validate:"required,email,max=100"`
		Password string      `json:"password" validate:"required,min=8,max=72"`
		Name     string      `json:"name" validate:"required,min=1,max=100"`
		Birth    *birthInput `json:"birth"`
	}
	in := new(input)
	if err := utils.StrictBodyParser(c, in); err != nil {
		return utils.NewError(utils.CodeValidation, "Invalid request format")
	}
	if verr := h.validate.Validate(in); verr != nil {
		return utils.NewError(utils.CodeValidation, "Validation failed", verr)
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	hashed, err := utils.HashPassword(in.Password)
	if err != nil {
		h.log.Error(c.Context()).WithFields("error", err).Logs("password hash failed")
		return utils.NewError(utils.CodeInternal, "Failed to process password")
	}

	user := &models.User{
		Email:    in.Email,
		Password: hashed,
		Name:     in.Name,
	}
	if in.Birth != nil {
		user.Birth = in.Birth.details()
	}
	if err := h.users.Create(c.Context(), user); err != nil {
		return err
	}

	tokens, err := h.auth.IssueTokens(c.Context(), user.ID)
	if err != nil {
		return err
	}

	h.log.Info(c.Context()).WithFields("user_id", user.ID).Logs("user registered")
	return utils.Success(c).
		WithStatus(fiber.StatusCreated).
		WithData(fiber.Map{"user": user, "tokens": tokens}).
		Send()
}

func (h *Handlers) Login(c *fiber.Ctx) error {
	type input struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	in := new(input)
	if err := utils.StrictBodyParser(c, in); err != nil {
		return utils.NewError(utils.CodeValidation, "Invalid request format")
	}
	if verr := h.validate.Validate(in); verr != nil {
		return utils.NewError(utils.CodeValidation, "Validation failed", verr)
	}

	user, err := h.users.GetByEmail(c.Context(), strings.ToLower(strings.TrimSpace(in.Email)))
	if err != nil {
		return err
	}
	// Missing user and wrong password answer identically.
	if user == nil || utils.ComparePasswords(user.Password, in.Password) != nil {
		return utils.NewError(utils.CodeAuthRequired, "Invalid email or password")
	}

	tokens, err := h.auth.IssueTokens(c.Context(), user.ID)
	if err != nil {
		return err
	}

	h.log.Info(c.Context()).WithFields("user_id", user.ID).Logs("user logged in")
	return utils.SendSuccess(c, fiber.Map{"user": user, "tokens": tokens})
}

func (h *Handlers) RefreshSession(c *fiber.Ctx) error {
	type input struct {
		RefreshToken string `json:"refresh_token"`
	}
	in := new(input)
	if len(c.Body()) > 0 {
		if err := utils.StrictBodyParser(c, in); err != nil {
			return utils.NewError(utils.CodeValidation, "Invalid request format")
		}
	}
	token := in.RefreshToken
	if token == "" {
		token = c.Cookies("refresh_token")
	}

	tokens, err := h.auth.Refresh(c.Context(), token)
	if err != nil {
		return err
	}
	return utils.SendSuccess(c, fiber.Map{"tokens": tokens})
}

func (h *Handlers) Logout(c *fiber.Ctx) error {
	type input struct {
		RefreshToken string `json:"refresh_token"`
	}
	in := new(input)
	if len(c.Body()) > 0 {
		if err := utils.StrictBodyParser(c, in); err != nil {
			return utils.NewError(utils.CodeValidation, "Invalid request format")
		}
	}
	refresh := in.RefreshToken
	if refresh == "" {
		refresh = c.Cookies("refresh_token")
	}

	access := strings.TrimSpace(strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "))
	h.auth.Revoke(c.Context(), access, refresh)

	return utils.SendSuccess(c, fiber.Map{"logged_out": true})
}
