package v1

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/astropulse/astropulse/internal/auth"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

func (h *Handlers) StartConversation(c *fiber.Ctx) error {
	type input struct {
		Title string `json:"title" validate:"max=200"`
	}
	in := new(input)
	if len(c.Body()) > 0 {
		if err := utils.StrictBodyParser(c, in); err != nil {
			return utils.NewError(utils.CodeValidation, "Invalid request format")
		}
		if verr := h.validate.Validate(in); verr != nil {
			return utils.NewError(utils.CodeValidation, "Validation failed", verr)
		}
	}

	conv, err := h.chat.Start(c.Context(), auth.UserID(c), in.Title)
	if err != nil {
		return err
	}
	return utils.Success(c).WithStatus(fiber.StatusCreated).WithData(conv).Send()
}

func (h *Handlers) ListConversations(c *fiber.Ctx) error {
	convs, err := h.chat.List(c.Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return utils.SendSuccess(c, convs)
}

func (h *Handlers) GetConversation(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	conv, err := h.chat.GetByID(c.Context(), auth.UserID(c), id)
	if err != nil {
		return err
	}
	return utils.SendSuccess(c, conv)
}

func (h *Handlers) DeleteConversation(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.chat.Delete(c.Context(), auth.UserID(c), id); err != nil {
		return err
	}
	return utils.SendSuccess(c, fiber.Map{"deleted": true})
}

// SendMessage adds a user turn and answers it. stream=true switches the
// response to SSE with token/done/error events; otherwise the full
// assistant message comes back as one JSON envelope.
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	type input struct {
		Content string `json:"content" validate:"required,min=1,max=4000"`
		Stream  bool   `json:"stream"`
	}
	in := new(input)
	if err := utils.StrictBodyParser(c, in); err != nil {
		return utils.NewError(utils.CodeValidation, "Invalid request format")
	}
	if verr := h.validate.Validate(in); verr != nil {
		return utils.NewError(utils.CodeValidation, "Validation failed", verr)
	}

	convID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	userID := auth.UserID(c)

	if !in.Stream {
		msg, err := h.chat.SendMessage(c.Context(), userID, convID, in.Content, nil)
		if err != nil {
			return err
		}
		return utils.Success(c).WithStatus(fiber.StatusCreated).WithData(msg).Send()
	}

	// The ownership check runs before headers are committed so a bad
	// conversation id still gets a plain JSON 404.
	if _, err := h.chat.GetByID(c.Context(), userID, convID); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// The writer runs after this handler returns; it must not touch the
	// fiber ctx. The fasthttp ctx stays alive for the stream's duration.
	ctx := c.Context()
	content := in.Content
	chat := h.chat
	log := h.log

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		emit := func(event string, payload interface{}) error {
			data, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
				return err
			}
			return w.Flush()
		}

		msg, err := chat.SendMessage(ctx, userID, convID, content, func(delta string) error {
			return emit("token", fiber.Map{"content": delta})
		})
		if err != nil {
			log.Warn(ctx).WithFields("error", err, "conversation_id", convID).Logs("streamed reply failed")
			var appErr *utils.CustomError
			if !errors.As(err, &appErr) {
				appErr = utils.ErrInternal
			}
			_ = emit("error", fiber.Map{"code": appErr.Code, "message": appErr.Message})
			return
		}
		_ = emit("done", fiber.Map{"message": msg})
	}))
	return nil
}
