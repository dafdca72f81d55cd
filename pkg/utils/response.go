package utils

import (
	"github.com/gofiber/fiber/v2"
)

// Response holds the standardized success envelope.
type Response struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// ResponseBuilder builds a response with a fluent interface.
type ResponseBuilder struct {
	C          *fiber.Ctx
	StatusCode int
	Data       interface{}
	Meta       map[string]interface{}
}

// Success starts a success response.
func Success(c *fiber.Ctx) *ResponseBuilder {
	return &ResponseBuilder{
		C:          c,
		StatusCode: fiber.StatusOK,
	}
}

// WithStatus overrides the HTTP status (e.g. 201 for freshly generated resources).
func (b *ResponseBuilder) WithStatus(status int) *ResponseBuilder {
	b.StatusCode = status
	return b
}

// WithData adds the payload to the response.
func (b *ResponseBuilder) WithData(data interface{}) *ResponseBuilder {
	b.Data = data
	return b
}

// WithMeta adds a meta key to the response.
func (b *ResponseBuilder) WithMeta(key string, value interface{}) *ResponseBuilder {
	if b.Meta == nil {
		b.Meta = map[string]interface{}{}
	}
	b.Meta[key] = value
	return b
}

// Send writes the envelope.
func (b *ResponseBuilder) Send() error {
	return b.C.Status(b.StatusCode).JSON(Response{
		Data: b.Data,
		Meta: b.Meta,
	})
}

// SendSuccess is a convenience function to send a success response directly.
func SendSuccess(c *fiber.Ctx, data interface{}) error {
	return Success(c).WithData(data).Send()
}

// SendError is a convenience function to send an error response directly.
func SendError(c *fiber.Ctx, err error) error {
	return HandleError(c, err)
}
