// Package llm generates reading content and powers the astrologer
// chat. The concrete backend is OpenAI; everything above this package
// talks to the Client interface so tests can swap in a fake.
package llm

import (
	"context"

	"github.com/astropulse/astropulse/internal/models"
)

// ChatMessage is one turn of an astrologer conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReadingRequest carries everything the model needs to write a reading.
type ReadingRequest struct {
	UserName   string
	BirthDate  string
	BirthTime  string
	BirthPlace string
	Timezone   string

	Date     string
	Type     models.ReadingType
	Transits string
}

// GeneratedReading is the parsed model output for one reading.
type GeneratedReading struct {
	Sections   models.ReadingSections    `json:"sections"`
	Highlights []string                  `json:"highlights"`
	Windows    []models.AuspiciousWindow `json:"auspicious_windows"`
}

// Client is the LLM surface the services consume.
type Client interface {
	// GenerateReading writes a full reading for the request's date and
	// cadence.
	GenerateReading(ctx context.Context, req ReadingRequest) (*GeneratedReading, error)

	// Complete runs a one-shot completion with a system persona.
	Complete(ctx context.Context, system, prompt string) (string, error)

	// StreamChat continues a conversation, invoking onDelta for every
	// content fragment as it arrives. Returns the full assistant reply.
	// A non-nil error from onDelta aborts the stream.
	StreamChat(ctx context.Context, system string, history []ChatMessage, onDelta func(string) error) (string, error)
}
