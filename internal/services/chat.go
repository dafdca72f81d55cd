package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/astropulse/astropulse/internal/datastore"
	"github.com/astropulse/astropulse/internal/llm"
	"github.com/astropulse/astropulse/internal/models"
	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/google/uuid"
)

// chatHistoryLimit bounds how many past turns go back to the model.
const chatHistoryLimit = 20

// ChatService runs the ask-the-astrologer conversations.
type ChatService struct {
	convs *datastore.ConversationRepository
	users *datastore.UserRepository
	llm   llm.Client
	log   *logger.Logger
}

func NewChatService(convs *datastore.ConversationRepository, users *datastore.UserRepository, llmClient llm.Client, log *logger.Logger) *ChatService {
	return &ChatService{convs: convs, users: users, llm: llmClient, log: log}
}

// Start opens a new conversation.
func (s *ChatService) Start(ctx context.Context, userID uuid.UUID, title string) (*models.Conversation, error) {
	conv := &models.Conversation{UserID: userID, Title: title}
	if err := s.convs.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// List returns the user's conversations, most recent activity first.
func (s *ChatService) List(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	return s.convs.List(ctx, userID)
}

// GetByID returns one owned conversation with its messages.
func (s *ChatService) GetByID(ctx context.Context, userID, id uuid.UUID) (*models.Conversation, error) {
	conv, err := s.convs.GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, utils.NewError(utils.CodeNotFound, "Conversation not found")
	}
	return conv, nil
}

// Delete removes an owned conversation and its messages.
func (s *ChatService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	deleted, err := s.convs.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return utils.NewError(utils.CodeNotFound, "Conversation not found")
	}
	return nil
}

// persona builds the system prompt, anchored to the user's birth
// details when they are on file.
func (s *ChatService) persona(ctx context.Context, userID uuid.UUID) string {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil || user == nil {
		return llm.AstrologerPersona
	}
	var b strings.Builder
	b.WriteString(llm.AstrologerPersona)
	if user.Name != "" {
		fmt.Fprintf(&b, " You are speaking with %s.", user.Name)
	}
	if user.Birth.Complete() {
		fmt.Fprintf(&b, " They were born on %s at %s", user.Birth.BirthDate, user.Birth.BirthTime)
		if user.Birth.BirthPlace != "" {
			fmt.Fprintf(&b, " in %s", user.Birth.BirthPlace)
		}
		b.WriteString(".")
	}
	return b.String()
}

// SendMessage appends the user's message, streams the astrologer's
// reply through onDelta, and persists the full reply. A partial reply
// interrupted mid-stream is still persisted so the thread keeps it.
func (s *ChatService) SendMessage(ctx context.Context, userID, convID uuid.UUID, content string, onDelta func(string) error) (*models.Message, error) {
	conv, err := s.convs.GetByID(ctx, convID, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, utils.NewError(utils.CodeNotFound, "Conversation not found")
	}

	userMsg := &models.Message{ConversationID: convID, Role: models.RoleUser, Content: content}
	if err := s.convs.AddMessage(ctx, userMsg); err != nil {
		return nil, err
	}
	if conv.Title == "" {
		if err := s.convs.SetTitle(ctx, convID, deriveTitle(content)); err != nil {
			s.log.Warn(ctx).WithFields("error", err).Logs("conversation auto-title failed")
		}
	}

	history, err := s.convs.History(ctx, convID, chatHistoryLimit)
	if err != nil {
		return nil, err
	}
	turns := make([]llm.ChatMessage, 0, len(history))
	for _, m := range history {
		turns = append(turns, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	reply, streamErr := s.llm.StreamChat(ctx, s.persona(ctx, userID), turns, onDelta)
	if reply == "" {
		if streamErr != nil {
			return nil, streamErr
		}
		return nil, utils.NewError(utils.CodeBackendError, "The astrologer had nothing to say")
	}
	if streamErr != nil {
		s.log.Warn(ctx).WithFields("error", streamErr, "conversation_id", convID).Logs("chat stream ended early, keeping partial reply")
	}

	assistantMsg := &models.Message{ConversationID: convID, Role: models.RoleAssistant, Content: reply}
	if err := s.convs.AddMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}
	return assistantMsg, nil
}

// deriveTitle trims the first message into a thread title.
func deriveTitle(content string) string {
	title := strings.TrimSpace(content)
	if idx := strings.IndexAny(title, "\r\n"); idx > 0 {
		title = title[:idx]
	}
	const max = 60
	if runes := []rune(title); len(runes) > max {
		title = strings.TrimSpace(string(runes[:max])) + "…"
	}
	return title
}
