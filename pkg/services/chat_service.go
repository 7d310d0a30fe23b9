package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/provider"
)

const maxTitleLength = 200

type ChatRepository interface {
	CreateWithMessage(ctx context.Context, chat domain.Chat, msg domain.ChatMessage) error
	GetByID(ctx context.Context, id string) (*domain.Chat, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Chat, error)
	UpdateTitle(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
}

type MessageRepository interface {
	Add(ctx context.Context, msg domain.ChatMessage) error
	ListByChat(ctx context.Context, chatID string) ([]domain.ChatMessage, error)
}

type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	AdjustBalance(ctx context.Context, id string, delta int64) (int64, error)
}

type GenerationRepository interface {
	TryStart(chatID string) bool
	Finish(chatID string)
}

type ProviderRegistry interface {
	Get(name string) provider.Adapter
}

type TitleGenerator interface {
	GenerateTitle(ctx context.Context, firstMessage string) (string, error)
}

type PersonaResolver interface {
	Resolve(p domain.Persona) (domain.Persona, error)
}

type Notifier interface {
	Alert(ctx context.Context, key, text string) error
}

type ChatConfig struct {
	GenerationTimeout time.Duration
	TitleTimeout      time.Duration
	FallbackOrder     []domain.ProviderName
	// RequireBalance rejects generations for users without tokens left.
	RequireBalance bool
}

type chatService struct {
	chats       ChatRepository
	messages    MessageRepository
	users       UserRepository
	generations GenerationRepository
	registry    ProviderRegistry
	titles      TitleGenerator
	personas    PersonaResolver
	notifier    Notifier
	cfg         ChatConfig

	now   func() time.Time
	newID func() string
}

func NewChatService(
	chats ChatRepository,
	messages MessageRepository,
	users UserRepository,
	generations GenerationRepository,
	registry ProviderRegistry,
	titles TitleGenerator,
	personas PersonaResolver,
	notifier Notifier,
	cfg ChatConfig,
) *chatService {
	return &chatService{
		chats:       chats,
		messages:    messages,
		users:       users,
		generations: generations,
		registry:    registry,
		titles:      titles,
		personas:    personas,
		notifier:    notifier,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

func (s *chatService) ListChats(ctx context.Context, userID string) ([]domain.Chat, error) {
	chats, err := s.chats.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	return chats, nil
}

func (s *chatService) GetChat(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	return s.ownedChat(ctx, userID, chatID)
}

func (s *chatService) RenameChat(ctx context.Context, userID, chatID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.NewValidationError("title is required")
	}
	if len([]rune(title)) > maxTitleLength {
		return domain.NewValidationError("title is longer than %d characters", maxTitleLength)
	}

	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}

	if err := s.chats.UpdateTitle(ctx, chatID, title); err != nil {
		return fmt.Errorf("renaming chat: %w", err)
	}
	return nil
}

func (s *chatService) DeleteChat(ctx context.Context, userID, chatID string) error {
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}

	if err := s.chats.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("deleting chat: %w", err)
	}
	return nil
}

func (s *chatService) Messages(ctx context.Context, userID, chatID string) ([]domain.ChatMessage, error) {
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return messages, nil
}

// AddMessage appends a message to a chat owned by userID.
func (s *chatService) AddMessage(ctx context.Context, userID, chatID, content string, role domain.Role) (*domain.ChatMessage, error) {
	if !role.Valid() {
		return nil, domain.NewValidationError("unknown role %q", role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, domain.NewValidationError("content is required")
	}

	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return nil, err
	}

	msg := domain.ChatMessage{
		ID:        s.newID(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}
	if err := s.messages.Add(ctx, msg); err != nil {
		return nil, fmt.Errorf("adding message: %w", err)
	}
	return &msg, nil
}

func (s *chatService) ownedChat(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching chat: %w", err)
	}

	if chat.UserID != userID {
		return nil, fmt.Errorf("chat %s belongs to another user: %w", chatID, domain.ErrForbidden)
	}
	return chat, nil
}
