package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/fallback"
	"github.com/dskvich/polychat/pkg/logger"
	"github.com/dskvich/polychat/pkg/provider"
)

type generationState string

const (
	stateCreatingChat        generationState = "creating_chat"
	statePersistingUser      generationState = "persisting_user_message"
	stateStreaming           generationState = "streaming"
	statePersistingAssistant generationState = "persisting_assistant_message"
	stateIdle                generationState = "idle"
	stateFailed              generationState = "failed"
)

var errClientGone = errors.New("client went away")

// Generation is a validated chat request whose user message is already stored.
// Relay must be called exactly once for every Generation returned by Start.
type Generation struct {
	ChatID  string
	Created bool

	userID  string
	persona domain.Persona
	adapter provider.Adapter
	history []domain.ChatMessage
	file    *domain.File
	release func()
}

// Start validates req, creates the chat when needed and persists the user message.
func (s *chatService) Start(ctx context.Context, req domain.ChatRequest) (*Generation, error) {
	if err := validateChatRequest(req); err != nil {
		return nil, err
	}

	persona, err := s.personas.Resolve(req.Persona)
	if err != nil {
		return nil, err
	}

	if err := checkFilePermission(persona, req.File); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", req.UserID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}

	if s.cfg.RequireBalance && user.TokenBalance <= 0 {
		return nil, fmt.Errorf("user %s: %w", user.ID, domain.ErrPaymentRequired)
	}

	adapter := s.registry.Get(persona.Provider)
	last := req.Messages[len(req.Messages)-1]
	userMsg := domain.ChatMessage{
		ID:        s.newID(),
		Role:      domain.RoleUser,
		Content:   last.Content,
		Timestamp: s.now(),
	}

	gen := &Generation{
		userID:  user.ID,
		persona: persona,
		adapter: adapter,
		history: req.Messages,
		file:    req.File,
	}

	if req.ChatID == "" {
		s.logState(ctx, "", stateCreatingChat)

		now := s.now()
		chat := domain.Chat{
			ID:        s.newID(),
			UserID:    user.ID,
			Title:     s.title(ctx, last.Content),
			Provider:  string(adapter.Name()),
			Model:     persona.ModelCodeName,
			CreatedAt: now,
			UpdatedAt: now,
		}
		userMsg.ChatID = chat.ID

		if err := s.chats.CreateWithMessage(ctx, chat, userMsg); err != nil {
			s.logFailure(ctx, chat.ID, stateCreatingChat, err)
			return nil, fmt.Errorf("creating chat: %w", err)
		}

		s.generations.TryStart(chat.ID)
		gen.ChatID = chat.ID
		gen.Created = true
		gen.release = sync.OnceFunc(func() { s.generations.Finish(chat.ID) })
		return gen, nil
	}

	if _, err := s.ownedChat(ctx, user.ID, req.ChatID); err != nil {
		return nil, err
	}

	if !s.generations.TryStart(req.ChatID) {
		return nil, fmt.Errorf("chat %s already has a response in progress: %w", req.ChatID, domain.ErrConflict)
	}
	release := sync.OnceFunc(func() { s.generations.Finish(req.ChatID) })

	s.logState(ctx, req.ChatID, statePersistingUser)
	userMsg.ChatID = req.ChatID
	if err := s.messages.Add(ctx, userMsg); err != nil {
		release()
		s.logFailure(ctx, req.ChatID, statePersistingUser, err)
		return nil, fmt.Errorf("saving user message: %w", err)
	}

	gen.ChatID = req.ChatID
	gen.release = release
	return gen, nil
}

// Relay streams the assistant answer through emit and stores it. Failures are reported
// to the client as a single error event.
func (s *chatService) Relay(ctx context.Context, gen *Generation, emit func(domain.StreamEvent) error) {
	defer gen.release()

	persistCtx := context.WithoutCancel(ctx)

	s.logState(ctx, gen.ChatID, stateStreaming)
	content, err := s.stream(ctx, gen, emit)
	if err != nil {
		s.fail(ctx, gen, err, emit)
	}

	if content == "" {
		return
	}

	s.logState(ctx, gen.ChatID, statePersistingAssistant)
	msg := domain.ChatMessage{
		ID:        s.newID(),
		ChatID:    gen.ChatID,
		Role:      domain.RoleAssistant,
		Content:   content,
		Timestamp: s.now(),
	}
	if err := s.messages.Add(persistCtx, msg); err != nil {
		s.logFailure(ctx, gen.ChatID, statePersistingAssistant, err)
		return
	}

	s.debit(persistCtx, gen, content)
	s.logState(ctx, gen.ChatID, stateIdle)
}

func (s *chatService) stream(ctx context.Context, gen *Generation, emit func(domain.StreamEvent) error) (string, error) {
	if s.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GenerationTimeout)
		defer cancel()
	}

	formatted := gen.adapter.FormatMessages(provider.FormatInput{
		Persona:          gen.persona,
		PreviousMessages: gen.history,
		File:             gen.file,
	})

	stream, err := gen.adapter.GenerateChatStream(ctx, formatted, gen.persona)
	if err != nil {
		return "", fmt.Errorf("opening stream: %w", err)
	}
	deltas := provider.NewTextStream(gen.adapter, stream)
	defer deltas.Close()

	var b strings.Builder
	for {
		text, err := deltas.Next()
		if text = stripControlMarkers(text); text != "" {
			b.WriteString(text)
			if emitErr := emit(domain.StreamEvent{Content: text}); emitErr != nil {
				return b.String(), fmt.Errorf("%w: %v", errClientGone, emitErr)
			}
		}

		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), fmt.Errorf("receiving chunk: %w", err)
		}
	}
}

func (s *chatService) fail(ctx context.Context, gen *Generation, err error, emit func(domain.StreamEvent) error) {
	if ctx.Err() != nil || errors.Is(err, errClientGone) {
		slog.InfoContext(ctx, "Client disconnected during generation", "chat_id", gen.ChatID, logger.Err(err))
		return
	}

	name := gen.adapter.Name()
	c := fallback.Recommend(err, string(name), s.cfg.FallbackOrder)
	slog.ErrorContext(ctx, "Chat generation failed",
		"chat_id", gen.ChatID,
		"state", stateFailed,
		"from", stateStreaming,
		"provider", name,
		"kind", c.Kind,
		"fallback", c.FallbackProvider,
		logger.Err(err),
	)

	if c.Kind == fallback.KindAuth {
		text := fmt.Sprintf("%s rejected the configured credentials: %s", name, fallback.Redact(err.Error()))
		if alertErr := s.notifier.Alert(ctx, "vendor_auth:"+string(name), text); alertErr != nil {
			slog.WarnContext(ctx, "Sending operator alert failed", logger.Err(alertErr))
		}
	}

	if emitErr := emit(domain.StreamEvent{Error: c.Message, FallbackProvider: string(c.FallbackProvider)}); emitErr != nil {
		slog.WarnContext(ctx, "Writing error event failed", logger.Err(emitErr))
	}
}

func (s *chatService) debit(ctx context.Context, gen *Generation, content string) {
	tokens := estimateTokens(gen.history, content)
	balance, err := s.users.AdjustBalance(ctx, gen.userID, -tokens)
	if err != nil {
		slog.ErrorContext(ctx, "Debiting tokens failed", "tokens", tokens, logger.Err(err))
		return
	}
	slog.InfoContext(ctx, "Tokens debited", "chat_id", gen.ChatID, "tokens", tokens, "balance", balance)
}

func (s *chatService) title(ctx context.Context, firstMessage string) string {
	if s.cfg.TitleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TitleTimeout)
		defer cancel()
	}

	title, err := s.titles.GenerateTitle(ctx, firstMessage)
	if err != nil {
		slog.WarnContext(ctx, "Title generation failed, using default", logger.Err(err))
		return domain.DefaultChatTitle
	}
	return title
}

func (s *chatService) logState(ctx context.Context, chatID string, state generationState) {
	slog.DebugContext(ctx, "Generation state", "chat_id", chatID, "state", state)
}

func (s *chatService) logFailure(ctx context.Context, chatID string, from generationState, err error) {
	slog.ErrorContext(ctx, "Chat generation failed", "chat_id", chatID, "state", stateFailed, "from", from, logger.Err(err))
}

func validateChatRequest(req domain.ChatRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return domain.NewValidationError("userId is required")
	}

	if len(req.Messages) == 0 {
		return domain.NewValidationError("messages are required")
	}

	for i, m := range req.Messages {
		if !m.Role.Valid() {
			return domain.NewValidationError("message #%d has unknown role %q", i+1, m.Role)
		}
	}

	last := req.Messages[len(req.Messages)-1]
	if last.Role != domain.RoleUser {
		return domain.NewValidationError("the last message must come from the user")
	}
	if strings.TrimSpace(last.Content) == "" && req.File == nil {
		return domain.NewValidationError("the last message is empty")
	}

	if strings.TrimSpace(req.Persona.Provider) == "" && strings.TrimSpace(req.Persona.Name) == "" {
		return domain.NewValidationError("persona is required")
	}
	return nil
}

func checkFilePermission(p domain.Persona, file *domain.File) error {
	if file == nil || p.Allowed == (domain.Permissions{}) {
		return nil
	}

	isImage := strings.HasPrefix(file.Type, "image/")
	if isImage && !p.Allowed.Send.Image {
		return domain.NewValidationError("%s does not accept images", p.Name)
	}
	if !isImage && !p.Allowed.Send.File {
		return domain.NewValidationError("%s does not accept files", p.Name)
	}
	return nil
}

func stripControlMarkers(text string) string {
	for _, marker := range domain.StreamControlMarkers {
		text = strings.ReplaceAll(text, marker, "")
	}
	return text
}

// estimateTokens approximates usage at four characters per token.
func estimateTokens(history []domain.ChatMessage, answer string) int64 {
	n := utf8.RuneCountInString(answer)
	for _, m := range history {
		n += utf8.RuneCountInString(m.Content)
	}
	return int64(max(1, n/4))
}
