package services

import (
	"context"
	"io"
	"sync"

	"github.com/dskvich/polychat/pkg/domain"
	"github.com/dskvich/polychat/pkg/payments"
	"github.com/dskvich/polychat/pkg/provider"
)

type memStore struct {
	mu       sync.Mutex
	users    map[string]*domain.User
	chats    map[string]domain.Chat
	messages []domain.ChatMessage
	addErr   error
}

func newMemStore() *memStore {
	return &memStore{
		users: map[string]*domain.User{},
		chats: map[string]domain.Chat{},
	}
}

func (m *memStore) Create(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = &u
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) AdjustBalance(_ context.Context, id string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	u.TokenBalance += delta
	return u.TokenBalance, nil
}

func (m *memStore) balance(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id].TokenBalance
}

type memChats struct{ *memStore }

func (c memChats) CreateWithMessage(_ context.Context, chat domain.Chat, msg domain.ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats[chat.ID] = chat
	c.messages = append(c.messages, msg)
	return nil
}

func (c memChats) GetByID(_ context.Context, id string) (*domain.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chat, ok := c.chats[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &chat, nil
}

func (c memChats) ListByUser(_ context.Context, userID string) ([]domain.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Chat
	for _, chat := range c.chats {
		if chat.UserID == userID {
			out = append(out, chat)
		}
	}
	return out, nil
}

func (c memChats) UpdateTitle(_ context.Context, id, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	chat, ok := c.chats[id]
	if !ok {
		return domain.ErrNotFound
	}
	chat.Title = title
	c.chats[id] = chat
	return nil
}

func (c memChats) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.chats, id)
	return nil
}

type memMessages struct{ *memStore }

func (m memMessages) Add(_ context.Context, msg domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m memMessages) ListByChat(_ context.Context, chatID string) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ChatMessage
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type fakeGenerations struct {
	mu     sync.Mutex
	active map[string]bool
}

func (g *fakeGenerations) TryStart(chatID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.active == nil {
		g.active = map[string]bool{}
	}
	if g.active[chatID] {
		return false
	}
	g.active[chatID] = true
	return true
}

func (g *fakeGenerations) Finish(chatID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, chatID)
}

type fakeStream struct {
	chunks []any
	err    error
}

func (s *fakeStream) Recv() (any, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *fakeStream) Close() error { return nil }

type fakeAdapter struct {
	name      domain.ProviderName
	chunks    []string
	streamErr error
	openErr   error
	image     *domain.Image
	imageErr  error

	gotInput  provider.FormatInput
	gotImages []domain.ImageRequest
}

func (a *fakeAdapter) Name() domain.ProviderName { return a.name }

func (a *fakeAdapter) FormatMessages(in provider.FormatInput) provider.FormattedRequest {
	a.gotInput = in
	return provider.FormattedRequest{}
}

func (a *fakeAdapter) GenerateChatStream(context.Context, provider.FormattedRequest, domain.Persona) (provider.Stream, error) {
	if a.openErr != nil {
		return nil, a.openErr
	}
	chunks := make([]any, 0, len(a.chunks))
	for _, c := range a.chunks {
		chunks = append(chunks, c)
	}
	return &fakeStream{chunks: chunks, err: a.streamErr}, nil
}

func (a *fakeAdapter) ExtractContent(chunk any) string {
	s, _ := chunk.(string)
	return s
}

func (a *fakeAdapter) GenerateImage(_ context.Context, req domain.ImageRequest) (*domain.Image, error) {
	a.gotImages = append(a.gotImages, req)
	if a.imageErr != nil {
		return nil, a.imageErr
	}
	img := *a.image
	return &img, nil
}

type fakeRegistry struct {
	adapter *fakeAdapter
	asked   []string
}

func (r *fakeRegistry) Get(name string) provider.Adapter {
	r.asked = append(r.asked, name)
	return r.adapter
}

type fakeTitles struct {
	title string
	err   error
}

func (f fakeTitles) GenerateTitle(context.Context, string) (string, error) {
	return f.title, f.err
}

type passPersonas struct{}

func (passPersonas) Resolve(p domain.Persona) (domain.Persona, error) {
	if p.Provider == "" {
		return p, domain.NewValidationError("persona must have a provider or a name")
	}
	return p, nil
}

type fakeNotifier struct {
	keys []string
}

func (n *fakeNotifier) Alert(_ context.Context, key, _ string) error {
	n.keys = append(n.keys, key)
	return nil
}

type fakeTokens struct{}

func (fakeTokens) Issue(userID string) (string, error) {
	return "token-" + userID, nil
}

type fakePrompts struct {
	prompts map[int64]string
	owners  map[int64]string
}

func (f *fakePrompts) Save(_ context.Context, userID, prompt string) (int64, error) {
	if f.prompts == nil {
		f.prompts = map[int64]string{}
		f.owners = map[int64]string{}
	}
	id := int64(len(f.prompts) + 1)
	f.prompts[id] = prompt
	f.owners[id] = userID
	return id, nil
}

func (f *fakePrompts) GetByID(_ context.Context, userID string, id int64) (string, error) {
	p, ok := f.prompts[id]
	if !ok || f.owners[id] != userID {
		return "", domain.ErrNotFound
	}
	return p, nil
}

type fakePayments struct {
	pending   map[string]domain.Payment
	completed map[string]bool
	credit    func(userID string, tokens int64)
}

func (f *fakePayments) CreatePending(_ context.Context, p domain.Payment) error {
	if f.pending == nil {
		f.pending = map[string]domain.Payment{}
	}
	f.pending[p.SessionID] = p
	return nil
}

func (f *fakePayments) CompleteAndCredit(_ context.Context, sessionID string) (*domain.Payment, bool, error) {
	p, ok := f.pending[sessionID]
	if !ok || f.completed[sessionID] {
		return nil, false, nil
	}
	if f.completed == nil {
		f.completed = map[string]bool{}
	}
	f.completed[sessionID] = true
	p.Status = domain.PaymentCompleted
	f.credit(p.UserID, p.Tokens)
	return &p, true, nil
}

type fakeCheckout struct {
	completed *payments.CompletedCheckout
	parseErr  error
}

func (f fakeCheckout) CreateCheckout(_ context.Context, userID string, pack domain.TokenPack) (*payments.CheckoutSession, error) {
	return &payments.CheckoutSession{ID: "cs_" + userID + "_" + pack.Name, URL: "https://checkout.example/" + pack.Name}, nil
}

func (f fakeCheckout) ParseWebhook([]byte, string) (*payments.CompletedCheckout, error) {
	return f.completed, f.parseErr
}
