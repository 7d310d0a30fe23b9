package repository

import "sync"

// generationRepository tracks chats with a generation in flight.
type generationRepository struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewGenerationRepository() *generationRepository {
	return &generationRepository{
		active: make(map[string]struct{}),
	}
}

// TryStart marks chatID busy. It returns false if a generation is already running.
func (g *generationRepository) TryStart(chatID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.active[chatID]; ok {
		return false
	}
	g.active[chatID] = struct{}{}
	return true
}

func (g *generationRepository) Finish(chatID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.active, chatID)
}
