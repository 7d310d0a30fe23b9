package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dskvich/polychat/pkg/domain"
)

type PromptsRepository interface {
	Save(ctx context.Context, userID, prompt string) (int64, error)
	GetByID(ctx context.Context, userID string, id int64) (string, error)
}

type imageService struct {
	registry    ProviderRegistry
	promptsRepo PromptsRepository
}

func NewImageService(registry ProviderRegistry, promptsRepo PromptsRepository) *imageService {
	return &imageService{
		registry:    registry,
		promptsRepo: promptsRepo,
	}
}

func (s *imageService) GenerateImage(ctx context.Context, userID, providerName string, req domain.ImageRequest) (*domain.Image, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, domain.NewValidationError("prompt is required")
	}

	slog.InfoContext(ctx, "Starting image generation", "provider", providerName)

	promptID, err := s.promptsRepo.Save(ctx, userID, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("saving prompt: %w", err)
	}

	slog.InfoContext(ctx, "Prompt saved", "promptID", promptID)

	return s.generate(ctx, providerName, promptID, req)
}

// RegenerateImage draws a previously saved prompt of the same user again.
func (s *imageService) RegenerateImage(ctx context.Context, userID, providerName string, promptID int64) (*domain.Image, error) {
	prompt, err := s.promptsRepo.GetByID(ctx, userID, promptID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("prompt %d: %w", promptID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting prompt: %w", err)
	}

	return s.generate(ctx, providerName, promptID, domain.ImageRequest{Prompt: prompt})
}

func (s *imageService) generate(ctx context.Context, providerName string, promptID int64, req domain.ImageRequest) (*domain.Image, error) {
	image, err := s.registry.Get(providerName).GenerateImage(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotSupported) {
			return nil, domain.NewValidationError("%s", err.Error())
		}
		return nil, fmt.Errorf("generating image: %w", err)
	}

	image.PromptID = promptID
	slog.InfoContext(ctx, "Image generated", "promptID", promptID)
	return image, nil
}
