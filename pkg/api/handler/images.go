package handler

import (
	"context"
	"net/http"

	"github.com/dskvich/polychat/pkg/api/middleware"
	"github.com/dskvich/polychat/pkg/api/response"
	"github.com/dskvich/polychat/pkg/domain"
)

type ImageGenerator interface {
	GenerateImage(ctx context.Context, userID, providerName string, req domain.ImageRequest) (*domain.Image, error)
	RegenerateImage(ctx context.Context, userID, providerName string, promptID int64) (*domain.Image, error)
}

type images struct {
	generator ImageGenerator
	writer    response.JSONResponseWriter
}

func NewImages(generator ImageGenerator) *images {
	return &images{generator: generator}
}

func (i *images) Generate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		domain.ImageRequest
		Provider string `json:"provider"`
		PromptID int64  `json:"promptId"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		i.writer.WriteError(r.Context(), w, err)
		return
	}

	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var (
		img *domain.Image
		err error
	)
	if body.PromptID > 0 && body.Prompt == "" {
		img, err = i.generator.RegenerateImage(ctx, userID, body.Provider, body.PromptID)
	} else {
		img, err = i.generator.GenerateImage(ctx, userID, body.Provider, body.ImageRequest)
	}
	if err != nil {
		i.writer.WriteError(ctx, w, err)
		return
	}
	i.writer.WriteSuccessResponse(w, http.StatusOK, img)
}
