package handler

import (
	"net/http"

	"github.com/dskvich/polychat/pkg/api/response"
	"github.com/dskvich/polychat/pkg/domain"
)

type PersonaLister interface {
	All() []domain.Persona
}

type ProviderLister interface {
	Names() []domain.ProviderName
}

type catalog struct {
	personas  PersonaLister
	providers ProviderLister
	writer    response.JSONResponseWriter
}

func NewCatalog(personas PersonaLister, providers ProviderLister) *catalog {
	return &catalog{personas: personas, providers: providers}
}

func (c *catalog) Personas(w http.ResponseWriter, _ *http.Request) {
	c.writer.WriteSuccessResponse(w, http.StatusOK, c.personas.All())
}

func (c *catalog) Providers(w http.ResponseWriter, _ *http.Request) {
	c.writer.WriteSuccessResponse(w, http.StatusOK, c.providers.Names())
}

func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
