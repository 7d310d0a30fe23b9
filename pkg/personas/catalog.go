// Package personas loads the persona catalog offered to users.
package personas

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dskvich/polychat/pkg/domain"
)

//go:embed personas.toml
var defaultCatalog string

type catalogFile struct {
	Personas []domain.Persona `toml:"persona"`
}

type Catalog struct {
	personas []domain.Persona
	byName   map[string]int
}

// Load reads the catalog from path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	var file catalogFile

	if path == "" {
		if _, err := toml.Decode(defaultCatalog, &file); err != nil {
			return nil, fmt.Errorf("decoding built-in personas: %w", err)
		}
	} else {
		if _, err := toml.DecodeFile(path, &file); err != nil {
			return nil, fmt.Errorf("decoding personas file %s: %w", path, err)
		}
	}

	return New(file.Personas)
}

func New(personas []domain.Persona) (*Catalog, error) {
	c := &Catalog{
		personas: personas,
		byName:   make(map[string]int, len(personas)),
	}

	for i, p := range personas {
		key := normalize(p.Name)
		if key == "" {
			return nil, fmt.Errorf("persona #%d has no name", i+1)
		}
		if _, ok := c.byName[key]; ok {
			return nil, fmt.Errorf("persona %q is defined twice", p.Name)
		}
		if _, ok := domain.ParseProviderName(p.Provider); !ok {
			slog.Warn("Persona uses an unknown provider, openai will serve it", "persona", p.Name, "provider", p.Provider)
		}
		c.byName[key] = i
	}
	return c, nil
}

func (c *Catalog) All() []domain.Persona {
	out := make([]domain.Persona, len(c.personas))
	copy(out, c.personas)
	return out
}

func (c *Catalog) Find(name string) (domain.Persona, bool) {
	i, ok := c.byName[normalize(name)]
	if !ok {
		return domain.Persona{}, false
	}
	return c.personas[i], true
}

// Resolve completes a persona sent by a client. Fields left empty are taken from the
// catalog entry with the same name. A persona without a name must name its provider.
func (c *Catalog) Resolve(p domain.Persona) (domain.Persona, error) {
	known, ok := c.Find(p.Name)
	if !ok {
		if strings.TrimSpace(p.Provider) == "" {
			if p.Name != "" {
				return p, domain.NewValidationError("unknown persona %q", p.Name)
			}
			return p, domain.NewValidationError("persona must have a provider or a name")
		}
		return p, nil
	}

	if p.Role == "" {
		p.Role = known.Role
	}
	if p.Provider == "" {
		p.Provider = known.Provider
	}
	if p.ModelCodeName == "" {
		p.ModelCodeName = known.ModelCodeName
	}
	if p.Instructions == "" {
		p.Instructions = known.Instructions
	}
	if p.Capabilities == (domain.Capabilities{}) {
		p.Capabilities = known.Capabilities
	}
	if p.Allowed == (domain.Permissions{}) {
		p.Allowed = known.Allowed
	}
	return p, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
