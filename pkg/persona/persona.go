// Package persona manages reusable voice profiles that shape generated
// content. Profiles are JSON files in a directory, validated against a
// schema and hot-reloaded when they change on disk.
package persona

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fennelworks/convo/pkg/chat"
)

// Persona describes a voice profile applied to generation requests.
type Persona struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Tone        string            `json:"tone"`
	Style       string            `json:"style"`
	Audience    string            `json:"audience"`
	Values      []string          `json:"values,omitempty"`
	KeyMessages []string          `json:"key_messages,omitempty"`
	Terminology map[string]string `json:"terminology,omitempty"`
}

// Guide renders the persona as a markdown voice guide suitable for
// inclusion in a system instruction.
func (p *Persona) Guide() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Brand Voice Guide\n\n", p.Name)
	fmt.Fprintf(&b, "## Tone\nUse a %s tone in all communications.\n\n", p.Tone)
	fmt.Fprintf(&b, "## Style\nMaintain a %s writing style.\n\n", p.Style)
	fmt.Fprintf(&b, "## Target Audience\nContent is designed for %s audiences.\n", p.Audience)

	if len(p.Values) > 0 {
		b.WriteString("\n## Core Values\n")
		for _, v := range p.Values {
			fmt.Fprintf(&b, "- %s\n", v)
		}
	}
	if len(p.KeyMessages) > 0 {
		b.WriteString("\n## Key Messages\n")
		for _, m := range p.KeyMessages {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	if len(p.Terminology) > 0 {
		b.WriteString("\n## Preferred Terminology\n")
		avoid := make([]string, 0, len(p.Terminology))
		for a := range p.Terminology {
			avoid = append(avoid, a)
		}
		sort.Strings(avoid)
		for _, a := range avoid {
			fmt.Fprintf(&b, "- Use '%s' instead of '%s'\n", p.Terminology[a], a)
		}
	}
	return b.String()
}

// Registry holds the loaded personas. Lookups are safe for concurrent
// use with reloads.
type Registry struct {
	mu       sync.RWMutex
	personas map[string]*Persona
	logger   zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		personas: make(map[string]*Persona),
		logger:   logger.With().Str("component", "persona-registry").Logger(),
	}
}

// Lookup returns the persona with the given id. An empty id means no
// persona is selected and resolves to nil without error.
func (r *Registry) Lookup(id string) (*Persona, error) {
	if id == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[id]
	if !ok {
		return nil, chat.ErrUnknownPersona
	}
	return p, nil
}

// GuideFor resolves a persona id to its rendered guide. Empty id means
// no guide.
func (r *Registry) GuideFor(id string) (string, error) {
	p, err := r.Lookup(id)
	if err != nil || p == nil {
		return "", err
	}
	return p.Guide(), nil
}

// List returns all personas ordered by name.
func (r *Registry) List() []*Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Persona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// replace swaps the full persona set after a (re)load.
func (r *Registry) replace(personas map[string]*Persona) {
	r.mu.Lock()
	r.personas = personas
	r.mu.Unlock()
	r.logger.Info().Int("count", len(personas)).Msg("persona set replaced")
}
