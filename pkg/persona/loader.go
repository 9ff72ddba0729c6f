package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// personaIDRegex validates persona ID format (lowercase alphanumeric with hyphens)
var personaIDRegex = regexp.MustCompile(`^[a-z0-9-]+$`)

// personaSchema is the JSON schema every persona file must satisfy.
const personaSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name", "tone", "style", "audience"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 1},
    "tone": {"type": "string", "minLength": 1},
    "style": {"type": "string", "minLength": 1},
    "audience": {"type": "string", "minLength": 1},
    "values": {"type": "array", "items": {"type": "string"}},
    "key_messages": {"type": "array", "items": {"type": "string"}},
    "terminology": {"type": "object", "additionalProperties": {"type": "string"}}
  },
  "additionalProperties": false
}`

// Loader reads and validates persona files.
type Loader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewLoader creates a persona loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger:       logger.With().Str("component", "persona-loader").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(personaSchema),
	}
}

// LoadFile loads and validates a single persona file.
func (l *Loader) LoadFile(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona file: %w", err)
	}

	if err := l.validateSchema(data); err != nil {
		return nil, fmt.Errorf("persona schema validation failed: %w", err)
	}

	var p Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse persona JSON: %w", err)
	}

	if !personaIDRegex.MatchString(p.ID) {
		return nil, fmt.Errorf("invalid persona ID format: %s (must be lowercase alphanumeric with hyphens)", p.ID)
	}

	l.logger.Debug().Str("id", p.ID).Str("name", p.Name).Msg("loaded persona")
	return &p, nil
}

// LoadDir loads every *.json file in dir. Files that fail validation
// are skipped with a warning so one bad profile does not take the rest
// down. A missing directory yields an empty set.
func (l *Loader) LoadDir(dir string) (map[string]*Persona, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Persona{}, nil
		}
		return nil, fmt.Errorf("failed to read persona directory: %w", err)
	}

	personas := make(map[string]*Persona)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		p, err := l.LoadFile(path)
		if err != nil {
			l.logger.Warn().Str("file", entry.Name()).Err(err).Msg("skipping invalid persona file")
			continue
		}
		if _, dup := personas[p.ID]; dup {
			l.logger.Warn().Str("id", p.ID).Str("file", entry.Name()).Msg("duplicate persona id, keeping first")
			continue
		}
		personas[p.ID] = p
	}
	return personas, nil
}

func (l *Loader) validateSchema(data []byte) error {
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(l.schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var errMsg string
		for i, verr := range result.Errors() {
			if i > 0 {
				errMsg += "; "
			}
			errMsg += verr.String()
		}
		return fmt.Errorf("schema validation errors: %s", errMsg)
	}
	return nil
}
