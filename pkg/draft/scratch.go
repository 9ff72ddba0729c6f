package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fennelworks/convo/pkg/chat"
)

// Scratch persists draft snapshots as one JSON file per session under a
// scratch directory. This is the autosave target: local and disposable,
// deliberately separate from the permanent session store.
type Scratch struct {
	dir    string
	logger zerolog.Logger
}

// NewScratch creates the scratch directory if needed.
func NewScratch(dir string, logger zerolog.Logger) (*Scratch, error) {
	if dir == "" {
		return nil, fmt.Errorf("scratch directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return &Scratch{
		dir:    dir,
		logger: logger.With().Str("component", "draft-scratch").Logger(),
	}, nil
}

func (s *Scratch) path(sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("session id cannot be empty")
	}
	if strings.ContainsAny(sessionID, "/\\") || strings.Contains(sessionID, "..") {
		return "", fmt.Errorf("session id cannot contain path separators")
	}
	return filepath.Join(s.dir, sessionID+".json"), nil
}

// Save writes the snapshot atomically (temp file + rename).
func (s *Scratch) Save(ctx context.Context, sessionID string, snap chat.Draft) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write draft: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace draft file: %w", err)
	}

	s.logger.Debug().Str("session_id", sessionID).Msg("Draft saved")
	return nil
}

// Load reads the saved snapshot for a session. A missing file yields an
// empty draft, not an error.
func (s *Scratch) Load(sessionID string) (chat.Draft, error) {
	path, err := s.path(sessionID)
	if err != nil {
		return chat.Draft{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return chat.Draft{}, nil
		}
		return chat.Draft{}, fmt.Errorf("failed to read draft: %w", err)
	}

	var snap chat.Draft
	if err := json.Unmarshal(data, &snap); err != nil {
		return chat.Draft{}, fmt.Errorf("failed to parse draft: %w", err)
	}
	return snap, nil
}

// Discard removes the saved snapshot, if any.
func (s *Scratch) Discard(sessionID string) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove draft file: %w", err)
	}
	return nil
}
