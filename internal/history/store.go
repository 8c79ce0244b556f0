// Package history persists conversation transcripts as JSON files so a
// session can be resumed in a later run.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parley-ai/parley/internal/message"
)

// Transcript is one saved conversation.
type Transcript struct {
	ID        string         `json:"id"`
	Summary   string         `json:"summary"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Turns     []message.Turn `json:"turns"`
}

// Store reads and writes transcripts under a directory, one file per
// conversation named <id>.json.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created on the
// first save, not here.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes the transcript, setting timestamps and a summary derived
// from the first user turn when missing.
func (s *Store) Save(t *Transcript) error {
	if t.ID == "" {
		return fmt.Errorf("transcript has no id")
	}
	if strings.ContainsAny(t.ID, `/\`) {
		return fmt.Errorf("invalid transcript id: %s", t.ID)
	}

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Summary == "" {
		t.Summary = summarize(t.Turns)
	}

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create sessions directory: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	// Write via a temp file so a crash never leaves a half-written
	// transcript behind.
	tmp := s.path(t.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	if err := os.Rename(tmp, s.path(t.ID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// Load reads one transcript by id.
func (s *Store) Load(id string) (*Transcript, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no saved session %s", id)
		}
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse transcript %s: %w", id, err)
	}
	return &t, nil
}

// List returns all transcripts without their turns, newest first.
func (s *Store) List() ([]Transcript, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var result []Transcript
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		t, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue // skip corrupt files
		}
		t.Turns = nil
		result = append(result, *t)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// Delete removes a saved transcript. Deleting a missing id is not an error.
func (s *Store) Delete(id string) error {
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}

// summarize derives a short listing label from the first user turn.
func summarize(turns []message.Turn) string {
	const maxLen = 60
	for _, t := range turns {
		if t.Role != message.RoleUser {
			continue
		}
		text := strings.TrimSpace(t.Text())
		if text == "" {
			continue
		}
		text = strings.Join(strings.Fields(text), " ")
		if len(text) > maxLen {
			text = text[:maxLen-3] + "..."
		}
		return text
	}
	return "(empty conversation)"
}
