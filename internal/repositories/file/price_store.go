package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	domain "github.com/getreststore/api/internal/domain"
	"github.com/getreststore/api/internal/repositories"
)

// PriceStore persists the full price list as a pretty-printed JSON array on
// disk. External tooling diffs the file, so the 2-space indentation is part
// of the contract. Access is serialised with a mutex; writes go through a
// temp file and rename so readers never observe a partial write.
type PriceStore struct {
	mu   sync.RWMutex
	path string
}

// NewPriceStore constructs a store backed by the given file path.
func NewPriceStore(path string) (*PriceStore, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("file price store: path is required")
	}
	return &PriceStore{path: trimmed}, nil
}

// Load reads the entire store. A missing file is treated as an empty store
// so a fresh deployment serves an empty catalog instead of erroring.
func (s *PriceStore) Load(ctx context.Context) ([]domain.PriceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, repositories.NewUnavailableError("price store load", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []domain.PriceRecord{}, nil
		}
		return nil, repositories.NewUnavailableError("price store load", err)
	}

	var records []domain.PriceRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, repositories.NewUnavailableError("price store load", fmt.Errorf("malformed store file: %w", err))
	}
	if records == nil {
		records = []domain.PriceRecord{}
	}
	return records, nil
}

// Replace overwrites the store wholesale. Partial updates are not supported;
// callers send the complete, correct list.
func (s *PriceStore) Replace(ctx context.Context, records []domain.PriceRecord) error {
	if err := ctx.Err(); err != nil {
		return repositories.NewUnavailableError("price store replace", err)
	}
	if records == nil {
		records = []domain.PriceRecord{}
	}

	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return repositories.NewUnavailableError("price store replace", err)
	}
	payload = append(payload, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return repositories.NewUnavailableError("price store replace", err)
	}

	tmp, err := os.CreateTemp(dir, ".prices-*.json")
	if err != nil {
		return repositories.NewUnavailableError("price store replace", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return repositories.NewUnavailableError("price store replace", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return repositories.NewUnavailableError("price store replace", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return repositories.NewUnavailableError("price store replace", err)
	}
	return nil
}
