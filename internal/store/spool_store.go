package store

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"securecast/internal/domain"
)

const spoolDir = "spool"

type spoolRecord struct {
	TransferID string                     `json:"transfer_id"`
	SavedAt    int64                      `json:"saved_at"`
	Packets    map[domain.Sequence][]byte `json:"packets"`
}

// SpoolFileStore persists sent-packet caches to disk.
type SpoolFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewSpoolFileStore returns a SpoolFileStore rooted at home.
func NewSpoolFileStore(home string) *SpoolFileStore {
	return &SpoolFileStore{dir: filepath.Join(home, spoolDir)}
}

// path validates transferID as a UUID so it can never escape the spool dir.
func (s *SpoolFileStore) path(transferID string) (string, error) {
	id, err := uuid.Parse(transferID)
	if err != nil {
		return "", fmt.Errorf("transfer id %q: %w", transferID, err)
	}
	return filepath.Join(s.dir, id.String()+".json"), nil
}

// SaveSpool writes the datagrams of one transfer, replacing any earlier spool.
func (s *SpoolFileStore) SaveSpool(transferID string, packets map[domain.Sequence][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(transferID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	rec := spoolRecord{TransferID: transferID, SavedAt: time.Now().Unix(), Packets: packets}
	return writeJSON(path, rec, 0o600)
}

// LoadSpool reads a transfer's datagrams; ok is false when none were spooled.
func (s *SpoolFileStore) LoadSpool(transferID string) (map[domain.Sequence][]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(transferID)
	if err != nil {
		return nil, false, err
	}
	var rec spoolRecord
	found, err := ReadJSON(path, &rec)
	if err != nil || !found {
		return nil, false, err
	}
	if rec.Packets == nil {
		rec.Packets = make(map[domain.Sequence][]byte)
	}
	return rec.Packets, true, nil
}

// ListSpools returns the spooled transfer ids, sorted.
func (s *SpoolFileStore) ListSpools() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ".json")
		if !ok || e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(name); err == nil {
			ids = append(ids, name)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Compile-time assertion that SpoolFileStore implements domain.SpoolStore.
var _ domain.SpoolStore = (*SpoolFileStore)(nil)
