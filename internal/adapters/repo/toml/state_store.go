// Package toml persists the active mind between CLI invocations in a small
// TOML state file.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bnema/penphinmind/internal/domain"
	"github.com/bnema/penphinmind/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	StatePathKey    = "state.path"
	stateConfigDir  = ".penphin"
	stateFileName   = "state.toml"
	stateFileMode   = 0o600
	stateDirMode    = 0o700
	tempFilePattern = ".state-*.toml.tmp"
	historyLimit    = 10
)

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

type StateStore struct {
	path string
	mu   *sync.RWMutex
}

var _ ports.ActiveMindStore = (*StateStore)(nil)

// NewStateStore resolves the state file from state.path, defaulting to
// ~/.penphin/state.toml.
func NewStateStore(cfg *viper.Viper) (*StateStore, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	path := cfg.GetString(StatePathKey)
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(homeDir, stateConfigDir, stateFileName)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve state path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &StateStore{path: absPath, mu: lockForPath(absPath)}, nil
}

func (s *StateStore) Path() string {
	return s.path
}

// Load returns the zero record when no state has been saved yet.
func (s *StateStore) Load(ctx context.Context) (domain.ActiveMindRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ActiveMindRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return domain.ActiveMindRecord{}, err
	}

	return domain.ActiveMindRecord{
		MindID:     domain.MindID(file.ActiveMind),
		PreviousID: domain.MindID(file.PreviousMind),
		SwitchedAt: parseTime(file.SwitchedAt),
	}, nil
}

func (s *StateStore) Save(ctx context.Context, record domain.ActiveMindRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.MindID == "" {
		return errors.New("active mind record without mind id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.readSchema()
	if err != nil {
		return err
	}

	file.ActiveMind = string(record.MindID)
	file.PreviousMind = string(record.PreviousID)
	file.SwitchedAt = formatTime(record.SwitchedAt)
	file.History = append(file.History, switchSchema{
		From: string(record.PreviousID),
		To:   string(record.MindID),
		At:   formatTime(record.SwitchedAt),
	})
	if len(file.History) > historyLimit {
		file.History = file.History[len(file.History)-historyLimit:]
	}

	return s.writeSchema(file)
}

// History returns the most recent switches, oldest first.
func (s *StateStore) History(ctx context.Context) ([]domain.ActiveMindRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := s.readSchema()
	if err != nil {
		return nil, err
	}

	records := make([]domain.ActiveMindRecord, 0, len(file.History))
	for _, entry := range file.History {
		records = append(records, domain.ActiveMindRecord{
			MindID:     domain.MindID(entry.To),
			PreviousID: domain.MindID(entry.From),
			SwitchedAt: parseTime(entry.At),
		})
	}

	return records, nil
}

func (s *StateStore) readSchema() (stateSchema, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stateSchema{}, nil
		}
		return stateSchema{}, fmt.Errorf("read state file: %w", err)
	}

	var file stateSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return stateSchema{}, fmt.Errorf("decode state file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return stateSchema{}, err
	}

	return file, nil
}

func (s *StateStore) writeSchema(file stateSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(s.path), stateDirMode); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(s.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tempFile.Chmod(stateFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	cleanup = false

	return nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
