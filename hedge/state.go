// Package hedge opens and manages the protective opposite-direction
// position: a state machine with INACTIVE, ACTIVE, and a cooldown-gated
// sub-state of INACTIVE, persisted to a JSON file so it survives restarts.
package hedge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// State is the persisted slice of the controller. Invariant: Active is true
// iff ActiveTradeID is set; CooldownUntil only matters while inactive.
type State struct {
	Active        bool       `json:"active"`
	ActiveTradeID *int64     `json:"active_trade_id"`
	CooldownUntil *time.Time `json:"cooldown_until"`
	ProfitMax     float64    `json:"profit_max"`
	ProfitMin     float64    `json:"profit_min"`
}

// DefaultState is the state used when no file exists yet.
func DefaultState() State {
	return State{}
}

func (s *State) activate(ticket int64) {
	s.Active = true
	s.ActiveTradeID = &ticket
	s.CooldownUntil = nil
	s.ProfitMax = 0
	s.ProfitMin = 0
}

func (s *State) deactivate(now time.Time, cooldown time.Duration) {
	s.Active = false
	s.ActiveTradeID = nil
	until := now.Add(cooldown)
	s.CooldownUntil = &until
}

// Store reads and writes the state file. One owner per process: the engine
// loads at cycle start and saves at cycle end, so no locking is needed
// beyond crash-safe replace-on-write.
type Store struct {
	path string
	log  *zap.Logger
}

func NewStore(path string, log *zap.Logger) *Store {
	return &Store{path: path, log: log}
}

// Load returns the persisted state, or the default when the file is absent.
// A malformed file is a warning, never fatal: the controller restarts from
// the default and reconciles against the live position list.
func (s *Store) Load() State {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("hedge state unreadable, using default",
				zap.String("path", s.path), zap.Error(err))
		}
		return DefaultState()
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		s.log.Warn("hedge state malformed, using default",
			zap.String("path", s.path), zap.Error(err))
		return DefaultState()
	}
	return st
}

// Save writes the state atomically: marshal to a temp file in the same
// directory, then rename over the target.
func (s *Store) Save(st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal hedge state: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".hedge-state-*")
	if err != nil {
		return fmt.Errorf("temp hedge state: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write hedge state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close hedge state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace hedge state: %w", err)
	}
	return nil
}
