package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dooshek/readaloud/internal/fileops"
	"github.com/dooshek/readaloud/internal/logger"
)

const statsFile = "stats.json"

// Outcome is how a playback session ended
type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	Failed
)

// BackendStats holds statistics for a specific speech backend
type BackendStats struct {
	Sessions   int `json:"sessions"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	Failed     int `json:"failed"`
	Characters int `json:"characters"`
}

// Stats holds all playback statistics
type Stats struct {
	Backends map[string]*BackendStats `json:"backends"`
	Captures int                      `json:"captures"`
}

// StatsManager manages playback statistics persistence
type StatsManager struct {
	stats   Stats
	fileOps fileops.FileOps
	mu      sync.Mutex
}

// NewStatsManager creates a new stats manager and loads existing data
func NewStatsManager(fileOps fileops.FileOps) *StatsManager {
	sm := &StatsManager{
		fileOps: fileOps,
		stats:   emptyStats(),
	}

	if err := sm.load(); err != nil {
		logger.Debugf("Could not load stats (will start fresh): %v", err)
	}

	return sm
}

func emptyStats() Stats {
	return Stats{Backends: make(map[string]*BackendStats)}
}

func (sm *StatsManager) backend(name string) *BackendStats {
	if sm.stats.Backends == nil {
		sm.stats.Backends = make(map[string]*BackendStats)
	}
	b, ok := sm.stats.Backends[name]
	if !ok {
		b = &BackendStats{}
		sm.stats.Backends[name] = b
	}
	return b
}

// AddCapture counts a successful selection capture
func (sm *StatsManager) AddCapture() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.stats.Captures++
	sm.persist()
}

// AddSession counts a session that reached the backend with chars characters
func (sm *StatsManager) AddSession(backend string, chars int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	b := sm.backend(backend)
	b.Sessions++
	b.Characters += chars
	sm.persist()
}

// EndSession records how a session ended
func (sm *StatsManager) EndSession(backend string, outcome Outcome) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	b := sm.backend(backend)
	switch outcome {
	case Completed:
		b.Completed++
	case Cancelled:
		b.Cancelled++
	case Failed:
		b.Failed++
	}
	sm.persist()
}

// GetStats returns a deep copy of current statistics
func (sm *StatsManager) GetStats() Stats {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	statsCopy := emptyStats()
	statsCopy.Captures = sm.stats.Captures
	for name, b := range sm.stats.Backends {
		cp := *b
		statsCopy.Backends[name] = &cp
	}

	return statsCopy
}

// GetStatsJSON returns statistics as a JSON string (for D-Bus)
func (sm *StatsManager) GetStatsJSON() (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	data, err := json.Marshal(sm.stats)
	if err != nil {
		return "", fmt.Errorf("failed to marshal stats to JSON: %w", err)
	}

	return string(data), nil
}

// Reset clears all statistics and persists empty state
func (sm *StatsManager) Reset() error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.stats = emptyStats()
	if err := sm.save(); err != nil {
		return fmt.Errorf("failed to save reset stats: %w", err)
	}

	return nil
}

func (sm *StatsManager) persist() {
	if err := sm.save(); err != nil {
		logger.Error("Failed to save stats", err)
	}
}

func (sm *StatsManager) load() error {
	data, err := sm.fileOps.LoadConfig(statsFile)
	if err != nil {
		if errors.Is(err, fileops.ErrConfigNotFound) {
			logger.Debugf("Stats file not found, starting fresh: %s", sm.fileOps.GetStatsPath())
			return nil
		}
		return fmt.Errorf("failed to read stats file: %w", err)
	}

	if err := json.Unmarshal(data, &sm.stats); err != nil {
		return fmt.Errorf("failed to unmarshal stats: %w", err)
	}

	if sm.stats.Backends == nil {
		sm.stats.Backends = make(map[string]*BackendStats)
	}

	logger.Debugf("Loaded stats from %s", sm.fileOps.GetStatsPath())
	return nil
}

func (sm *StatsManager) save() error {
	if err := sm.fileOps.EnsureDirectories(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(sm.stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	if err := sm.fileOps.WriteFile(statsFile, data); err != nil {
		return fmt.Errorf("failed to write stats file: %w", err)
	}

	return nil
}
