package taskqueue

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// RunStatus represents the outcome of a pipeline run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusSkipped   RunStatus = "skipped"
	RunStatusFailed    RunStatus = "failed"
)

// Trigger names what started a run
type Trigger string

const (
	TriggerInitial  Trigger = "initial"
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// RunOutcome is what an executor reports about a finished run
type RunOutcome struct {
	ImageTime  time.Time
	OutputPath string
	Skipped    bool
	Tiles      int
	Holes      int
	Cached     int
}

// RunRecord is one entry of the run history
type RunRecord struct {
	ID          string    `json:"id"`
	Trigger     Trigger   `json:"trigger"`
	Status      RunStatus `json:"status"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`

	// Image details, empty for failed runs
	ImageTime  time.Time `json:"imageTime"`
	OutputPath string    `json:"outputPath,omitempty"`
	Tiles      int       `json:"tiles"`
	Holes      int       `json:"holes"`
	Cached     int       `json:"cached"`

	// Error message if failed
	Error string `json:"error,omitempty"`
}

// NewRunRecord creates a running record with a fresh ID
func NewRunRecord(trigger Trigger) *RunRecord {
	return &RunRecord{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// MarkCompleted records a successful (or skipped) run
func (r *RunRecord) MarkCompleted(outcome *RunOutcome) {
	r.CompletedAt = time.Now().UTC()
	r.Status = RunStatusCompleted
	if outcome == nil {
		return
	}
	if outcome.Skipped {
		r.Status = RunStatusSkipped
	}
	r.ImageTime = outcome.ImageTime
	r.OutputPath = outcome.OutputPath
	r.Tiles = outcome.Tiles
	r.Holes = outcome.Holes
	r.Cached = outcome.Cached
}

// MarkFailed marks the run as failed with an error
func (r *RunRecord) MarkFailed(err error) {
	r.CompletedAt = time.Now().UTC()
	r.Status = RunStatusFailed
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration returns how long the run took
func (r *RunRecord) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// SaveToFile persists the record to a JSON file
func (r *RunRecord) SaveToFile(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	path := filepath.Join(dir, r.ID+".json")
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}

	return nil
}

// LoadFromFile loads a record from a JSON file
func LoadFromFile(path string) (*RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run record: %w", err)
	}

	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run record: %w", err)
	}

	return &record, nil
}

// DeleteFile removes the record file from disk
func (r *RunRecord) DeleteFile(dir string) error {
	return os.Remove(filepath.Join(dir, r.ID+".json"))
}

// LoadHistory loads every record in dir, newest first. Unreadable files are skipped.
func LoadHistory(dir string) ([]*RunRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	records := make([]*RunRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if record, err := LoadFromFile(filepath.Join(dir, entry.Name())); err == nil {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}
