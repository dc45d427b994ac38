package pokemon

import (
	"errors"
	"strings"
	"time"
)

// The catalog is always the first page of the national dex.
const (
	PageSize   = 151
	PageOffset = 0
)

var ErrNoTypes = errors.New("pokemon has no types")

// Entry is one catalog record as assembled from the listing and detail endpoints.
type Entry struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	Types     []string `json:"types"`
	Abilities []string `json:"abilities"`
	Image     string   `json:"image"`
	Owner     string   `json:"user"`
}

// PrimaryType is the first type, used for display classification.
func (e Entry) PrimaryType() string {
	if len(e.Types) == 0 {
		return ""
	}
	return e.Types[0]
}

// Filter returns the entries whose name contains query, ignoring case.
// An empty query returns entries unchanged.
func Filter(entries []Entry, query string) []Entry {
	if query == "" {
		return entries
	}
	q := strings.ToLower(query)
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), q) {
			out = append(out, e)
		}
	}
	return out
}

// FindByName returns the entry with the given name, if present.
func FindByName(entries []Entry, name string) (Entry, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

type RunStatus string

const (
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
	RunStale     RunStatus = "STALE"
)

// LoadRun records one catalog load attempt.
type LoadRun struct {
	ID         string     `json:"id"`
	Identity   string     `json:"identity"`
	Seq        uint64     `json:"seq"`
	Status     RunStatus  `json:"status"`
	Entries    int        `json:"entries"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
