package monitoring

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/studhelper/studhelper/pkg/metrics"
)

// JobSummary describes the run history of one background job.
type JobSummary struct {
	Job                 string        `json:"job"`
	TotalRuns           uint64        `json:"total_runs"`
	Failures            uint64        `json:"failures"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
}

// JobTracker remembers how background jobs went so the health probe can report stale or failing ones.
type JobTracker struct {
	mu   sync.Mutex
	jobs map[string]*JobSummary
	now  func() time.Time
}

// NewJobTracker constructs an empty tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*JobSummary), now: time.Now}
}

// Register makes a job visible before its first run.
func (t *JobTracker) Register(job string) {
	job = strings.TrimSpace(job)
	if t == nil || job == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.jobs[job]; !ok {
		t.jobs[job] = &JobSummary{Job: job}
	}
}

// Record stores the outcome of one run and exports it as a metric.
func (t *JobTracker) Record(job string, duration time.Duration, err error) {
	job = strings.TrimSpace(job)
	if job == "" {
		job = "unknown"
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MaintenanceRuns.WithLabelValues(job, result).Inc()

	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.jobs[job]
	if !ok {
		entry = &JobSummary{Job: job}
		t.jobs[job] = entry
	}
	entry.TotalRuns++
	entry.LastRunAt = t.now()
	entry.LastDuration = duration
	if err != nil {
		entry.Failures++
		entry.ConsecutiveFailures++
		entry.LastError = err.Error()
		return
	}
	entry.ConsecutiveFailures = 0
	entry.LastError = ""
}

// Snapshot returns a copy of every job ordered by name.
func (t *JobTracker) Snapshot() []JobSummary {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	out := make([]JobSummary, 0, len(t.jobs))
	for _, entry := range t.jobs {
		out = append(out, *entry)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}
