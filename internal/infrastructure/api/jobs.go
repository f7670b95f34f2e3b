package api

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/khanhnv2901/seca-posture/internal/domain/posture"
)

// Job statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

// JobTypeScan is the only job type the API accepts.
const JobTypeScan = "scan"

type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Domain     string          `json:"domain"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Report     *posture.Report `json:"report,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Finished reports whether the job reached a terminal status.
func (j Job) Finished() bool {
	return j.Status == StatusDone || j.Status == StatusError
}

type JobRequest struct {
	Type   string `json:"type"`
	Domain string `json:"domain"`
}

// JobManager keeps jobs in memory and fans every change out to subscribers.
// Nothing is persisted.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	subscribers map[chan Job]struct{}
	maxJobs     int // Maximum number of jobs to keep in memory
	now         func() time.Time
}

func NewJobManager() *JobManager {
	m := &JobManager{
		jobs:        make(map[string]*Job),
		subscribers: make(map[chan Job]struct{}),
		maxJobs:     1000, // Default: keep last 1000 jobs
		now:         time.Now,
	}
	// Start cleanup goroutine to remove old completed jobs
	go m.cleanupLoop()
	return m
}

func (m *JobManager) CreateJob(jobType, domain string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := &Job{
		ID:        generateID("job"),
		Type:      jobType,
		Domain:    domain,
		Status:    StatusPending,
		CreatedAt: m.now(),
	}
	m.jobs[job.ID] = job
	m.broadcast(*job)
	snapshot := *job
	return &snapshot
}

func (m *JobManager) UpdateJob(id string, update func(*Job)) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	update(job)
	m.broadcast(*job)
	snapshot := *job
	return &snapshot
}

func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[id]; ok {
		copy := *job
		return &copy
	}
	return nil
}

// ListJobs returns up to limit jobs, newest first by creation time.
func (m *JobManager) ListJobs(limit int) []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.jobs) {
		limit = len(m.jobs)
	}
	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return jobs[:limit]
}

func (m *JobManager) Subscribe() (chan Job, func()) {
	ch := make(chan Job, 10)
	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()
	return ch, func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
}

// broadcast must be called with m.mu held. Slow subscribers miss updates
// rather than stall the manager.
func (m *JobManager) broadcast(job Job) {
	for ch := range m.subscribers {
		select {
		case ch <- job:
		default:
		}
	}
}

func generateID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

func (m *JobManager) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.prune()
	}
}

// prune drops the oldest finished jobs once the manager holds more than
// maxJobs. Pending and running jobs are never removed.
func (m *JobManager) prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.jobs) <= m.maxJobs {
		return 0
	}

	type jobWithTime struct {
		id   string
		time time.Time
	}
	var completedJobs []jobWithTime

	for id, job := range m.jobs {
		if !job.Finished() {
			continue
		}
		finishTime := job.CreatedAt
		if job.FinishedAt != nil {
			finishTime = *job.FinishedAt
		}
		completedJobs = append(completedJobs, jobWithTime{id: id, time: finishTime})
	}

	// Sort oldest first
	sort.Slice(completedJobs, func(i, j int) bool {
		return completedJobs[i].time.Before(completedJobs[j].time)
	})

	toRemove := len(m.jobs) - m.maxJobs
	if toRemove > len(completedJobs) {
		toRemove = len(completedJobs)
	}

	for i := 0; i < toRemove; i++ {
		delete(m.jobs, completedJobs[i].id)
	}
	return toRemove
}

// SetMaxJobs configures the maximum number of jobs to retain in memory
func (m *JobManager) SetMaxJobs(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max > 0 {
		m.maxJobs = max
	}
}
