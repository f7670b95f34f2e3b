package posture

import (
	"encoding/json"
	"time"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Report is the immutable result of one scan.
type Report struct {
	domain    string
	score     int
	issues    []string
	passes    []string
	cms       string
	scannedAt time.Time
	duration  time.Duration
}

// NewReport builds a report, clamping score into [0, 100] and copying the
// line slices so later caller mutation cannot leak in.
func NewReport(domain string, score int, issues, passes []string, cms string, scannedAt time.Time, duration time.Duration) *Report {
	return &Report{
		domain:    domain,
		score:     ClampScore(score),
		issues:    cloneLines(issues),
		passes:    cloneLines(passes),
		cms:       cms,
		scannedAt: scannedAt,
		duration:  duration,
	}
}

// ClampScore floors negatives to 0 and caps at 100.
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

func (r *Report) Domain() string {
	return r.domain
}

func (r *Report) Score() int {
	return r.score
}

// Issues returns a copy of the issue lines in reporting order.
func (r *Report) Issues() []string {
	return cloneLines(r.issues)
}

// Passes returns a copy of the pass lines in reporting order.
func (r *Report) Passes() []string {
	return cloneLines(r.passes)
}

// CMS returns the detected platform, if any.
func (r *Report) CMS() (string, bool) {
	return r.cms, r.cms != ""
}

func (r *Report) ScannedAt() time.Time {
	return r.scannedAt
}

func (r *Report) Duration() time.Duration {
	return r.duration
}

type reportJSON struct {
	Domain     string    `json:"domain"`
	Score      int       `json:"score"`
	Issues     []string  `json:"issues"`
	Passes     []string  `json:"passes"`
	CMS        *string   `json:"cms"`
	ScannedAt  time.Time `json:"scanned_at"`
	DurationMS int64     `json:"duration_ms"`
}

// MarshalJSON renders the report for the CLI and API.
func (r *Report) MarshalJSON() ([]byte, error) {
	payload := reportJSON{
		Domain:     r.domain,
		Score:      r.score,
		Issues:     cloneLines(r.issues),
		Passes:     cloneLines(r.passes),
		ScannedAt:  r.scannedAt,
		DurationMS: r.duration.Milliseconds(),
	}
	if r.cms != "" {
		cms := r.cms
		payload.CMS = &cms
	}
	return json.Marshal(payload)
}

func cloneLines(lines []string) []string {
	out := make([]string, len(lines))
	copy(out, lines)
	return out
}
