package run

import (
	"sync"
	"time"
)

// Phases reported by Progress.
const (
	PhaseIdle      = "idle"
	PhaseDiscovery = "discovery"
	PhaseHarvest   = "harvest"
	PhaseExport    = "export"
	PhaseDone      = "done"
	PhaseFailed    = "failed"
)

// Snapshot is a point-in-time copy of run progress.
type Snapshot struct {
	Phase         string    `json:"phase"`
	Segments      int       `json:"segments"`
	SegmentsDone  int       `json:"segments_done"`
	CurrentPrefix int       `json:"current_prefix,omitempty"`
	CurrentLabel  string    `json:"current_label,omitempty"`
	Records       int       `json:"records"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Progress tracks a run for the status endpoint. Safe for concurrent use.
type Progress struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewProgress creates an idle tracker.
func NewProgress() *Progress {
	p := &Progress{now: time.Now}
	p.snap.Phase = PhaseIdle
	return p
}

// Snapshot returns the current progress.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

func (p *Progress) update(fn func(s *Snapshot)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.snap)
	p.snap.UpdatedAt = p.now()
}

func (p *Progress) start() {
	p.update(func(s *Snapshot) {
		*s = Snapshot{Phase: PhaseDiscovery, StartedAt: p.now()}
	})
}

func (p *Progress) discovered(n int) {
	p.update(func(s *Snapshot) {
		s.Phase = PhaseHarvest
		s.Segments = n
	})
}

func (p *Progress) segmentStarted(prefix int, label string) {
	p.update(func(s *Snapshot) {
		s.CurrentPrefix = prefix
		s.CurrentLabel = label
	})
}

func (p *Progress) segmentDone(records int) {
	p.update(func(s *Snapshot) {
		s.SegmentsDone++
		s.Records += records
		s.CurrentPrefix = 0
		s.CurrentLabel = ""
	})
}

func (p *Progress) phase(phase string) {
	p.update(func(s *Snapshot) { s.Phase = phase })
}
