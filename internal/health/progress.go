package health

import (
	"context"
	"sync"
	"time"
)

// Phase is a stage of a clustering job.
type Phase string

const (
	PhaseStarting   Phase = "starting"
	PhaseLoading    Phase = "loading"
	PhaseClustering Phase = "clustering"
	PhaseWriting    Phase = "writing"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// Progress reports how far a clustering job has got. A failed job is
// unhealthy; everything else is healthy.
type Progress struct {
	mu      sync.Mutex
	phase   Phase
	pass    int
	shift   float64
	err     error
	updated time.Time
}

func NewProgress() *Progress {
	return &Progress{phase: PhaseStarting, updated: time.Now()}
}

func (p *Progress) Name() string { return "job" }

// SetPhase records a new phase.
func (p *Progress) SetPhase(phase Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = phase
	p.updated = time.Now()
}

// ObservePass records a committed pass and the largest centroid movement
// it caused.
func (p *Progress) ObservePass(pass int, shift float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pass = pass
	p.shift = shift
	p.updated = time.Now()
}

// Fail marks the job failed.
func (p *Progress) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phase = PhaseFailed
	p.err = err
	p.updated = time.Now()
}

func (p *Progress) Check(context.Context) *ComponentHealth {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := &ComponentHealth{
		Name:        p.Name(),
		Status:      StatusHealthy,
		Message:     string(p.phase),
		LastChecked: time.Now(),
		Metadata: map[string]interface{}{
			"phase":      string(p.phase),
			"pass":       p.pass,
			"shift":      p.shift,
			"updated_at": p.updated,
		},
	}
	if p.phase == PhaseFailed {
		h.Status = StatusUnhealthy
		if p.err != nil {
			h.Message = p.err.Error()
		}
	}
	return h
}
