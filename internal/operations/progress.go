package operations

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker counts finished units of work inside a step, such as
// sources standardized, and mirrors the percentage onto the step state
type ProgressTracker struct {
	mu        sync.Mutex
	step      *StepState
	total     int
	current   int
	startTime time.Time
}

// NewProgressTracker creates a tracker for total units. A nil step state is
// allowed.
func NewProgressTracker(step *StepState, total int) *ProgressTracker {
	return &ProgressTracker{
		step:      step,
		total:     total,
		startTime: time.Now(),
	}
}

// Increment marks one unit done
func (p *ProgressTracker) Increment(item string) {
	p.mu.Lock()
	p.current++
	current, total := p.current, p.total
	p.mu.Unlock()

	if p.step != nil {
		p.step.UpdateProgress(percentage(current, total), fmt.Sprintf("%s done (%d/%d)", item, current, total))
	}
}

// GetProgress returns the current progress state
func (p *ProgressTracker) GetProgress() (current, total int, pct float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.total, percentage(p.current, p.total)
}

// IsComplete returns true when every unit is done
func (p *ProgressTracker) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current >= p.total
}

// Elapsed returns the time since the tracker was created
func (p *ProgressTracker) Elapsed() time.Duration {
	return time.Since(p.startTime)
}

func percentage(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(current) / float64(total) * 100
}
