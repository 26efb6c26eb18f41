package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer keeps a minimum gap between the end of one outbound call and the start of the next.
// One Pacer is shared by every batch of a BulkService.
type Pacer struct {
	Spacing time.Duration

	mu      sync.Mutex
	limiter *rate.Limiter
}

func NewPacer(spacing time.Duration) *Pacer {
	p := &Pacer{Spacing: spacing}
	p.limiter = p.newLimiter()
	return p
}

func (p *Pacer) newLimiter() *rate.Limiter {
	if p.Spacing <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(p.Spacing), 1)
}

// Wait blocks until the spacing since the last Done has elapsed, or ctx ends.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	l := p.limiter
	p.mu.Unlock()
	return l.Wait(ctx)
}

// Done stamps the end of an outbound call: the next token is a full Spacing away.
func (p *Pacer) Done() {
	l := p.newLimiter()
	l.Allow()
	p.mu.Lock()
	p.limiter = l
	p.mu.Unlock()
}
