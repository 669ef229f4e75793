package agentapi

import (
	"context"
	"log"
	"sync"
	"time"
)

// Pinger probes backend liveness on a fixed cadence for the lifetime of its
// context. Any failure is simply "offline"; there is no retry policy beyond
// the next tick.
type Pinger struct {
	client   *Client
	interval time.Duration
	onChange func(online bool)
	logger   *log.Logger

	mu     sync.Mutex
	online bool
	seen   bool
}

// NewPinger builds a pinger; onChange, if non-nil, fires on every
// transition between online and offline.
func NewPinger(client *Client, interval time.Duration, onChange func(bool)) *Pinger {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Pinger{
		client:   client,
		interval: interval,
		onChange: onChange,
		logger:   log.New(log.Writer(), "[PING] ", log.LstdFlags),
	}
}

// Online reports the last observed liveness.
func (p *Pinger) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

// Run probes immediately and then on every tick until ctx is cancelled.
func (p *Pinger) Run(ctx context.Context) {
	p.observe(p.client.Ping(ctx))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.observe(p.client.Ping(ctx))
		}
	}
}

func (p *Pinger) observe(online bool) {
	p.mu.Lock()
	changed := !p.seen || online != p.online
	p.online = online
	p.seen = true
	p.mu.Unlock()

	if changed {
		if online {
			p.logger.Printf("agent online")
		} else {
			p.logger.Printf("warn: agent offline")
		}
		if p.onChange != nil {
			p.onChange(online)
		}
	}
}
