package agent

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically drops terminal jobs older than the configured
// TTL. Retention is opt-in: with a zero TTL the registry keeps jobs for
// the lifetime of the process, matching the original behavior.
type Sweeper struct {
	registry *Registry
	ttl      time.Duration
	cron     *cron.Cron
}

func NewSweeper(registry *Registry, ttl time.Duration, schedule string) (*Sweeper, error) {
	s := &Sweeper{
		registry: registry,
		ttl:      ttl,
		cron:     cron.New(),
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	cutoff := time.Now().UTC().Add(-s.ttl)
	if n := s.registry.DeleteExpired(cutoff); n > 0 {
		log.Printf("job retention sweep removed %d terminal jobs", n)
	}
}
