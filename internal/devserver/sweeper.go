package devserver

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically removes expired sessions.
type Sweeper struct {
	store    *Store
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start() {
	go s.run()
	log.Info().Dur("interval", s.interval).Msg("session sweeper started")
}

func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
	log.Info().Msg("session sweeper stopped")
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if count := s.store.DeleteExpiredSessions(); count > 0 {
				log.Info().Int64("count", count).Msg("expired sessions removed")
			}
		case <-s.stop:
			return
		}
	}
}
