package server

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunExpirationSweep drives active-key expiration and blocking-deadline
// expiration on a fixed cycle (§6 "activeExpireCycle") until ctx is
// cancelled. Intended to run in its own goroutine alongside
// ListenAndServe, coordinated by the caller.
func (s *Server) RunExpirationSweep(ctx context.Context) {
	cycle := s.Config.ActiveExpireCycle
	if cycle <= 0 {
		cycle = 100 * time.Millisecond
	}
	ticker := time.NewTicker(cycle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sampled, expired := s.Keyspace.ActiveExpireAll(20, cycle/4)
			if expired > 0 {
				s.Log.Debug("active expire cycle", zap.Int("sampled", sampled), zap.Int("expired", expired))
				if s.Metrics != nil {
					s.Metrics.ExpiredKeys.Add(float64(expired))
				}
			}
			s.Blocking.ExpireDeadlines(now)
		}
	}
}
