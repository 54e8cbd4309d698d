package state

import (
	"context"
	"strconv"
	"time"
)

// IncrementRequestCount bumps the fixed-window counter for a client id and
// returns the new count. The first increment inside a window creates the
// counter and attaches the window expiry. On store failure the count reads
// as zero, so a broken limiter fails open.
func (s *Service) IncrementRequestCount(ctx context.Context, clientID string, window time.Duration) int64 {
	key := ratePrefix + clientID
	count, err := s.store.Incr(ctx, key)
	if err != nil {
		s.log.WithField("client_id", clientID).WithError(err).Warn("rate counter increment failed")
		return 0
	}
	if count == 1 {
		if err := s.store.Expire(ctx, key, window); err != nil {
			s.log.WithField("client_id", clientID).WithError(err).Warn("rate counter expiry failed")
		}
	}
	return count
}

// IsRateLimited reports whether the client's counter for the current window
// exceeds maxRequests. Store failures read as "not limited".
func (s *Service) IsRateLimited(ctx context.Context, clientID string, maxRequests int64) bool {
	val, err := s.store.Get(ctx, ratePrefix+clientID)
	if err != nil {
		if !IsMiss(err) {
			s.log.WithField("client_id", clientID).WithError(err).Warn("rate counter read failed")
		}
		return false
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false
	}
	return count > maxRequests
}
