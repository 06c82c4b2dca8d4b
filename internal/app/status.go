package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"goplanit/internal/domain"
)

func statusKey(preferenceID string) string { return "processing:" + preferenceID }

// StatusWriter owns the ephemeral progress records. All operations are
// best-effort: a cache failure is logged and swallowed, never allowed
// to abort a pipeline run. The TTL guarantees a crashed run cannot
// leave a stale "in progress" record behind forever.
type StatusWriter struct {
	cache  domain.Cache
	ttlSec int
}

func NewStatusWriter(cache domain.Cache, ttl time.Duration) *StatusWriter {
	return &StatusWriter{cache: cache, ttlSec: int(ttl.Seconds())}
}

func (s *StatusWriter) Set(ctx context.Context, preferenceID string, st domain.ProcessingStatus) {
	st.Timestamp = time.Now().UTC()
	if err := s.cache.Set(ctx, statusKey(preferenceID), st, s.ttlSec); err != nil {
		log.Warn().Str("preference_id", preferenceID).Err(err).Msg("status cache set failed")
	}
}

func (s *StatusWriter) Get(ctx context.Context, preferenceID string) (domain.ProcessingStatus, bool) {
	var st domain.ProcessingStatus
	ok, err := s.cache.Get(ctx, statusKey(preferenceID), &st)
	if err != nil {
		log.Warn().Str("preference_id", preferenceID).Err(err).Msg("status cache get failed")
		return domain.ProcessingStatus{}, false
	}
	return st, ok
}

func (s *StatusWriter) Clear(ctx context.Context, preferenceID string) {
	if err := s.cache.Del(ctx, statusKey(preferenceID)); err != nil {
		// inconsequential: the key carries its own TTL
		log.Warn().Str("preference_id", preferenceID).Err(err).Msg("status cache delete failed")
	}
}
