package resolver

import (
	"context"

	"github.com/keshon/muse/internal/music/track"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// TrackSearcher is the part of Resolver the advisor needs.
type TrackSearcher interface {
	Search(ctx context.Context, query, requesterID string) ([]*track.Track, error)
}

// Advisor suggests a follow-up track when the queue runs dry.
type Advisor struct {
	search TrackSearcher
	log    zerolog.Logger
}

// NewAdvisor returns an Advisor backed by s.
func NewAdvisor(s TrackSearcher, logger zerolog.Logger) *Advisor {
	return &Advisor{search: s, log: logger.With().Str("component", "autoplay").Logger()}
}

// Suggest looks up tracks similar to last by title. It prefers a result
// that is not last itself and returns nil when nothing usable is found.
func (a *Advisor) Suggest(ctx context.Context, last *track.Track, requesterID string) *track.Track {
	if last == nil {
		return nil
	}
	results, err := a.search.Search(ctx, "ytsearch:"+last.Title(), requesterID)
	if err != nil {
		a.log.Debug().Err(err).Str("title", last.Title()).Msg("no suggestion")
		return nil
	}
	if len(results) == 0 {
		return nil
	}
	if next, ok := lo.Find(results, func(t *track.Track) bool { return t.URI() != last.URI() }); ok {
		return next
	}
	return results[0]
}
