// Package resolver turns free-form user queries into playable tracks through
// the audio node, caching recent lookups.
package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/keshon/muse/internal/music/cache"
	"github.com/keshon/muse/internal/music/node"
	"github.com/keshon/muse/internal/music/track"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// MaxResults caps how many node results become tracks.
const MaxResults = 25

// Searcher runs an identifier against the node. *node.Client satisfies it.
type Searcher interface {
	Search(ctx context.Context, identifier string) ([]node.TrackData, error)
}

// Resolver normalises queries, serves repeats from cache and otherwise asks
// the node.
type Resolver struct {
	node  Searcher
	cache *cache.TimedResultCache[[]*track.Track]
	log   zerolog.Logger
}

// New returns a Resolver. A nil cache gets the default TTL and size.
func New(n Searcher, c *cache.TimedResultCache[[]*track.Track], logger zerolog.Logger) *Resolver {
	if c == nil {
		c = cache.New[[]*track.Track](cache.DefaultTTL, cache.DefaultMaxSize)
	}
	return &Resolver{
		node:  n,
		cache: c,
		log:   logger.With().Str("component", "resolver").Logger(),
	}
}

// Cache exposes the result cache so the caller can run its janitor.
func (r *Resolver) Cache() *cache.TimedResultCache[[]*track.Track] {
	return r.cache
}

var shortPrefixes = []struct{ short, full string }{
	{"yt:", "ytsearch:"},
	{"sc:", "scsearch:"},
}

var searchPrefixes = []string{"ytsearch:", "ytmsearch:", "scsearch:"}

var urlScheme = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// Normalize maps a user query to a node identifier:
//
//	yt:foo        -> ytsearch:foo
//	sc:foo        -> scsearch:foo
//	https://...   -> unchanged
//	ytsearch:foo  -> unchanged
//	foo           -> ytsearch:foo
func Normalize(query string) string {
	q := strings.TrimSpace(query)
	lower := strings.ToLower(q)

	for _, p := range shortPrefixes {
		if strings.HasPrefix(lower, p.short) {
			return p.full + strings.TrimSpace(q[len(p.short):])
		}
	}
	for _, p := range searchPrefixes {
		if strings.HasPrefix(lower, p) {
			return q
		}
	}
	if urlScheme.MatchString(q) {
		return q
	}
	return "ytsearch:" + q
}

// Search resolves query to at most MaxResults tracks tagged with requesterID.
// An empty list is a valid answer and is cached like any other.
func (r *Resolver) Search(ctx context.Context, query, requesterID string) ([]*track.Track, error) {
	key := Normalize(query)

	if cached, ok := r.cache.Get(key); ok {
		r.log.Debug().Str("query", key).Int("results", len(cached)).Msg("cache hit")
		return tagged(cached, requesterID), nil
	}

	data, err := r.node.Search(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", key, err)
	}

	if len(data) > MaxResults {
		data = data[:MaxResults]
	}
	tracks := lo.Map(data, func(d node.TrackData, _ int) *track.Track {
		return fromNode(d)
	})
	r.cache.Set(key, tracks)
	r.log.Debug().Str("query", key).Int("results", len(tracks)).Msg("resolved")

	return tagged(tracks, requesterID), nil
}

func tagged(tracks []*track.Track, requesterID string) []*track.Track {
	return lo.Map(tracks, func(t *track.Track, _ int) *track.Track {
		return t.WithRequester(requesterID)
	})
}

func fromNode(d node.TrackData) *track.Track {
	return track.New(track.Info{
		Title:      d.Info.Title,
		URI:        d.Info.URI,
		DurationMs: d.Info.Length,
		Source:     d.Info.SourceName,
		Thumbnail:  track.Thumbnail(d.Info.ArtworkURL, d.Info.SourceName, d.Info.Identifier, d.Info.URI),
		Handle:     d.Encoded,
	})
}
