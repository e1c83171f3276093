package player

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry owns the one Player per guild. It is the only place players are
// created.
type Registry struct {
	mu      sync.Mutex
	players map[string]*Player

	node  Node
	store Store
	log   zerolog.Logger
}

// NewRegistry returns an empty registry whose players share node and store.
func NewRegistry(node Node, store Store, logger zerolog.Logger) *Registry {
	return &Registry{
		players: make(map[string]*Player),
		node:    node,
		store:   store,
		log:     logger,
	}
}

// Get returns the guild's player, creating and loading it on first use.
// Concurrent first calls for the same guild get the same instance.
func (r *Registry) Get(guildID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[guildID]; ok {
		return p
	}
	p := New(guildID, r.node, r.store, r.log)
	r.players[guildID] = p
	return p
}

// Lookup returns the guild's player without creating one.
func (r *Registry) Lookup(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

// Each calls fn for every player in guild id order. fn runs without the
// registry lock held.
func (r *Registry) Each(fn func(*Player)) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	players := make([]*Player, 0, len(ids))
	for _, id := range ids {
		players = append(players, r.players[id])
	}
	r.mu.Unlock()

	for _, p := range players {
		fn(p)
	}
}

// Teardown drops every player.
func (r *Registry) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = make(map[string]*Player)
}
