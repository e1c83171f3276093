// Package events turns node websocket frames into player transitions.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/keshon/muse/internal/music/node"
)

// Kind is the canonical event kind.
type Kind string

const (
	KindTrackStart   Kind = "track-start"
	KindTrackEnd     Kind = "track-end"
	KindTrackError   Kind = "track-error"
	KindPlayerUpdate Kind = "player-update"
	KindNodeLost     Kind = "node-lost"
)

// Event is the one shape every node frame is reduced to before dispatch.
type Event struct {
	ID          string
	Kind        Kind
	SessionID   string
	ChannelID   string
	Reason      string
	TrackHandle string
	TrackTitle  string
	Received    time.Time
}

// ChannelLookup maps a guild to the voice channel the bot is in.
type ChannelLookup func(guildID string) string

type frame struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Track   *struct {
		Encoded string `json:"encoded"`
		Info    struct {
			Title string `json:"title"`
		} `json:"info"`
	} `json:"track"`
	Exception *struct {
		Message string `json:"message"`
	} `json:"exception"`
}

// Decode reduces a raw node message to an Event. It reports false for
// frames the bridge does not act on or cannot parse.
func Decode(msg node.Message, channelOf ChannelLookup) (Event, bool) {
	var f frame
	if err := json.Unmarshal(msg.Payload, &f); err != nil {
		return Event{}, false
	}

	ev := Event{
		ID:        uuid.NewString(),
		SessionID: f.GuildID,
		Received:  msg.Received,
	}

	switch f.Op {
	case node.OpNodeLost:
		ev.Kind = KindNodeLost
		return ev, true
	case node.OpPlayerUpdate:
		ev.Kind = KindPlayerUpdate
	case node.OpEvent:
		switch f.Type {
		case node.EventTrackStart:
			ev.Kind = KindTrackStart
		case node.EventTrackEnd:
			ev.Kind = KindTrackEnd
			ev.Reason = f.Reason
		case node.EventTrackException:
			ev.Kind = KindTrackError
			if f.Exception != nil {
				ev.Reason = f.Exception.Message
			}
		case node.EventTrackStuck:
			ev.Kind = KindTrackError
			ev.Reason = "stuck"
		default:
			return Event{}, false
		}
	default:
		return Event{}, false
	}

	if ev.SessionID == "" {
		return Event{}, false
	}
	if f.Track != nil {
		ev.TrackHandle = f.Track.Encoded
		ev.TrackTitle = f.Track.Info.Title
	}
	if channelOf != nil {
		ev.ChannelID = channelOf(ev.SessionID)
	}
	return ev, true
}
