package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNodeUnavailable means no node is configured or none became ready in time.
	ErrNodeUnavailable = errors.New("audio node is not available")
	// ErrLoadFailed means the node answered a track load with an error result.
	ErrLoadFailed = errors.New("audio node failed to load tracks")
)

// Load result types reported by the node.
const (
	LoadTypeTrack    = "track"
	LoadTypePlaylist = "playlist"
	LoadTypeSearch   = "search"
	LoadTypeEmpty    = "empty"
	LoadTypeError    = "error"
)

// Websocket ops and event types.
const (
	OpReady        = "ready"
	OpPlayerUpdate = "playerUpdate"
	OpStats        = "stats"
	OpEvent        = "event"

	// OpNodeLost is not sent by the node; the client emits it when the
	// websocket drops after the session was ready.
	OpNodeLost = "nodeLost"

	EventTrackStart     = "TrackStartEvent"
	EventTrackEnd       = "TrackEndEvent"
	EventTrackException = "TrackExceptionEvent"
	EventTrackStuck     = "TrackStuckEvent"
	EventSocketClosed   = "WebSocketClosedEvent"
)

// TrackInfo is the descriptive part of a node track.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl"`
	ISRC       string `json:"isrc"`
	SourceName string `json:"sourceName"`
}

// TrackData is a playable node track: the encoded handle plus its info.
type TrackData struct {
	Encoded string    `json:"encoded"`
	Info    TrackInfo `json:"info"`
}

// LoadResult is the body of a loadtracks response.
type LoadResult struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type playlistData struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Tracks []TrackData `json:"tracks"`
}

type loadException struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

// Tracks flattens the result into an ordered track list.
func (r *LoadResult) Tracks() ([]TrackData, error) {
	switch r.LoadType {
	case LoadTypeEmpty:
		return nil, nil
	case LoadTypeTrack:
		var t TrackData
		if err := json.Unmarshal(r.Data, &t); err != nil {
			return nil, fmt.Errorf("decode track: %w", err)
		}
		return []TrackData{t}, nil
	case LoadTypeSearch:
		var ts []TrackData
		if err := json.Unmarshal(r.Data, &ts); err != nil {
			return nil, fmt.Errorf("decode search result: %w", err)
		}
		return ts, nil
	case LoadTypePlaylist:
		var p playlistData
		if err := json.Unmarshal(r.Data, &p); err != nil {
			return nil, fmt.Errorf("decode playlist: %w", err)
		}
		return p.Tracks, nil
	case LoadTypeError:
		var ex loadException
		_ = json.Unmarshal(r.Data, &ex)
		return nil, fmt.Errorf("%w: %s (%s)", ErrLoadFailed, ex.Message, ex.Severity)
	default:
		return nil, fmt.Errorf("%w: unknown load type %q", ErrLoadFailed, r.LoadType)
	}
}

// Message is one raw websocket payload from the node, stamped on receipt.
// Decoding into domain events happens in the consumer.
type Message struct {
	Payload  json.RawMessage
	Received time.Time
}

type readyPayload struct {
	Op        string `json:"op"`
	SessionID string `json:"sessionId"`
	Resumed   bool   `json:"resumed"`
}

type voicePayload struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

// encodedTrack is a pointer so Stop can send an explicit JSON null.
type encodedTrack struct {
	Encoded *string `json:"encoded"`
}

type playerUpdate struct {
	Track    *encodedTrack `json:"track,omitempty"`
	Position *int64        `json:"position,omitempty"`
	Volume   *int          `json:"volume,omitempty"`
	Paused   *bool         `json:"paused,omitempty"`
	Voice    *voicePayload `json:"voice,omitempty"`
}
