// Package node is a small Lavalink v4 client: REST calls for searching and
// driving per-guild players, a websocket event stream, a readiness gate and
// Discord voice forwarding.
package node

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/keshon/muse/pkg/retrylimit"
	"github.com/rs/zerolog"
)

const (
	defaultClientName   = "muse/1.0"
	defaultReadyTimeout = 10 * time.Second
	restAttempts        = 3
	eventBuffer         = 256
)

// Config describes a single node.
type Config struct {
	Host         string
	Port         int
	Password     string
	Secure       bool
	UserID       string // bot user id, sent on the websocket handshake
	ClientName   string
	ReadyTimeout time.Duration
	Logger       zerolog.Logger
}

// VoiceJoiner asks Discord to move the bot's voice state. *discordgo.Session
// satisfies it.
type VoiceJoiner interface {
	ChannelVoiceJoinManual(guildID, channelID string, mute, deaf bool) error
}

// Client talks to one node. Create it with New, start Run in a goroutine,
// and consume Events.
type Client struct {
	cfg    Config
	log    zerolog.Logger
	http   *http.Client
	limit  *retrylimit.AdaptiveLimiter
	gate   *Gate
	events chan Message

	joinerMu sync.RWMutex
	joiner   VoiceJoiner

	voiceMu sync.Mutex
	voice   map[string]*voiceSession
}

// New creates a client. It does not dial until Run is called.
func New(cfg Config) *Client {
	if cfg.ClientName == "" {
		cfg.ClientName = defaultClientName
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	return &Client{
		cfg:    cfg,
		log:    cfg.Logger.With().Str("component", "node").Logger(),
		http:   &http.Client{Timeout: 10 * time.Second},
		limit:  retrylimit.NewAdaptiveLimiter(20, 2, 50, 1, 0.5),
		gate:   NewGate(),
		events: make(chan Message, eventBuffer),
		voice:  make(map[string]*voiceSession),
	}
}

// Configured reports whether a node address was given at all.
func (c *Client) Configured() bool {
	return c.cfg.Host != "" && c.cfg.Port > 0
}

// Gate exposes the readiness gate.
func (c *Client) Gate() *Gate { return c.gate }

// Events returns the stream of raw node messages.
func (c *Client) Events() <-chan Message { return c.events }

// SetVoiceJoiner installs the Discord session used for voice joins.
func (c *Client) SetVoiceJoiner(j VoiceJoiner) {
	c.joinerMu.Lock()
	defer c.joinerMu.Unlock()
	c.joiner = j
}

// SetUserID sets the bot user id once Discord has identified us.
func (c *Client) SetUserID(id string) {
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()
	c.cfg.UserID = id
}

func (c *Client) userID() string {
	c.voiceMu.Lock()
	defer c.voiceMu.Unlock()
	return c.cfg.UserID
}

// WaitReady blocks until the node session is ready, bounded by the configured
// ready timeout.
func (c *Client) WaitReady(ctx context.Context) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("%w: no node configured", ErrNodeUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReadyTimeout)
	defer cancel()
	return c.gate.Wait(ctx)
}

func (c *Client) baseURL(scheme string) string {
	if c.cfg.Secure {
		scheme += "s"
	}
	return scheme + "://" + net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

// LoadTracks resolves an identifier ("ytsearch:...", a URL, ...) on the node.
func (c *Client) LoadTracks(ctx context.Context, identifier string) (*LoadResult, error) {
	endpoint := c.baseURL("http") + "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)
	var result LoadResult
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Search returns the ordered tracks for identifier once the node is ready.
func (c *Client) Search(ctx context.Context, identifier string) ([]TrackData, error) {
	if _, err := c.WaitReady(ctx); err != nil {
		return nil, err
	}
	res, err := c.LoadTracks(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNodeUnavailable, err)
	}
	return res.Tracks()
}

// Play starts the encoded track on the guild's player at startMs.
func (c *Client) Play(ctx context.Context, guildID, handle string, startMs int64) error {
	paused := false
	return c.updatePlayer(ctx, guildID, playerUpdate{
		Track:    &encodedTrack{Encoded: &handle},
		Position: &startMs,
		Paused:   &paused,
	})
}

// Stop stops whatever the guild's player is rendering.
func (c *Client) Stop(ctx context.Context, guildID string) error {
	return c.updatePlayer(ctx, guildID, playerUpdate{Track: &encodedTrack{Encoded: nil}})
}

// SetPause pauses or resumes the guild's player.
func (c *Client) SetPause(ctx context.Context, guildID string, paused bool) error {
	return c.updatePlayer(ctx, guildID, playerUpdate{Paused: &paused})
}

// SetVolume sets the guild's player volume.
func (c *Client) SetVolume(ctx context.Context, guildID string, level int) error {
	return c.updatePlayer(ctx, guildID, playerUpdate{Volume: &level})
}

// DestroyPlayer removes the guild's player from the node.
func (c *Client) DestroyPlayer(ctx context.Context, guildID string) error {
	sid, err := c.WaitReady(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/v4/sessions/%s/players/%s", c.baseURL("http"), sid, guildID)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

func (c *Client) updatePlayer(ctx context.Context, guildID string, update playerUpdate) error {
	sid, err := c.WaitReady(ctx)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/v4/sessions/%s/players/%s?noReplace=false", c.baseURL("http"), sid, guildID)
	return c.do(ctx, http.MethodPatch, endpoint, update, nil)
}

// do performs one REST call with retry and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	return retrylimit.WithRetryMax(ctx, func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return retrylimit.Fatal(err)
		}
		req.Header.Set("Authorization", c.cfg.Password)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			statusErr := &retrylimit.StatusError{Code: resp.StatusCode, Body: string(text)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return retrylimit.Fatal(statusErr)
		}
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retrylimit.Fatal(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}, c.limit, restAttempts)
}
