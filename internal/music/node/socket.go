package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/keshon/muse/pkg/retrylimit"
)

// ErrUnauthorized means the node rejected the configured password.
var ErrUnauthorized = errors.New("audio node rejected credentials")

func dialRetryConfig() retrylimit.RetryConfig {
	cfg := retrylimit.DefaultRetryConfig()
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = 30 * time.Second
	return cfg
}

// Run keeps a websocket session to the node open until ctx ends. It only
// returns early when the node is not configured or rejects our credentials.
func (c *Client) Run(ctx context.Context) error {
	if !c.Configured() {
		c.log.Warn().Msg("no audio node configured, playback disabled")
		return ErrNodeUnavailable
	}

	for {
		c.gate.SetConnecting()

		var conn *websocket.Conn
		err := retrylimit.WithRetryConfig(ctx, func() error {
			var dialErr error
			conn, dialErr = c.dial(ctx)
			return dialErr
		}, nil, dialRetryConfig())

		if err != nil {
			c.gate.SetDisconnected()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrUnauthorized) {
				c.log.Error().Err(err).Msg("giving up on audio node")
				return err
			}
			c.log.Warn().Err(err).Msg("audio node unreachable, still retrying")
			continue
		}

		c.log.Info().Str("host", c.cfg.Host).Int("port", c.cfg.Port).Msg("connected to audio node")
		err = c.readLoop(ctx, conn)

		if c.gate.SetDisconnected() {
			c.publish(ctx, Message{Payload: json.RawMessage(`{"op":"` + OpNodeLost + `"}`), Received: time.Now()})
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Msg("audio node connection lost, reconnecting")
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	headers := http.Header{}
	headers.Set("Authorization", c.cfg.Password)
	headers.Set("User-Id", c.userID())
	headers.Set("Client-Name", c.cfg.ClientName)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, c.baseURL("ws")+"/v4/websocket", headers)
	if err == nil {
		return conn, nil
	}
	if resp != nil {
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, retrylimit.Fatal(fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode))
		case resp.StatusCode >= 500:
			return nil, &retrylimit.StatusError{Code: resp.StatusCode}
		}
	}
	return nil, err
}

// readLoop pumps messages until the connection fails or ctx ends.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-stop:
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handleFrame(ctx, data)
	}
}

func (c *Client) handleFrame(ctx context.Context, data []byte) {
	var head struct {
		Op string `json:"op"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		c.log.Debug().Err(err).Msg("dropping undecodable node frame")
		return
	}

	switch head.Op {
	case OpReady:
		var ready readyPayload
		if err := json.Unmarshal(data, &ready); err != nil || ready.SessionID == "" {
			c.log.Error().Err(err).Msg("malformed ready frame")
			return
		}
		var pending []string
		if !ready.Resumed {
			// a fresh node session has no players, so voice must be sent again
			pending = c.forgetVoice()
		}
		c.gate.SetReady(ready.SessionID)
		c.log.Info().Str("session", ready.SessionID).Bool("resumed", ready.Resumed).Msg("audio node ready")
		for _, guildID := range pending {
			go c.forwardVoice(guildID)
		}
	case OpStats:
		return
	}

	c.publish(ctx, Message{Payload: json.RawMessage(data), Received: time.Now()})
}

func (c *Client) publish(ctx context.Context, msg Message) {
	select {
	case c.events <- msg:
	case <-ctx.Done():
	}
}
