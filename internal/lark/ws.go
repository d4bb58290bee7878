package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

const (
	wsEndpointPath   = "/callback/ws/endpoint"
	wsReadLimit      = 1 << 20 // 1MB
	wsPingInterval   = 30 * time.Second
	wsReconnectBase  = 2 * time.Second
	wsReconnectLimit = 60 * time.Second
)

// EventHandler receives a raw event payload from the long connection.
// Returning an error is logged but never tears down the connection.
type EventHandler interface {
	HandleEvent(ctx context.Context, payload []byte) error
}

// WSClient maintains the Lark event long connection: it resolves the
// gateway endpoint, dials it, forwards event frames to the handler, and
// reconnects with capped exponential backoff.
type WSClient struct {
	client  *Client
	handler EventHandler
	stopCh  chan struct{}
}

// NewWSClient creates an event subscription client.
func NewWSClient(client *Client, handler EventHandler) *WSClient {
	return &WSClient{
		client:  client,
		handler: handler,
		stopCh:  make(chan struct{}),
	}
}

// Start runs the connect/read loop until the context is cancelled or
// Stop is called. It blocks.
func (w *WSClient) Start(ctx context.Context) error {
	backoff := wsReconnectBase
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		default:
		}

		err := w.connectAndRead(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		slog.Warn("lark ws disconnected, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, wsReconnectLimit)
	}
}

// Stop terminates the read loop and prevents reconnects.
func (w *WSClient) Stop() {
	close(w.stopCh)
}

func (w *WSClient) connectAndRead(ctx context.Context) error {
	endpoint, err := w.resolveEndpoint(ctx)
	if err != nil {
		return fmt.Errorf("resolve ws endpoint: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}
	conn.SetReadLimit(wsReadLimit)
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")

	slog.Info("lark ws connected")

	// Keepalive pings so intermediaries don't drop the idle connection.
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if err := conn.Ping(pingCtx); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("ws read: %w", err)
		}

		var frame struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Debug("lark ws: unparseable frame", "error", err)
			continue
		}
		if frame.Type != "event" {
			continue
		}
		if err := w.handler.HandleEvent(ctx, frame.Payload); err != nil {
			slog.Warn("lark ws: event handler error", "error", err)
		}
	}
}

// resolveEndpoint asks the platform for the current event gateway URL.
func (w *WSClient) resolveEndpoint(ctx context.Context) (string, error) {
	resp, err := w.client.doJSON(ctx, "POST", wsEndpointPath, map[string]string{
		"app_id":     w.client.appID,
		"app_secret": w.client.appSecret,
	})
	if err != nil {
		return "", err
	}
	if resp.Code != 0 {
		return "", fmt.Errorf("ws endpoint: code=%d msg=%s", resp.Code, resp.Msg)
	}
	var data struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil || data.URL == "" {
		return "", fmt.Errorf("ws endpoint: missing url in response")
	}
	return data.URL, nil
}
