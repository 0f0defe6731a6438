package kiosk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Agent talks to the external device-control service that owns the RFID
// reader. Notifications are fire and forget: a dead agent must never block
// the desk, so failures are logged and swallowed.
type Agent struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewAgent constructs an Agent for the given base URL.
func NewAgent(baseURL string, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
	}
}

// NotifyMode switches the reader between read and write mode.
func (a *Agent) NotifyMode(mode string) {
	a.fireAndForget("/api/mode", map[string]string{"mode": mode})
}

// NotifyStopRead tells the reader to stop its read loop.
func (a *Agent) NotifyStopRead() {
	a.fireAndForget("/api/stop_read", nil)
}

// NotifyStopWrite tells the reader to stop its write loop.
func (a *Agent) NotifyStopWrite() {
	a.fireAndForget("/api/stop_write", nil)
}

// NotifyConnect asks the agent to open the given serial port.
func (a *Agent) NotifyConnect(port string) {
	a.fireAndForget("/api/connect", map[string]string{"port": port})
}

// NotifyDisconnect asks the agent to release the reader.
func (a *Agent) NotifyDisconnect() {
	a.fireAndForget("/api/disconnect", nil)
}

// Ports lists the serial ports the agent can see. Unlike the notify calls
// this is synchronous because the caller renders the result.
func (a *Agent) Ports(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/ports", nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("device agent returned status %d", resp.StatusCode)
	}
	var payload struct {
		Ports []string `json:"ports"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Ports, nil
}

func (a *Agent) fireAndForget(path string, body map[string]string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var reader io.Reader
		if body != nil {
			encoded, err := json.Marshal(body)
			if err != nil {
				a.logger.Warn("device agent payload encode failed", zap.String("path", path), zap.Error(err))
				return
			}
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, reader)
		if err != nil {
			a.logger.Warn("device agent request build failed", zap.String("path", path), zap.Error(err))
			return
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := a.client.Do(req)
		if err != nil {
			a.logger.Warn("device agent unreachable", zap.String("path", path), zap.Error(err))
			return
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			a.logger.Warn("device agent rejected notification",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode))
		}
	}()
}
