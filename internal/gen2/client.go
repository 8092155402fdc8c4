// Package gen2 consumes the observatory's status service: one full fetch
// of the subscribed keys at startup, then a roughly 1 Hz stream of
// changed-key deltas which it merges onto the baseline and hands to the
// tracker as complete envelopes.
package gen2

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"sunssactor/internal/logger"
	"sunssactor/internal/models"
)

// Config locates the two status endpoints. StatusURL answers a one-shot
// fetch of named keys; StreamURL is the websocket delta stream.
type Config struct {
	StatusURL string
	StreamURL string
	Username  string
	Password  string
	QueueSize int
}

const (
	fetchTimeout   = 10 * time.Second
	handshakeWait  = 10 * time.Second
	readWait       = 30 * time.Second // stream ticks at ~1 Hz; 30s of silence means trouble
	reconnectMin   = time.Second
	reconnectMax   = 30 * time.Second
	defaultQueueSz = 16
)

// envelope is one stream message: the keys that changed since the last
// update, nothing more.
type envelope struct {
	Status map[string]any `json:"status"`
}

// Client maintains the baseline status dictionary and publishes a merged
// copy per delta on Updates.
type Client struct {
	cfg      Config
	log      *logger.Logger
	http     *http.Client
	out      chan models.RawStatus
	baseline models.RawStatus
}

func New(cfg Config, log *logger.Logger) *Client {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSz
	}
	return &Client{
		cfg:  cfg,
		log:  log,
		http: &http.Client{Timeout: fetchTimeout},
		out:  make(chan models.RawStatus, size),
	}
}

// Updates is the envelope feed. It is closed when Run returns.
func (c *Client) Updates() <-chan models.RawStatus {
	return c.out
}

// SubscribedKeys is the key set fetched and merged. Only part of it is
// normalized; the lamp keys are kept for the audit trail.
func SubscribedKeys() []string {
	return []string{
		models.KeyRACmd, models.KeyDecCmd,
		models.KeyRA, models.KeyDec,
		models.KeyRAOffset, models.KeyDecOffset,
		models.KeyAltitude, models.KeyTelDrive, models.KeyShutterPos,
		models.KeyLamp, models.KeyDomeFFA, models.KeyDomeFF1B, models.KeyCalHal1,
	}
}

// Run fetches the baseline and then consumes the delta stream, dialing
// again with backoff after any failure, until the context is canceled.
func (c *Client) Run(ctx context.Context) {
	defer close(c.out)

	delay := reconnectMin
	for {
		if err := c.session(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warnw("gen2 session ended", "err", err, "retry_in", delay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > reconnectMax {
			delay = reconnectMax
		}
	}
}

// session runs one connect-fetch-stream cycle.
func (c *Client) session(ctx context.Context) error {
	if err := c.fetchBaseline(ctx); err != nil {
		return fmt.Errorf("baseline fetch: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, handshakeWait)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.StreamURL, c.authHeader())
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()
	c.log.Infow("gen2 stream connected", "url", c.cfg.StreamURL)

	// Unblock the read loop when the context dies.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		if len(env.Status) == 0 {
			continue
		}
		c.merge(env.Status)
		if !c.publish(ctx) {
			return nil
		}
	}
}

// fetchBaseline asks the status service for current values of every
// subscribed key. The stream only carries changes, so without this the
// first envelopes would be holey.
func (c *Client) fetchBaseline(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{"keys": SubscribedKeys()})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.StatusURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status service returned %s", resp.Status)
	}

	var fetched map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		return err
	}

	c.baseline = make(models.RawStatus, len(fetched))
	for _, k := range SubscribedKeys() {
		if v, ok := fetched[k]; ok {
			c.baseline[k] = v
		}
	}
	c.log.Infow("gen2 baseline fetched", "keys", len(c.baseline))
	return nil
}

// merge folds changed keys into the baseline, ignoring keys outside the
// subscription.
func (c *Client) merge(changed map[string]any) {
	for _, k := range SubscribedKeys() {
		if v, ok := changed[k]; ok {
			c.baseline[k] = v
		}
	}
}

// publish sends a copy of the merged baseline downstream. The consumer
// owns the copy; the baseline keeps mutating here. Returns false once
// the context is done.
func (c *Client) publish(ctx context.Context) bool {
	snap := make(models.RawStatus, len(c.baseline))
	for k, v := range c.baseline {
		snap[k] = v
	}
	select {
	case c.out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) authHeader() http.Header {
	h := http.Header{}
	if c.cfg.Username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(c.cfg.Username + ":" + c.cfg.Password))
		h.Set("Authorization", "Basic "+cred)
	}
	return h
}
