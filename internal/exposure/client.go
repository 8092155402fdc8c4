// Package exposure talks to the IIC actor that owns SPS exposures. SuNSS
// feeds one spectrograph module through fibers; which one is wired up is
// discovered from the sps light-source assignments rather than configured.
package exposure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"sunssactor/internal/logger"
)

// ErrNoModule means no spectrograph module currently lists sunss as its
// light source, so there is nothing to expose.
var ErrNoModule = errors.New("sunss is not connected to a spectrograph module")

const (
	// startWait is deliberately short: startExposures blocks in IIC until
	// resources are allocated, and a timeout there is not a failure for
	// us (the exposure still starts). See the timeout handling in Start.
	startWait   = 5 * time.Second
	finishWait  = 5 * time.Second
	requestWait = 10 * time.Second

	defaultExptimeSec = 1200
	exposureName      = "sunss"

	moduleCount = 4
)

// Client is an HTTP client for the IIC actor's sps command surface.
type Client struct {
	base    string
	exptime int
	http    *http.Client
	log     *logger.Logger
}

func New(baseURL string, exptimeSec int, log *logger.Logger) *Client {
	if exptimeSec <= 0 {
		exptimeSec = defaultExptimeSec
	}
	return &Client{
		base:    baseURL,
		exptime: exptimeSec,
		http:    &http.Client{Timeout: requestWait},
		log:     log,
	}
}

// SunssModule finds which spectrograph module, if any, has sunss as its
// light source. Returns ErrNoModule when none does.
func (c *Client) SunssModule(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/sps/lightSources", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("lightSources returned %s", resp.Status)
	}

	var sources map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&sources); err != nil {
		return 0, err
	}
	for i := 1; i <= moduleCount; i++ {
		if sources[fmt.Sprintf("sm%d", i)] == "sunss" {
			c.log.Infow("found SuNSS light source", "sm", i)
			return i, nil
		}
	}
	return 0, ErrNoModule
}

// Start asks IIC to begin SPS exposures on the given module. A timeout is
// tolerated: IIC holds the reply until validation and resource allocation
// finish, long after the exposures are actually underway. Any other
// failure is returned.
func (c *Client) Start(ctx context.Context, sm int) error {
	body := map[string]any{
		"exptime": c.exptime,
		"sm":      sm,
		"name":    exposureName,
	}
	err := c.post(ctx, "/sps/startExposures", body, startWait)
	if err != nil {
		if isTimeout(err) {
			c.log.Warnw("startExposures timed out; exposure assumed started", "sm", sm)
			return nil
		}
		return fmt.Errorf("start sps exposures: %w", err)
	}
	return nil
}

// Finish asks IIC to wrap up the current SPS exposure.
func (c *Client) Finish(ctx context.Context) error {
	if err := c.post(ctx, "/sps/finishExposure", nil, finishWait); err != nil {
		return fmt.Errorf("finish sps exposure: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
