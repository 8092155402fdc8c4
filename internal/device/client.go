// Package device speaks to the SuNSS stage controller: a Raspberry Pi
// bridging a serial motor controller to a TCP socket. The protocol is one
// newline-terminated command per connection, one line back.
package device

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"sunssactor/internal/logger"
	"sunssactor/internal/models"
)

// Per-command reply deadlines. A track command winds the stage to its
// start position before replying, so it gets more rope than stop/status.
const (
	defaultTimeout = 2 * time.Second
	trackTimeout   = 10 * time.Second
)

// Client issues commands to the stage controller. Connections are opened
// per command; the controller accepts one client at a time and commands
// flow at well under 1 Hz.
type Client struct {
	addr string
	log  *logger.Logger

	// dial is swappable for tests
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

func New(host string, port int, log *logger.Logger) *Client {
	return &Client{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		log:  log,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
	}
}

// Stop halts any current stage move.
func (c *Client) Stop(ctx context.Context) error {
	_, err := c.Command(ctx, "stop", defaultTimeout)
	return err
}

// Track starts the stage tracking from the given hour angle and
// declination, both in degrees, with the unix time the hour angle was
// computed for. speed is a rate multiple used for bench testing; 1 is
// sidereal.
func (c *Client) Track(ctx context.Context, haDeg, decDeg float64, unix int64, speed int) error {
	cmd := fmt.Sprintf("track %g %g %d %d", haDeg, decDeg, unix, speed)
	_, err := c.Command(ctx, cmd, trackTimeout)
	return err
}

// Status queries the controller and parses its whitespace-delimited
// reply: tracking flag, last step timestamp, step count, moving flag.
// A malformed reply degrades to a report with Steps=-1 instead of
// failing; the controller firmware occasionally garbles a line.
func (c *Client) Status(ctx context.Context) (models.SunssStatus, error) {
	reply, err := c.Command(ctx, "status", defaultTimeout)
	if err != nil {
		return models.SunssStatus{}, err
	}
	st, ok := parseStatus(reply)
	if !ok {
		c.log.Warnw("unparseable stage status", "reply", reply)
		return models.SunssStatus{Steps: -1}, nil
	}
	return st, nil
}

// Command sends one raw command line and returns the stripped reply.
func (c *Client) Command(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := c.dial(ctx, c.addr)
	if err != nil {
		return "", fmt.Errorf("connect %s: %w", c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c.log.Debugw("stage command", "cmd", cmd)
	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		return "", fmt.Errorf("send %q: %w", cmd, err)
	}

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reply to %q: %w", cmd, err)
	}
	reply = strings.TrimSpace(reply)
	c.log.Debugw("stage reply", "reply", reply)
	return reply, nil
}

func parseStatus(reply string) (models.SunssStatus, bool) {
	fields := strings.Fields(reply)
	if len(fields) < 4 {
		return models.SunssStatus{}, false
	}
	tracking, err1 := strconv.Atoi(fields[0])
	stepTs, err2 := strconv.ParseInt(fields[1], 10, 64)
	steps, err3 := strconv.Atoi(fields[2])
	moving, err4 := strconv.Atoi(fields[3])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return models.SunssStatus{}, false
	}
	return models.SunssStatus{
		Tracking: tracking,
		Moving:   moving,
		StepTs:   stepTs,
		Steps:    steps,
	}, true
}
