package imouse

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/otg-controller/internal/automation"
	"github.com/nerrad567/otg-controller/internal/device"
	"github.com/nerrad567/otg-controller/internal/infrastructure/config"
)

// Defaults applied when the config leaves a field at zero.
const (
	defaultTimeout    = 30 * time.Second
	defaultRetryDelay = 500 * time.Millisecond

	// maxReplyBytes bounds a reply body; screenshots are the largest.
	maxReplyBytes = 32 << 20
)

// Bridge commands.
const (
	funClick      = "/mouse/click"
	funSwipe      = "/mouse/swipe"
	funSendKey    = "/key/sendkey"
	funScreenshot = "/pic/screenshot"
	funDeviceList = "/device/get"
)

// Logger is the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client talks to one iMouseXP bridge.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	endpoint   string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     Logger
}

var _ automation.Actuator = (*Client)(nil)

// New creates a client for the bridge described by cfg. A zero Port means
// BaseURL already carries the port.
func New(cfg config.IMouseConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Port > 0 {
		base = fmt.Sprintf("%s:%d", base, cfg.Port)
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retryDelay := time.Duration(cfg.RetryDelay) * time.Millisecond
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		endpoint:   base + "/api",
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// ─── Gestures ───────────────────────────────────────────────────────────────

// Tap sends a single left click at pixel (x, y).
func (c *Client) Tap(ctx context.Context, deviceID string, x, y int) error {
	c.logger.Debug("imouse tap", "device", deviceID, "x", x, "y", y)
	return c.call(ctx, funClick, map[string]any{
		"id":     deviceID,
		"x":      x,
		"y":      y,
		"button": "left",
		"count":  1,
	}, nil)
}

// Swipe drags from pixel (x, y) length pixels in dir.
func (c *Client) Swipe(ctx context.Context, deviceID string, x, y int, dir automation.SwipeDirection, length int) error {
	c.logger.Debug("imouse swipe", "device", deviceID, "x", x, "y", y, "direction", dir, "length", length)
	return c.call(ctx, funSwipe, map[string]any{
		"id":        deviceID,
		"x":         x,
		"y":         y,
		"direction": string(dir),
		"length":    length,
	}, nil)
}

// TypeText types text on the device keyboard. The bridge only handles
// basic ASCII reliably.
func (c *Client) TypeText(ctx context.Context, deviceID, text string) error {
	c.logger.Debug("imouse type", "device", deviceID, "chars", len(text))
	return c.call(ctx, funSendKey, map[string]any{
		"id":  deviceID,
		"key": text,
	}, nil)
}

// Screenshot captures the current screen as JPEG bytes.
func (c *Client) Screenshot(ctx context.Context, deviceID string) ([]byte, error) {
	var shot struct {
		Image string `json:"image"`
	}
	err := c.call(ctx, funScreenshot, map[string]any{
		"id":     deviceID,
		"binary": false,
		"jpg":    true,
	}, &shot)
	if err != nil {
		return nil, err
	}

	encoded := shot.Image
	if i := strings.Index(encoded, ";base64,"); strings.HasPrefix(encoded, "data:") && i >= 0 {
		encoded = encoded[i+len(";base64,"):]
	}
	if encoded == "" {
		return nil, ErrNoImage
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot is not base64: %w", ErrBadResponse, err)
	}
	return img, nil
}

// ─── Discovery ──────────────────────────────────────────────────────────────

// bridgeDevice is one entry of the /device/get list. Dimensions and state
// arrive as numbers or strings depending on the bridge build.
type bridgeDevice struct {
	ID     string     `json:"deviceid"`
	Name   string     `json:"device_name"`
	Width  flexInt    `json:"width"`
	Height flexInt    `json:"height"`
	ImgW   flexInt    `json:"imgw"`
	ImgH   flexInt    `json:"imgh"`
	Group  string     `json:"gname"`
	State  flexString `json:"state"`
}

// ListDevices returns every device the bridge currently reports.
func (c *Client) ListDevices(ctx context.Context) ([]device.Discovered, error) {
	var reply struct {
		List []bridgeDevice `json:"list"`
	}
	if err := c.call(ctx, funDeviceList, map[string]any{}, &reply); err != nil {
		return nil, err
	}

	out := make([]device.Discovered, 0, len(reply.List))
	for _, d := range reply.List {
		out = append(out, device.Discovered{
			ID:           d.ID,
			Name:         d.Name,
			Width:        int(d.Width),
			Height:       int(d.Height),
			ScreenWidth:  int(d.ImgW),
			ScreenHeight: int(d.ImgH),
			Group:        d.Group,
			State:        string(d.State),
		})
	}
	return out, nil
}

// ─── Transport ──────────────────────────────────────────────────────────────

type request struct {
	Fun  string         `json:"fun"`
	Data map[string]any `json:"data"`
}

type reply struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

// call sends one command, retrying transient failures, and decodes the
// reply's data object into out when out is non-nil.
func (c *Client) call(ctx context.Context, fun string, data map[string]any, out any) error {
	body, err := json.Marshal(request{Fun: fun, Data: data})
	if err != nil {
		return fmt.Errorf("imouse: encoding %s: %w", fun, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(attempt)
			c.logger.Warn("retrying imouse request", "fun", fun, "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", lastErr)
			if err := automation.Sleep(ctx, delay); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrRequestFailed, fun, err)
			}
		}

		raw, retry, err := c.do(ctx, fun, body)
		if err == nil {
			return decodeData(fun, raw, out)
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// do performs a single POST. retry reports whether the failure is transient.
func (c *Client) do(ctx context.Context, fun string, body []byte) (data json.RawMessage, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrRequestFailed, fun, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("%w: %s: %w", ErrRequestFailed, fun, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("%w: %s: reading reply: %w", ErrRequestFailed, fun, err)
	}

	if resp.StatusCode != http.StatusOK {
		transient := resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
		return nil, transient, fmt.Errorf("%w: %s: HTTP %d", ErrRequestFailed, fun, resp.StatusCode)
	}

	var r reply
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrBadResponse, fun, err)
	}
	if r.Status != http.StatusOK && r.Status != 0 {
		return nil, false, fmt.Errorf("%w: %s: %s", ErrCommandRejected, fun, r.reason())
	}
	return r.Data, false, nil
}

func (r *reply) reason() string {
	switch {
	case r.Message != "":
		return r.Message
	case r.Msg != "":
		return r.Msg
	}
	var code struct {
		Code any `json:"code"`
	}
	if len(r.Data) > 0 && json.Unmarshal(r.Data, &code) == nil && code.Code != nil {
		return fmt.Sprintf("error code %v", code.Code)
	}
	return fmt.Sprintf("status %d", r.Status)
}

func decodeData(fun string, raw json.RawMessage, out any) error {
	if out == nil || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s data: %w", ErrBadResponse, fun, err)
	}
	return nil
}

// flexInt accepts 390, 390.0 or "390".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parsing %s as a number: %w", b, err)
	}
	*f = flexInt(math.Round(v))
	return nil
}

// flexString accepts "online" or 1.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}
