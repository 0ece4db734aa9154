package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/aurorapulse/internal/clock"
	"github.com/jpalmerr/aurorapulse/internal/device"
)

// DefaultURL is PVOutput's add-status endpoint.
const DefaultURL = "https://pvoutput.org/service/r2/addstatus.jsp"

const (
	headerAPIKey   = "X-Pvoutput-Apikey"
	headerSystemID = "X-Pvoutput-SystemId"

	defaultTimeout      = 30 * time.Second
	maxResponseBodySize = 4 << 10
)

// one upload in flight against one host
const (
	defaultMaxIdleConns    = 2
	defaultMaxConnsPerHost = 1
	defaultIdleConnTimeout = 90 * time.Second
)

// Credentials authenticate every upload.
type Credentials struct {
	SystemID string
	APIKey   string
}

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result describes a completed upload round trip.
type Result struct {
	// StatusCode is the HTTP status returned by the service.
	StatusCode int

	// Body is the start of the response body, limited to 4KB. PVOutput
	// explains rejections here.
	Body []byte

	// Latency is the time taken by the round trip.
	Latency time.Duration
}

// OK reports whether the service accepted the upload.
func (r Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// TransportError is returned when an upload could not be completed at the
// HTTP transport level: no status was received.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("upload transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ClientConfig configures a [Client]. Zero values select defaults.
type ClientConfig struct {
	URL         string
	Credentials Credentials

	// Timeout bounds each upload. Defaults to 30s.
	Timeout time.Duration

	// Doer overrides the pooled *http.Client.
	Doer Doer

	// Clock and Location determine the date and time fields of each
	// upload. Default to the real clock and time.Local.
	Clock    clock.Clock
	Location *time.Location
}

// Client posts readings to the add-status service.
//
// Client uses a per-request timeout via context rather than a client-wide
// one, and keeps its single connection alive between uploads.
type Client struct {
	doer     Doer
	url      string
	creds    Credentials
	timeout  time.Duration
	clk      clock.Clock
	location *time.Location
}

// NewClient creates an upload [Client].
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		doer:     cfg.Doer,
		url:      cfg.URL,
		creds:    cfg.Credentials,
		timeout:  cfg.Timeout,
		clk:      cfg.Clock,
		location: cfg.Location,
	}
	if c.doer == nil {
		c.doer = &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				MaxIdleConns:      defaultMaxIdleConns,
				MaxConnsPerHost:   defaultMaxConnsPerHost,
				IdleConnTimeout:   defaultIdleConnTimeout,
				DisableKeepAlives: false,
			},
		}
	}
	if c.url == "" {
		c.url = DefaultURL
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.clk == nil {
		c.clk = clock.Real()
	}
	if c.location == nil {
		c.location = time.Local
	}
	return c
}

// FormBody returns the form fields for r stamped with now: d (YYYYMMDD),
// t (HH:MM), v1 (energy, Wh) and v6 (voltage, V).
func FormBody(now time.Time, r device.Reading) url.Values {
	return url.Values{
		"d":  {now.Format("20060102")},
		"t":  {now.Format("15:04")},
		"v1": {strconv.FormatUint(uint64(r.CumulativeEnergyWh), 10)},
		"v6": {strconv.FormatFloat(float64(r.InstantVoltage), 'f', -1, 32)},
	}
}

// Upload posts r and returns the service's answer.
//
// A non-success status is not an error: it is reported through
// [Result.OK]. Any failure to obtain a status is a [*TransportError].
func (c *Client) Upload(ctx context.Context, r device.Reading) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.clk.Now()
	body := FormBody(start.In(c.location), r).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(body))
	if err != nil {
		return Result{}, &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(headerAPIKey, c.creds.APIKey)
	req.Header.Set(headerSystemID, c.creds.SystemID)

	resp, err := c.doer.Do(req)
	if err != nil {
		return Result{}, &TransportError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	// the status is in; a short body read is not worth failing the session over
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))

	return Result{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Latency:    c.clk.Now().Sub(start),
	}, nil
}

// Close closes idle connections held by the default transport. Safe to
// call multiple times.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if hc, ok := c.doer.(*http.Client); ok {
		hc.CloseIdleConnections()
	}
}
