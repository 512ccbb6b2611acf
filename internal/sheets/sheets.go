// Package sheets is a small Google Sheets values client used as the GymBro spreadsheet backend.
//
// It reads whole ranges and appends rows through the Sheets v4 REST API, authenticating with a
// service account through golang.org/x/oauth2/google.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultBaseURL is the Sheets API endpoint
	DefaultBaseURL = "https://sheets.googleapis.com"
	// Scope grants read/write access to spreadsheets
	Scope = "https://www.googleapis.com/auth/spreadsheets"
	// DefaultTimeout bounds a single API call
	DefaultTimeout = 20 * time.Second
)

// ErrNoCredentials is returned when neither credentials nor an HTTP client were configured.
var ErrNoCredentials = errors.New("sheets: no service account credentials configured")

// StatusError is a non-2xx answer from the Sheets API.
type StatusError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("sheets: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("sheets: HTTP %d %s: %s", e.StatusCode, e.Status, e.Message)
}

// Opts holds configuration for the Sheets client.
type Opts struct {
	SpreadsheetID   string
	CredentialsJSON []byte
	BaseURL         string
	HTTPClient      *http.Client // pre-authenticated client; skips the service account flow
	Timeout         time.Duration
}

// Option configures the Sheets client.
type Option func(*Opts)

// WithSpreadsheetID sets the spreadsheet all ranges refer to.
func WithSpreadsheetID(id string) Option {
	return func(o *Opts) { o.SpreadsheetID = id }
}

// WithCredentialsJSON sets the service account key (JSON).
func WithCredentialsJSON(data []byte) Option {
	return func(o *Opts) { o.CredentialsJSON = data }
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithHTTPClient uses c for every request instead of building an OAuth2 client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithTimeout bounds each API call.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client reads and appends spreadsheet values.
type Client struct {
	cfg Opts

	mu   sync.Mutex
	http *http.Client
}

// NewClient validates the configuration and acquires credentials.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := Opts{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("sheets: spreadsheet id not set")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{cfg: cfg}
	httpClient, err := c.authorize(ctx)
	if err != nil {
		return nil, err
	}
	c.http = httpClient
	slog.Debug("sheets.NewClient: client ready", "spreadsheet", cfg.SpreadsheetID, "base_url", cfg.BaseURL)
	return c, nil
}

// authorize builds an HTTP client carrying fresh service account credentials.
func (c *Client) authorize(ctx context.Context) (*http.Client, error) {
	if c.cfg.HTTPClient != nil {
		return c.cfg.HTTPClient, nil
	}
	if len(c.cfg.CredentialsJSON) == 0 {
		return nil, ErrNoCredentials
	}
	creds, err := google.CredentialsFromJSON(ctx, c.cfg.CredentialsJSON, Scope)
	if err != nil {
		return nil, fmt.Errorf("sheets: parse credentials: %w", err)
	}
	// The token source outlives the request context that created it.
	client := oauth2.NewClient(context.Background(), creds.TokenSource)
	client.Timeout = c.cfg.Timeout
	return client, nil
}

func (c *Client) client() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.http
}

// reauthorize replaces the HTTP client after the API rejected its credentials.
func (c *Client) reauthorize(ctx context.Context) error {
	httpClient, err := c.authorize(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.http = httpClient
	c.mu.Unlock()
	return nil
}

type valueRange struct {
	Range  string          `json:"range,omitempty"`
	Values [][]interface{} `json:"values"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Values returns every row of rng as strings. Missing trailing cells are simply absent.
func (c *Client) Values(ctx context.Context, rng string) ([][]string, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.SpreadsheetID), url.PathEscape(rng))

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var vr valueRange
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("sheets: decode values of %q: %w", rng, err)
	}
	rows := make([][]string, 0, len(vr.Values))
	for _, raw := range vr.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = cellString(cell)
		}
		rows = append(rows, row)
	}
	slog.Debug("sheets.Values: read range", "range", rng, "rows", len(rows))
	return rows, nil
}

// cellString renders a decoded cell. Numbers never use exponent notation so ids and phones
// survive unformatted columns.
func cellString(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Append adds row after the last row of the table found in rng.
func (c *Client) Append(ctx context.Context, rng string, row []string) error {
	q := url.Values{}
	q.Set("valueInputOption", "RAW")
	q.Set("insertDataOption", "INSERT_ROWS")
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.SpreadsheetID), url.PathEscape(rng), q.Encode())

	cells := make([]interface{}, len(row))
	for i, v := range row {
		cells[i] = v
	}
	payload, err := json.Marshal(valueRange{Values: [][]interface{}{cells}})
	if err != nil {
		return fmt.Errorf("sheets: encode row: %w", err)
	}
	if _, err := c.do(ctx, http.MethodPost, endpoint, payload); err != nil {
		return err
	}
	slog.Debug("sheets.Append: row appended", "range", rng, "cells", len(row))
	return nil
}

// do runs one request, re-acquiring credentials and retrying once on 401. A 403 means the
// service account lacks access to the spreadsheet and is returned as is.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	body, err := c.send(ctx, method, endpoint, payload)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
		slog.Warn("sheets.do: credentials rejected, re-acquiring", "method", method)
		if rerr := c.reauthorize(ctx); rerr != nil {
			return nil, fmt.Errorf("sheets: re-acquire credentials: %w", rerr)
		}
		body, err = c.send(ctx, method, endpoint, payload)
	}
	return body, err
}

func (c *Client) send(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("sheets: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheets: %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sheets: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var env errorEnvelope
		if json.Unmarshal(body, &env) == nil {
			se.Status = env.Error.Status
			se.Message = env.Error.Message
		}
		return nil, se
	}
	return body, nil
}
