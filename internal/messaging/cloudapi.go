package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/BTreeMap/GymBro/internal/models"
)

// Cloud API defaults
const (
	DefaultGraphBaseURL   = "https://graph.facebook.com"
	DefaultAPIVersion     = "v22.0"
	DefaultSendRatePerSec = 20
	DefaultHTTPTimeout    = 15 * time.Second
)

// APIError is an error answered by the Graph API.
type APIError struct {
	StatusCode int
	Code       int    `json:"code"`
	Type       string `json:"type"`
	Message    string `json:"message"`
	TraceID    string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error (status %d, code %d, %s): %s", e.StatusCode, e.Code, e.Type, e.Message)
}

// CloudAPIOpts holds configuration for the Cloud API client.
type CloudAPIOpts struct {
	Token         string
	PhoneNumberID string
	APIVersion    string
	BaseURL       string
	RatePerSec    float64
	HTTPClient    *http.Client
}

// CloudAPIOption configures a CloudAPIClient.
type CloudAPIOption func(*CloudAPIOpts)

// WithToken sets the bearer token of the WhatsApp business account.
func WithToken(token string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.Token = token }
}

// WithPhoneNumberID sets the business phone number id messages are sent from.
func WithPhoneNumberID(id string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.PhoneNumberID = id }
}

// WithAPIVersion sets the Graph API version, e.g. "v22.0".
func WithAPIVersion(version string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.APIVersion = version }
}

// WithBaseURL overrides the Graph API host.
func WithBaseURL(url string) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.BaseURL = url }
}

// WithSendRate limits outbound requests per second.
func WithSendRate(perSec float64) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.RatePerSec = perSec }
}

// WithHTTPClient sets the HTTP client used for Graph API calls.
func WithHTTPClient(c *http.Client) CloudAPIOption {
	return func(o *CloudAPIOpts) { o.HTTPClient = c }
}

// CloudAPIClient implements Service on the WhatsApp Cloud API.
type CloudAPIClient struct {
	httpClient *http.Client
	endpoint   string
	token      string
	limiter    *rate.Limiter

	mu      sync.RWMutex
	stopped bool
}

// NewCloudAPIClient creates a Cloud API client.
func NewCloudAPIClient(opts ...CloudAPIOption) (*CloudAPIClient, error) {
	cfg := CloudAPIOpts{
		APIVersion: DefaultAPIVersion,
		BaseURL:    DefaultGraphBaseURL,
		RatePerSec: DefaultSendRatePerSec,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("cloud api token must be provided")
	}
	if cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("business phone number id must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = DefaultSendRatePerSec
	}
	burst := int(cfg.RatePerSec)
	if burst < 1 {
		burst = 1
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(cfg.BaseURL, "/"), cfg.APIVersion, cfg.PhoneNumberID)
	slog.Debug("CloudAPIClient created", "endpoint", endpoint, "ratePerSec", cfg.RatePerSec)
	return &CloudAPIClient{
		httpClient: cfg.HTTPClient,
		endpoint:   endpoint,
		token:      cfg.Token,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst),
	}, nil
}

type cloudText struct {
	Body string `json:"body"`
}

type cloudContext struct {
	MessageID string `json:"message_id"`
}

type cloudMediaObject struct {
	Link     string `json:"link"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type cloudReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type cloudButton struct {
	Type  string     `json:"type"`
	Reply cloudReply `json:"reply"`
}

type cloudInteractiveBody struct {
	Text string `json:"text"`
}

type cloudInteractive struct {
	Type   string               `json:"type"`
	Body   cloudInteractiveBody `json:"body"`
	Action struct {
		Buttons []cloudButton `json:"buttons"`
	} `json:"action"`
}

type cloudMessage struct {
	MessagingProduct string            `json:"messaging_product"`
	RecipientType    string            `json:"recipient_type,omitempty"`
	To               string            `json:"to,omitempty"`
	Type             string            `json:"type,omitempty"`
	Context          *cloudContext     `json:"context,omitempty"`
	Text             *cloudText        `json:"text,omitempty"`
	Interactive      *cloudInteractive `json:"interactive,omitempty"`
	Image            *cloudMediaObject `json:"image,omitempty"`
	Audio            *cloudMediaObject `json:"audio,omitempty"`
	Video            *cloudMediaObject `json:"video,omitempty"`
	Document         *cloudMediaObject `json:"document,omitempty"`
	Status           string            `json:"status,omitempty"`
	MessageID        string            `json:"message_id,omitempty"`
}

func newCloudMessage(to, kind string) cloudMessage {
	return cloudMessage{MessagingProduct: "whatsapp", RecipientType: "individual", To: to, Type: kind}
}

// SendText sends a text message, quoting replyTo when set.
func (c *CloudAPIClient) SendText(ctx context.Context, to, body, replyTo string) error {
	if err := validateText(to, body); err != nil {
		return err
	}
	msg := newCloudMessage(to, "text")
	msg.Text = &cloudText{Body: body}
	if replyTo != "" {
		msg.Context = &cloudContext{MessageID: replyTo}
	}
	return c.post(ctx, msg)
}

// SendButtons sends an interactive reply-button message.
func (c *CloudAPIClient) SendButtons(ctx context.Context, to, body string, buttons []models.Button) error {
	if err := validateText(to, body); err != nil {
		return err
	}
	if err := models.ValidateButtons(buttons); err != nil {
		return err
	}
	interactive := &cloudInteractive{Type: "button", Body: cloudInteractiveBody{Text: body}}
	for _, b := range buttons {
		interactive.Action.Buttons = append(interactive.Action.Buttons, cloudButton{
			Type:  "reply",
			Reply: cloudReply{ID: b.ID, Title: truncateRunes(b.Title, models.MaxButtonTitleLength)},
		})
	}
	msg := newCloudMessage(to, "interactive")
	msg.Interactive = interactive
	return c.post(ctx, msg)
}

// SendMedia sends a media message by link.
func (c *CloudAPIClient) SendMedia(ctx context.Context, to string, media models.Media) error {
	if err := validateMedia(to, media); err != nil {
		return err
	}
	obj := &cloudMediaObject{Link: media.URL, Caption: media.Caption}
	msg := newCloudMessage(to, string(media.Type))
	switch media.Type {
	case models.MediaImage:
		msg.Image = obj
	case models.MediaVideo:
		msg.Video = obj
	case models.MediaAudio:
		obj.Caption = ""
		msg.Audio = obj
	case models.MediaDocument:
		obj.Filename = media.Filename
		msg.Document = obj
	}
	return c.post(ctx, msg)
}

// MarkRead marks an inbound message as read.
func (c *CloudAPIClient) MarkRead(ctx context.Context, messageID string) error {
	if messageID == "" {
		return models.ErrEmptyMessageID
	}
	return c.post(ctx, cloudMessage{MessagingProduct: "whatsapp", Status: "read", MessageID: messageID})
}

// Start is a no-op; inbound messages arrive through the webhook.
func (c *CloudAPIClient) Start(ctx context.Context) error {
	return nil
}

// Stop rejects further sends.
func (c *CloudAPIClient) Stop() error {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	slog.Info("CloudAPIClient stopped")
	return nil
}

func (c *CloudAPIClient) post(ctx context.Context, msg cloudMessage) error {
	c.mu.RLock()
	stopped := c.stopped
	c.mu.RUnlock()
	if stopped {
		return ErrServiceStopped
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send rate limiter: %w", err)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph api request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
			apiErr = envelope.Error
			apiErr.StatusCode = resp.StatusCode
		} else {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		slog.Error("CloudAPIClient.post: request rejected", "to", msg.To, "type", msg.Type, "status", resp.StatusCode, "error", apiErr)
		return apiErr
	}
	slog.Debug("CloudAPIClient.post: message accepted", "to", msg.To, "type", msg.Type, "status", msg.Status)
	return nil
}

func truncateRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
