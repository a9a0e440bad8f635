package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/srlee0408/voguedrop-sub005/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("fal: api key is required")

// QueueStatus enumerates the vendor queue's request states.
type QueueStatus string

const (
	StatusInQueue    QueueStatus = "IN_QUEUE"
	StatusInProgress QueueStatus = "IN_PROGRESS"
	StatusCompleted  QueueStatus = "COMPLETED"
	StatusFailed     QueueStatus = "FAILED"
)

// Options configures the fal queue client.
type Options struct {
	APIKey         string
	QueueBaseURL   string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the fal asynchronous queue API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// SubmitRequest captures one queue submission.
type SubmitRequest struct {
	Endpoint   string
	Input      map[string]any
	WebhookURL string
}

// SubmitResponse is the queue's acceptance payload.
type SubmitResponse struct {
	RequestID        string      `json:"request_id"`
	GatewayRequestID string      `json:"gateway_request_id"`
	Status           QueueStatus `json:"status"`
	StatusURL        string      `json:"status_url"`
	ResponseURL      string      `json:"response_url"`
}

// StatusResponse reports the current state of a queued request.
type StatusResponse struct {
	Status        QueueStatus `json:"status"`
	QueuePosition int         `json:"queue_position"`
	ResponseURL   string      `json:"response_url"`
	Logs          []LogLine   `json:"logs"`
}

// LogLine is one progress line streamed by the vendor.
type LogLine struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Media is a generated artifact reference inside a result payload.
type Media struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
}

// Result is the final payload of a completed request.
type Result struct {
	Video *Media `json:"video,omitempty"`
	Audio *Media `json:"audio,omitempty"`
	Seed  int64  `json:"seed,omitempty"`
	Error string `json:"error,omitempty"`
}

// OutputURL returns the artifact URL regardless of modality.
func (r *Result) OutputURL() string {
	if r == nil {
		return ""
	}
	if r.Video != nil && r.Video.URL != "" {
		return r.Video.URL
	}
	if r.Audio != nil && r.Audio.URL != "" {
		return r.Audio.URL
	}
	return ""
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.QueueBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://queue.fal.run"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit enqueues a generation request, registering the webhook callback URL.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	endpoint := strings.Trim(req.Endpoint, "/")
	if endpoint == "" {
		return nil, errors.New("fal: endpoint is required")
	}
	submitURL := c.baseURL + "/" + endpoint
	if req.WebhookURL != "" {
		submitURL += "?fal_webhook=" + url.QueryEscape(req.WebhookURL)
	}

	body, err := json.Marshal(req.Input)
	if err != nil {
		return nil, fmt.Errorf("fal: encode input: %w", err)
	}

	var decoded SubmitResponse
	if err := c.do(ctx, http.MethodPost, submitURL, body, &decoded); err != nil {
		return nil, err
	}
	if decoded.RequestID == "" {
		return nil, errors.New("fal: queue accepted without request id")
	}
	c.logger.Debug().Str("endpoint", endpoint).Str("request_id", decoded.RequestID).Msg("fal submit accepted")
	return &decoded, nil
}

// Status queries the synchronous status API for a queued request.
func (c *Client) Status(ctx context.Context, endpoint, requestID string) (*StatusResponse, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if requestID == "" {
		return nil, errors.New("fal: request id is required")
	}
	statusURL := fmt.Sprintf("%s/%s/requests/%s/status?logs=1", c.baseURL, strings.Trim(endpoint, "/"), url.PathEscape(requestID))

	var decoded StatusResponse
	if err := c.do(ctx, http.MethodGet, statusURL, nil, &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

// Result retrieves the final payload of a completed request. When the status
// payload carried no response URL, the default request URL is used.
func (c *Client) Result(ctx context.Context, endpoint, requestID, responseURL string) (*Result, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	target := responseURL
	if target == "" {
		target = fmt.Sprintf("%s/%s/requests/%s", c.baseURL, strings.Trim(endpoint, "/"), url.PathEscape(requestID))
	}

	var decoded Result
	if err := c.do(ctx, http.MethodGet, target, nil, &decoded); err != nil {
		return nil, err
	}
	return &decoded, nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("fal: build request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("fal: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fal: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return fmt.Errorf("fal: status %d: %s", resp.StatusCode, errorDetail(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("fal: decode response: %w", err)
	}
	return nil
}

// errorDetail extracts the vendor's error message from a non-2xx body. The
// queue reports either {"detail": "..."} or a validation detail list.
func errorDetail(raw []byte) string {
	var envelope errorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Detail) > 0 {
		var msg string
		if err := json.Unmarshal(envelope.Detail, &msg); err == nil && msg != "" {
			return msg
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 && items[0].Msg != "" {
			return items[0].Msg
		}
		return strings.TrimSpace(string(envelope.Detail))
	}
	return strings.TrimSpace(string(raw))
}
