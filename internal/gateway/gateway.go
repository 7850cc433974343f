// Package gateway is the REST client for the compliance chatbot backend.
// Every call is rate limited, tagged with a request id, and classified into
// the ErrNotFound / ErrTransient / ErrRejected taxonomy on failure.
package gateway

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
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/JaimeStill/steward/internal/contract"
)

// Recent evaluation limits accepted by the backend.
const (
	MinRecentLimit = 1
	MaxRecentLimit = 50
)

// RequestIDHeader carries the per-call correlation id.
const RequestIDHeader = "X-Request-ID"

// Endpoint names used in logs, errors, and metric labels.
const (
	EndpointChat       = "chat"
	EndpointCompliance = "compliance"
	EndpointExtract    = "extract"
	EndpointUpload     = "upload"
	EndpointHistory    = "history"
	EndpointImprove    = "improve"
	EndpointRecent     = "recent"
)

// System is the backend contract consumed by the client controllers.
type System interface {
	// SendMessage submits one chat turn.
	SendMessage(ctx context.Context, req contract.ChatRequest) (contract.ChatResponse, error)
	// Analysis fetches the compliance analysis for a chat exchange.
	Analysis(ctx context.Context, complianceID string) (contract.ComplianceAnalysis, error)
	// ExtractGuidelines derives guidelines from prompt prose.
	ExtractGuidelines(ctx context.Context, req contract.ExtractRequest) ([]string, error)
	// UploadDocument adds a reference document to the retrieval corpus.
	UploadDocument(ctx context.Context, doc contract.DocumentUpload) (contract.DocumentAck, error)
	// History returns every saved prompt version.
	History(ctx context.Context) (contract.PromptHistory, error)
	// Improve runs prompt improvement, optionally followed by re-evaluation.
	Improve(ctx context.Context, req contract.ImproveRequest) (contract.ImproveResponse, error)
	// RecentEvaluations returns up to limit evaluations, newest first.
	// The limit is clamped to [MinRecentLimit, MaxRecentLimit].
	RecentEvaluations(ctx context.Context, limit int) ([]contract.EvaluationResult, error)
}

type client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	metrics *Metrics
	logger  *slog.Logger
}

// New creates a gateway client. A nil httpClient uses a plain client with
// the configured timeout; a nil metrics disables instrumentation.
func New(cfg *Config, httpClient *http.Client, metrics *Metrics, logger *slog.Logger) System {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TimeoutDuration()}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		limiter: rate.NewLimiter(limit, max(cfg.Burst, 1)),
		metrics: metrics,
		logger:  logger.With("system", "gateway"),
	}
}

func (c *client) SendMessage(ctx context.Context, req contract.ChatRequest) (contract.ChatResponse, error) {
	var resp contract.ChatResponse
	err := c.do(ctx, EndpointChat, http.MethodPost, "/chat/message", nil, req, &resp)
	return resp, err
}

func (c *client) Analysis(ctx context.Context, complianceID string) (contract.ComplianceAnalysis, error) {
	var resp contract.ComplianceAnalysis
	if strings.TrimSpace(complianceID) == "" {
		return resp, fmt.Errorf("%s: empty compliance id: %w", EndpointCompliance, ErrNotFound)
	}
	path := "/compliance/" + url.PathEscape(complianceID)
	err := c.do(ctx, EndpointCompliance, http.MethodGet, path, nil, nil, &resp)
	return resp, err
}

func (c *client) ExtractGuidelines(ctx context.Context, req contract.ExtractRequest) ([]string, error) {
	var resp contract.ExtractResponse
	if err := c.do(ctx, EndpointExtract, http.MethodPost, "/chat/extract-guidelines", nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Guidelines == nil {
		return []string{}, nil
	}
	return resp.Guidelines, nil
}

func (c *client) UploadDocument(ctx context.Context, doc contract.DocumentUpload) (contract.DocumentAck, error) {
	var resp contract.DocumentAck
	err := c.do(ctx, EndpointUpload, http.MethodPost, "/chat/upload-document", nil, doc, &resp)
	return resp, err
}

func (c *client) History(ctx context.Context) (contract.PromptHistory, error) {
	var resp contract.PromptHistory
	err := c.do(ctx, EndpointHistory, http.MethodGet, "/prompts/history", nil, nil, &resp)
	return resp, err
}

func (c *client) Improve(ctx context.Context, req contract.ImproveRequest) (contract.ImproveResponse, error) {
	var resp contract.ImproveResponse
	err := c.do(ctx, EndpointImprove, http.MethodPost, "/prompts/improve", nil, req, &resp)
	return resp, err
}

func (c *client) RecentEvaluations(ctx context.Context, limit int) ([]contract.EvaluationResult, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(ClampRecentLimit(limit)))

	var resp []contract.EvaluationResult
	if err := c.do(ctx, EndpointRecent, http.MethodGet, "/evaluation/recent", query, nil, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		resp = []contract.EvaluationResult{}
	}
	return resp, nil
}

// ClampRecentLimit bounds n to the range the backend accepts.
func ClampRecentLimit(n int) int {
	return max(MinRecentLimit, min(MaxRecentLimit, n))
}

func (c *client) do(ctx context.Context, endpoint, method, path string, query url.Values, body, out any) (err error) {
	start := time.Now()
	requestID := uuid.NewString()
	logger := c.logger.With("endpoint", endpoint, "request_id", requestID)

	defer func() {
		c.metrics.observe(endpoint, start, err)
		if err != nil {
			logger.Debug("request failed", "error", err, "duration", time.Since(start))
			return
		}
		logger.Debug("request complete", "duration", time.Since(start))
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: rate limit wait: %w", endpoint, errors.Join(ErrTransient, err))
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, errors.Join(ErrTransient, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Endpoint: endpoint,
			Status:   resp.StatusCode,
			Detail:   readDetail(resp.Body),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", endpoint, errors.Join(ErrTransient, err))
	}

	return nil
}

// readDetail extracts the error message from a failed response. The backend
// reports errors as {"detail": "..."}; anything else is returned as text.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		if encoded, err := json.Marshal(payload.Detail); err == nil {
			return string(encoded)
		}
	}

	return strings.TrimSpace(string(data))
}
