// Package gateway holds the thin request/response client for the pricing
// backend. Each operation shapes one endpoint's envelope and nothing more;
// the single exception is estimate-shape normalization, which is allowed to
// special-case the backend's legacy response variants at this boundary.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/remodelai/estimate-client/internal/cache"
	"github.com/remodelai/estimate-client/internal/mapper"
	"github.com/remodelai/estimate-client/internal/rules"
)

const (
	chatPath         = "/api/v1/chat/"
	estimatePath     = "/api/v1/estimate/"
	analyzeImagePath = "/api/analyze-image"
	exportPath       = "/api/v1/export/"
	healthPath       = "/api/v1/health"
)

// TokenSupplier returns the current bearer token, or empty when the caller
// is unauthenticated. Token acquisition is the embedding application's
// concern; the gateway only forwards what it is handed.
type TokenSupplier func() string

// Client talks to the pricing backend. Responses for idempotent operations
// are memoized through the shared cache.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSupplier
	cache   *cache.Cache
	logger  *logrus.Logger
}

// New creates a backend client. The cache may be nil, which disables
// memoization; the logger may be nil, which discards logs.
func New(baseURL string, httpClient *http.Client, token TokenSupplier, store *cache.Cache, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		token:   token,
		cache:   store,
		logger:  logger,
	}
}

// ChatResult is one assistant reply, with the session identity the backend
// assigned and any estimate the reply carried.
type ChatResult struct {
	Message    string
	SessionID  string
	EstimateID string
	Estimate   *rules.Estimate
}

type chatRequest struct {
	Content   string `json:"content"`
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	Message      string           `json:"message"`
	SessionID    string           `json:"session_id"`
	EstimateID   string           `json:"estimate_id,omitempty"`
	EstimateData *estimatePayload `json:"estimate_data,omitempty"`
}

// Chat posts one user turn. Replies to non-dynamic messages are memoized
// under (sessionID, text); messages that solicit fresh pricing bypass the
// cache unconditionally.
func (c *Client) Chat(ctx context.Context, text, sessionID string) (*ChatResult, error) {
	key := cache.ChatKey(sessionID, text)
	cacheable := cache.Cacheable(text)

	if cacheable && c.cache != nil {
		if raw, ok := c.cache.Get(key); ok {
			var resp chatResponse
			if err := json.Unmarshal(raw, &resp); err == nil {
				c.logger.WithField("session_id", sessionID).Debug("chat reply served from cache")
				return chatResultOf(&resp), nil
			}
		}
	}

	body, err := c.postJSON(ctx, "chat", chatPath, chatRequest{
		Content:   text,
		Role:      "user",
		SessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedResponseError{Operation: "chat", Reason: err.Error()}
	}
	if resp.Message == "" {
		return nil, &MalformedResponseError{Operation: "chat", Reason: "missing message"}
	}

	if cacheable && c.cache != nil {
		c.cache.Put(key, json.RawMessage(body))
	}
	return chatResultOf(&resp), nil
}

func chatResultOf(resp *chatResponse) *ChatResult {
	result := &ChatResult{
		Message:    resp.Message,
		SessionID:  resp.SessionID,
		EstimateID: resp.EstimateID,
	}
	if resp.EstimateData != nil {
		est := resp.EstimateData.normalize(resp.EstimateID)
		result.Estimate = &est
		if result.EstimateID == "" {
			result.EstimateID = est.ID
		}
	}
	return result
}

type estimateRequest struct {
	ProjectDetails mapper.NormalizedDetails `json:"project_details"`
}

// estimatePayload tolerates every estimate shape the backend has shipped:
// nested cost_breakdown with a separate total_cost, a flat breakdown with
// its own total, timeline as either a {total_days} object or a plain label,
// and confidence as either a [0,1] fraction or a [0,100] score.
type estimatePayload struct {
	EstimateID    string           `json:"estimate_id"`
	CostBreakdown breakdownPayload `json:"cost_breakdown"`
	TotalCost     float64          `json:"total_cost"`
	Timeline      timelinePayload  `json:"timeline"`
	Confidence    float64          `json:"confidence"`
	ConfidenceAlt float64          `json:"confidence_score"`
}

type breakdownPayload struct {
	Labor     float64 `json:"labor"`
	Materials float64 `json:"materials"`
	Permits   float64 `json:"permits"`
	Other     float64 `json:"other"`
	Total     float64 `json:"total"`
}

// timelinePayload accepts `{"total_days": 42}`, a bare number of days, or a
// plain label string.
type timelinePayload struct {
	TotalDays float64
	Label     string
}

func (t *timelinePayload) UnmarshalJSON(data []byte) error {
	var obj struct {
		TotalDays float64 `json:"total_days"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		t.TotalDays = obj.TotalDays
		return nil
	}
	var days float64
	if err := json.Unmarshal(data, &days); err == nil {
		t.TotalDays = days
		return nil
	}
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		t.Label = label
		return nil
	}
	return fmt.Errorf("unrecognized timeline shape: %s", data)
}

func (t timelinePayload) render() string {
	if t.Label != "" {
		return t.Label
	}
	return fmt.Sprintf("%d days", int(t.TotalDays))
}

// normalize folds a backend estimate payload into the single Estimate shape.
// Absent breakdown sub-fields are zero, never a failure; the total is always
// recomputed as the exact sum of the parts.
func (p *estimatePayload) normalize(fallbackID string) rules.Estimate {
	labor := int(p.CostBreakdown.Labor)
	materials := int(p.CostBreakdown.Materials)
	permits := int(p.CostBreakdown.Permits)
	other := int(p.CostBreakdown.Other)

	confidence := p.Confidence
	if confidence == 0 {
		confidence = p.ConfidenceAlt
	}
	switch {
	case confidence == 0:
		// Absent confidence reads as the standard 85%.
		confidence = 85
	case confidence <= 1:
		confidence *= 100
	}

	id := p.EstimateID
	if id == "" {
		id = fallbackID
	}

	return rules.Estimate{
		ID: id,
		Breakdown: rules.CostBreakdown{
			Labor:     labor,
			Materials: materials,
			Permits:   permits,
			Other:     other,
			Total:     labor + materials + permits + other,
		},
		Timeline:   p.Timeline.render(),
		Confidence: confidence,
		Source:     rules.SourceBackend,
	}
}

// CreateEstimate posts normalized project details and returns the backend's
// estimate, folded into the single Estimate shape.
func (c *Client) CreateEstimate(ctx context.Context, details mapper.NormalizedDetails) (*rules.Estimate, error) {
	body, err := c.postJSON(ctx, "create estimate", estimatePath, estimateRequest{ProjectDetails: details})
	if err != nil {
		return nil, err
	}

	var payload estimatePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &MalformedResponseError{Operation: "create estimate", Reason: err.Error()}
	}
	if payload.EstimateID == "" {
		return nil, &MalformedResponseError{Operation: "create estimate", Reason: "missing estimate_id"}
	}

	est := payload.normalize("")
	return &est, nil
}

// ImageAnalysis is the backend's description of an uploaded image.
type ImageAnalysis struct {
	Analysis  string
	SessionID string
}

type analyzeImageRequest struct {
	Image     string `json:"image"`
	SessionID string `json:"session_id,omitempty"`
}

type analyzeImageResponse struct {
	Analysis  string `json:"analysis"`
	SessionID string `json:"session_id"`
}

// AnalyzeImage posts a base64-encoded image plus optional session context.
func (c *Client) AnalyzeImage(ctx context.Context, imageB64, sessionID string) (*ImageAnalysis, error) {
	body, err := c.postJSON(ctx, "analyze image", analyzeImagePath, analyzeImageRequest{
		Image:     imageB64,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, err
	}

	var resp analyzeImageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedResponseError{Operation: "analyze image", Reason: err.Error()}
	}
	if resp.Analysis == "" {
		return nil, &MalformedResponseError{Operation: "analyze image", Reason: "missing analysis"}
	}
	return &ImageAnalysis{Analysis: resp.Analysis, SessionID: resp.SessionID}, nil
}

type exportRequest struct {
	EstimateID             string `json:"estimate_id"`
	Format                 string `json:"format"`
	IncludeBreakdown       bool   `json:"include_breakdown"`
	IncludeSimilarProjects bool   `json:"include_similar_projects"`
}

type exportResponse struct {
	FileURL string `json:"file_url,omitempty"`
	Content string `json:"content,omitempty"`
}

// ExportDocument generates the PDF for a backend-issued estimate. The
// backend answers with either a downloadable reference or an inline base64
// payload; both are normalized here into raw PDF bytes, memoized per
// estimate id.
func (c *Client) ExportDocument(ctx context.Context, estimateID string) ([]byte, error) {
	key := cache.DocumentKey(estimateID)
	if c.cache != nil {
		if blob, ok := c.cache.GetBlob(key); ok {
			c.logger.WithField("estimate_id", estimateID).Debug("document served from cache")
			return blob, nil
		}
	}

	body, err := c.postJSON(ctx, "export", exportPath, exportRequest{
		EstimateID:             estimateID,
		Format:                 "pdf",
		IncludeBreakdown:       true,
		IncludeSimilarProjects: true,
	})
	if err != nil {
		return nil, err
	}

	var resp exportResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedResponseError{Operation: "export", Reason: err.Error()}
	}

	var blob []byte
	switch {
	case resp.FileURL != "":
		blob, err = c.download(ctx, resp.FileURL)
		if err != nil {
			return nil, err
		}
	case resp.Content != "":
		blob, err = decodeInlineContent(resp.Content)
		if err != nil {
			return nil, &MalformedResponseError{Operation: "export", Reason: err.Error()}
		}
	default:
		return nil, &MalformedResponseError{Operation: "export", Reason: "neither file_url nor content present"}
	}

	if c.cache != nil {
		c.cache.PutBlob(key, blob)
	}
	return blob, nil
}

// decodeInlineContent decodes an inline export payload. Data-URL prefixes
// ("data:application/pdf;base64,") are stripped before decoding.
func decodeInlineContent(content string) ([]byte, error) {
	b64 := content
	if idx := strings.IndexByte(content, ','); idx >= 0 {
		b64 = content[idx+1:]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
}

// download fetches a file_url reference. Relative URLs are resolved against
// the backend base URL.
func (c *Client) download(ctx context.Context, fileURL string) ([]byte, error) {
	url := fileURL
	if strings.HasPrefix(fileURL, "/") {
		url = c.baseURL + fileURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{Operation: "export download", Err: err}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Operation: "export download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, remoteError(resp.StatusCode, string(body))
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Operation: "export download", Err: err}
	}
	return blob, nil
}

type healthResponse struct {
	Status string `json:"status"`
}

// Health asks the backend for its status: "up", "degraded", or "down".
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return "", &NetworkError{Operation: "health", Err: err}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &NetworkError{Operation: "health", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", remoteError(resp.StatusCode, string(body))
	}

	var hr healthResponse
	if err := json.Unmarshal(body, &hr); err != nil {
		return "", &MalformedResponseError{Operation: "health", Reason: err.Error()}
	}
	if hr.Status == "" {
		return "", &MalformedResponseError{Operation: "health", Reason: "missing status"}
	}
	return hr.Status, nil
}

// postJSON performs one JSON POST and returns the raw success body. Failures
// map onto the error taxonomy: transport problems become NetworkError,
// non-success statuses become RemoteError or one of its subtypes.
func (c *Client) postJSON(ctx context.Context, op, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Operation: op, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("operation", op).Error("backend call failed")
		return nil, &NetworkError{Operation: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Operation: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithFields(logrus.Fields{
			"operation": op,
			"status":    resp.StatusCode,
		}).Warn("backend returned non-success status")
		return nil, remoteError(resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
}
