package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remodelai/estimate-client/internal/cache"
	"github.com/remodelai/estimate-client/internal/gateway"
	"github.com/remodelai/estimate-client/internal/session"
)

// newTestApp stands up the full seam: fiber app -> orchestrator -> gateway
// -> stubbed backend.
func newTestApp(t *testing.T, backendHandler http.HandlerFunc) *fiber.App {
	t.Helper()

	srv := httptest.NewServer(backendHandler)
	t.Cleanup(srv.Close)

	store := cache.New(time.Hour, nil)
	client := gateway.New(srv.URL, srv.Client(), nil, store, nil)
	orch := session.New(client, session.WithLocalFallback())
	monitor := session.NewHealthMonitor(client, time.Hour, nil)
	t.Cleanup(monitor.Stop)

	app := fiber.New()
	SetupRoutes(app, orch, monitor)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestSendMessageSeam(t *testing.T) {
	app := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message":    "Let's talk remodeling.",
			"session_id": "sess-1",
		})
	})

	resp := postJSON(t, app, "/api/v1/messages", map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result session.TurnResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "Let's talk remodeling.", result.Reply)
	assert.Equal(t, "sess-1", result.SessionID)
}

func TestSendMessageValidation(t *testing.T) {
	var chatCalls atomic.Int32
	app := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/chat/" {
			chatCalls.Add(1)
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "up"})
	})

	resp := postJSON(t, app, "/api/v1/messages", map[string]string{"message": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, chatCalls.Load(), "validation failures must not reach the backend")
}

func TestAuthErrorSurfacesAs401(t *testing.T) {
	app := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("token expired"))
	})

	resp := postJSON(t, app, "/api/v1/messages", map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimitSurfacesAs429(t *testing.T) {
	app := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	resp := postJSON(t, app, "/api/v1/messages", map[string]string{"message": "hello"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestProjectDetailsSeamFallsBackWhenBackendFails(t *testing.T) {
	app := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	resp := postJSON(t, app, "/api/v1/project-details", map[string]string{
		"projectType":   "Kitchen Remodel",
		"propertyType":  "Condo",
		"city":          "Los Angeles",
		"state":         "CA",
		"squareFootage": "500",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result session.TurnResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.NotNil(t, result.Estimate)
	assert.Equal(t, 72000, result.Estimate.Breakdown.Total)
	assert.True(t, result.Estimate.IsLocal())
}

func TestExportSeamRefusesLocalEstimate(t *testing.T) {
	app := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	// Produce a fallback (local) estimate first.
	resp := postJSON(t, app, "/api/v1/project-details", map[string]string{
		"projectType":  "Roofing",
		"propertyType": "SFR",
		"city":         "San Diego",
		"state":        "CA",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/export", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportSeamChecksRequestedEstimateID(t *testing.T) {
	app := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/estimate/":
			json.NewEncoder(w).Encode(map[string]any{"estimate_id": "est-42"})
		case "/api/v1/export/":
			json.NewEncoder(w).Encode(map[string]any{"content": "JVBERg=="})
		default:
			json.NewEncoder(w).Encode(map[string]any{"status": "up"})
		}
	})

	resp := postJSON(t, app, "/api/v1/project-details", map[string]string{
		"projectType":  "Kitchen Remodel",
		"propertyType": "Condo",
		"city":         "Los Angeles",
		"state":        "CA",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/export", map[string]string{"estimateId": "est-other"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/export", map[string]string{"estimateId": "est-42"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
}

func TestSessionRoundTrip(t *testing.T) {
	app := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"message": "hi", "session_id": "sess-1"})
	})

	resp := postJSON(t, app, "/api/v1/messages", map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	getResp, err := app.Test(req, -1)
	require.NoError(t, err)

	var state struct {
		SessionID string         `json:"sessionId"`
		Phase     string         `json:"phase"`
		Turns     []session.Turn `json:"turns"`
	}
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&state))
	assert.Equal(t, "sess-1", state.SessionID)
	assert.Len(t, state.Turns, 3)

	// Reset brings the transcript back to just the greeting.
	resp = postJSON(t, app, "/api/v1/session/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	getResp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/session", nil), -1)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&state))
	assert.Empty(t, state.SessionID)
	assert.Len(t, state.Turns, 1)
}
