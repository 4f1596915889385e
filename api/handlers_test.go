package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandertrip/loyalty-engine/api"
	"github.com/wandertrip/loyalty-engine/catalog"
	"github.com/wandertrip/loyalty-engine/progression/store"
	"github.com/wandertrip/loyalty-engine/service"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := service.New(store.NewMemory(), catalog.Default())
	srv := httptest.NewServer(api.NewRouter(api.NewHandler(svc)))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

// =============================================================================
// PROGRESS ENDPOINT
// =============================================================================

func TestPostProgress_HappyPath(t *testing.T) {
	srv := newTestServer(t)

	var state map[string]any
	for i := 1; i <= 3; i++ {
		resp := postJSON(t, srv.URL+"/api/progress", map[string]any{
			"user_id":        "user-1",
			"achievement_id": "dawn-patrol",
			"delta":          1,
			"request_id":     fmt.Sprintf("req-%d", i),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decode(t, resp, &state)
	}

	assert.Equal(t, float64(150), state["total_xp"])
	assert.Equal(t, float64(150), state["points_balance"])
	assert.Equal(t, float64(1), state["current_level"])
	assert.Equal(t, float64(500), state["next_level_threshold"])
	assert.InDelta(t, 30.0, state["level_progress_pct"], 0.01, "150 of 500 xp toward level 2")

	badges := state["badges"].([]any)
	require.Len(t, badges, 1)
	assert.Equal(t, "first-light", badges[0].(map[string]any)["badge_id"])
}

func TestPostProgress_UnknownAchievement(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/progress", map[string]any{
		"user_id":        "user-1",
		"achievement_id": "moon-landing",
		"delta":          1,
		"request_id":     "req-1",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "unknown_achievement", body["reason"])
}

func TestPostProgress_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/progress", "application/json",
			bytes.NewReader([]byte("{not json")))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing user id", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/progress", map[string]any{
			"achievement_id": "dawn-patrol",
			"delta":          1,
			"request_id":     "req-1",
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("missing request id", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/progress", map[string]any{
			"user_id":        "user-1",
			"achievement_id": "dawn-patrol",
			"delta":          1,
		})
		require.Equal(t, http.StatusConflict, resp.StatusCode)

		var body map[string]any
		decode(t, resp, &body)
		assert.Equal(t, "missing_request_id", body["reason"])
	})

	t.Run("non-positive delta", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/api/progress", map[string]any{
			"user_id":        "user-1",
			"achievement_id": "dawn-patrol",
			"delta":          0,
			"request_id":     "req-1",
		})
		require.Equal(t, http.StatusConflict, resp.StatusCode)

		var body map[string]any
		decode(t, resp, &body)
		assert.Equal(t, "invalid_delta", body["reason"])
	})
}

func TestPostProgress_RetryReturnsSameState(t *testing.T) {
	srv := newTestServer(t)

	req := map[string]any{
		"user_id":        "user-1",
		"achievement_id": "dawn-patrol",
		"delta":          2,
		"request_id":     "req-once",
	}

	resp := postJSON(t, srv.URL+"/api/progress", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first map[string]any
	decode(t, resp, &first)

	resp = postJSON(t, srv.URL+"/api/progress", req)
	require.Equal(t, http.StatusOK, resp.StatusCode, "retry is not an error")
	var second map[string]any
	decode(t, resp, &second)

	assert.Equal(t, first["seq"], second["seq"])
}

// =============================================================================
// REDEEM ENDPOINT
// =============================================================================

func TestPostRedeem(t *testing.T) {
	srv := newTestServer(t)

	// Earn 400 points first.
	resp := postJSON(t, srv.URL+"/api/progress", map[string]any{
		"user_id":        "user-1",
		"achievement_id": "five-star-nights",
		"delta":          3,
		"request_id":     "req-grant",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/redeem", map[string]any{
		"user_id":    "user-1",
		"reward_id":  "lounge-pass",
		"request_id": "req-redeem",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Redemption map[string]any `json:"redemption"`
		State      map[string]any `json:"state"`
	}
	decode(t, resp, &body)

	require.NotNil(t, body.Redemption)
	assert.Equal(t, "lounge-pass", body.Redemption["reward_id"])
	assert.Equal(t, "Airport Lounge Pass", body.Redemption["reward_name"])
	assert.Equal(t, float64(300), body.Redemption["points_spent"])
	assert.Equal(t, float64(100), body.State["points_balance"])
	assert.Equal(t, float64(400), body.State["total_xp"])
}

func TestPostRedeem_InsufficientPoints(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/redeem", map[string]any{
		"user_id":    "user-1",
		"reward_id":  "lounge-pass",
		"request_id": "req-1",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "insufficient_points", body["reason"])
}

// =============================================================================
// QUERY ENDPOINTS
// =============================================================================

func TestGetState_UnknownUserIsEmptyState(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/state/nobody")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state map[string]any
	decode(t, resp, &state)
	assert.Equal(t, "nobody", state["user_id"])
	assert.Equal(t, float64(0), state["total_xp"])
	assert.Equal(t, float64(1), state["current_level"])
}

func TestGetEvents(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/progress", map[string]any{
		"user_id":        "user-1",
		"achievement_id": "dawn-patrol",
		"delta":          1,
		"request_id":     "req-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/events/user-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		UserID string           `json:"user_id"`
		Events []map[string]any `json:"events"`
	}
	decode(t, resp, &body)

	require.Len(t, body.Events, 1)
	assert.Equal(t, "progress_grant", body.Events[0]["type"])
	assert.Equal(t, float64(1), body.Events[0]["seq"])
	assert.Equal(t, "req-1", body.Events[0]["request_id"])
}

// =============================================================================
// CATALOG ENDPOINTS
// =============================================================================

func TestCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t)

	paths := []string{
		"/api/catalog/achievements",
		"/api/catalog/badges",
		"/api/catalog/tiers",
		"/api/catalog/rewards",
	}
	for _, path := range paths {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err, path)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)

		var items []map[string]any
		decode(t, resp, &items)
		assert.NotEmpty(t, items, path)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
