package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-accounts/internal/config"
)

const chromeUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type countingRecorder struct {
	reasons []string
}

func (r *countingRecorder) GuardRejected(reason string) { r.reasons = append(r.reasons, reason) }

func testGuard(recorder RejectionRecorder) *Guard {
	return NewGuard(config.GuardConfig{
		SiteURL:        "https://market.example.fr",
		PreviewURL:     "https://preview.example.fr",
		LocalhostPorts: []string{"3000"},
		MarkerHeader:   "X-Requested-With",
		MarkerValue:    "XMLHttpRequest",
	}, recorder)
}

func TestAuthorize(t *testing.T) {
	g := testGuard(nil)

	cases := []struct {
		name   string
		req    RequestInfo
		reason string
	}{
		{
			name:   "bare browser navigation",
			req:    RequestInfo{Method: "GET", UserAgent: chromeUA},
			reason: ReasonDirectAccess,
		},
		{
			name:   "browser with foreign referer",
			req:    RequestInfo{Method: "GET", UserAgent: chromeUA, Referer: "https://evil.example.com/x", Marker: "XMLHttpRequest"},
			reason: ReasonDirectAccess,
		},
		{
			name: "browser with site referer",
			req:  RequestInfo{Method: "GET", UserAgent: chromeUA, Referer: "https://market.example.fr/inscription", Marker: "XMLHttpRequest"},
		},
		{
			name: "browser with own request origin as referer",
			req:  RequestInfo{Method: "GET", UserAgent: chromeUA, Referer: "http://api.internal:8080/page", Marker: "XMLHttpRequest", RequestOrigin: "http://api.internal:8080"},
		},
		{
			name: "non browser get passes the referer check",
			req:  RequestInfo{Method: "GET", UserAgent: "curl/8.0", Marker: "XMLHttpRequest"},
		},
		{
			name:   "non browser get without marker",
			req:    RequestInfo{Method: "GET", UserAgent: "curl/8.0"},
			reason: ReasonMarkerMissing,
		},
		{
			name:   "wrong marker value",
			req:    RequestInfo{Method: "POST", Marker: "fetch", Origin: "https://market.example.fr"},
			reason: ReasonMarkerMissing,
		},
		{
			name:   "post without origin",
			req:    RequestInfo{Method: "POST", Marker: "XMLHttpRequest"},
			reason: ReasonOriginRejected,
		},
		{
			name:   "post with foreign origin",
			req:    RequestInfo{Method: "DELETE", Marker: "XMLHttpRequest", Origin: "https://evil.example.com"},
			reason: ReasonOriginRejected,
		},
		{
			name: "post from localhost",
			req:  RequestInfo{Method: "POST", Marker: "XMLHttpRequest", Origin: "http://localhost:3000"},
		},
		{
			name: "patch from preview",
			req:  RequestInfo{Method: "PATCH", Marker: "XMLHttpRequest", Origin: "https://preview.example.fr"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rejection := g.Authorize(tc.req)
			if tc.reason == "" {
				assert.Nil(t, rejection)
				return
			}
			require.NotNil(t, rejection)
			assert.Equal(t, tc.reason, rejection.Reason)
		})
	}
}

func TestGuardHandlerRejectsBareNavigation(t *testing.T) {
	recorder := &countingRecorder{}
	g := testGuard(recorder)

	called := false
	app := fiber.New()
	app.Get("/api/register", g.Handler(), func(c *fiber.Ctx) error {
		called = true
		return c.SendStatus(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/register", nil)
	req.Header.Set("User-Agent", chromeUA)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, map[string]any{"error": ReasonDirectAccess}, body)

	assert.False(t, called)
	assert.Equal(t, []string{ReasonDirectAccess}, recorder.reasons)
}

func TestGuardHandlerPassesLegitimateCall(t *testing.T) {
	g := testGuard(nil)

	app := fiber.New()
	app.Post("/api/check-email", g.Handler(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/check-email", nil)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Origin", "https://market.example.fr")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
