package auth

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-accounts/internal/config"
)

// Guard rejection reasons. They are rendered verbatim as {"error": reason}.
const (
	ReasonDirectAccess   = "direct access not authorized"
	ReasonMarkerMissing  = "security header missing"
	ReasonOriginRejected = "origin not authorized"
)

var browserTokens = []string{"Mozilla", "Chrome", "Safari", "Firefox", "Edge", "Opera"}

// RequestInfo is the part of an inbound request the guard looks at.
type RequestInfo struct {
	Method        string
	UserAgent     string
	Referer       string
	Origin        string
	Marker        string
	RequestOrigin string
}

// Rejection is returned by Authorize when a request is refused.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

// RejectionRecorder observes guard refusals.
type RejectionRecorder interface {
	GuardRejected(reason string)
}

// Guard admits only requests issued by the application's own client code.
type Guard struct {
	origins      []string
	markerHeader string
	markerValue  string
	recorder     RejectionRecorder
}

// NewGuard computes the static allow-list once from configuration.
func NewGuard(cfg config.GuardConfig, recorder RejectionRecorder) *Guard {
	origins := []string{}
	for _, o := range []string{cfg.SiteURL, cfg.PreviewURL} {
		if o != "" {
			origins = append(origins, o)
		}
	}
	for _, port := range cfg.LocalhostPorts {
		for _, host := range []string{"localhost", "127.0.0.1"} {
			origins = append(origins, "http://"+host+":"+port, "https://"+host+":"+port)
		}
	}
	return &Guard{
		origins:      origins,
		markerHeader: cfg.MarkerHeader,
		markerValue:  cfg.MarkerValue,
		recorder:     recorder,
	}
}

// MarkerHeader is the header name legitimate clients must send.
func (g *Guard) MarkerHeader() string { return g.markerHeader }

// Authorize classifies a request. A nil result means the request may proceed.
func (g *Guard) Authorize(req RequestInfo) *Rejection {
	method := strings.ToUpper(req.Method)

	if method == http.MethodGet && isBrowser(req.UserAgent) && !g.allowed(req.Referer, req.RequestOrigin) {
		return &Rejection{Reason: ReasonDirectAccess}
	}

	if req.Marker == "" || req.Marker != g.markerValue {
		return &Rejection{Reason: ReasonMarkerMissing}
	}

	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		if !g.allowed(req.Origin, req.RequestOrigin) {
			return &Rejection{Reason: ReasonOriginRejected}
		}
	}
	return nil
}

func (g *Guard) allowed(value, requestOrigin string) bool {
	if value == "" {
		return false
	}
	if requestOrigin != "" && strings.HasPrefix(value, requestOrigin) {
		return true
	}
	for _, origin := range g.origins {
		if strings.HasPrefix(value, origin) {
			return true
		}
	}
	return false
}

func isBrowser(userAgent string) bool {
	for _, token := range browserTokens {
		if strings.Contains(userAgent, token) {
			return true
		}
	}
	return false
}

// Handler adapts the guard to fiber. Rejected requests never reach the next handler.
func (g *Guard) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rejection := g.Authorize(RequestInfo{
			Method:        c.Method(),
			UserAgent:     c.Get(fiber.HeaderUserAgent),
			Referer:       c.Get(fiber.HeaderReferer),
			Origin:        c.Get(fiber.HeaderOrigin),
			Marker:        c.Get(g.markerHeader),
			RequestOrigin: c.BaseURL(),
		})
		if rejection != nil {
			if g.recorder != nil {
				g.recorder.GuardRejected(rejection.Reason)
			}
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": rejection.Reason})
		}
		return c.Next()
	}
}
