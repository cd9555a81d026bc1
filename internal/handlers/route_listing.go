package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"quizforge/internal/observability"

	"github.com/gin-gonic/gin"
)

// RouteInfo represents information about a single route
type RouteInfo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	HandlerName string `json:"handler_name"`
}

// RouteListingHandler generates automatic route listings
type RouteListingHandler struct {
	serviceName string
	routes      []RouteInfo
}

// NewRouteListingHandler creates a new route listing handler
func NewRouteListingHandler(serviceName string) *RouteListingHandler {
	return &RouteListingHandler{
		serviceName: serviceName,
		routes:      []RouteInfo{},
	}
}

// CollectRoutes extracts all routes from a Gin engine
func (h *RouteListingHandler) CollectRoutes(engine *gin.Engine) {
	h.routes = []RouteInfo{}

	for _, route := range engine.Routes() {
		if strings.HasPrefix(route.Path, "/debug/") {
			continue
		}
		h.routes = append(h.routes, RouteInfo{
			Method:      route.Method,
			Path:        route.Path,
			HandlerName: route.Handler,
		})
	}

	sort.Slice(h.routes, func(i, j int) bool {
		return h.routes[i].Path < h.routes[j].Path
	})
}

// GetRouteListingPage shows all available routes as HTML
func (h *RouteListingHandler) GetRouteListingPage(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_route_listing_page")
	defer observability.FinishSpan(span, nil)

	var html strings.Builder
	html.WriteString(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>` + h.serviceName + ` - Routes</title>
    <style>
        body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; padding: 24px; color: #1b1f23; }
        h1 { border-bottom: 1px solid #d0d7de; padding-bottom: 8px; }
        table { border-collapse: collapse; width: 100%; max-width: 960px; }
        th, td { padding: 8px 12px; text-align: left; border-bottom: 1px solid #d0d7de; }
        td.path { font-family: monospace; }
        .meta { color: #57606a; margin-bottom: 16px; }
    </style>
</head>
<body>
    <h1>` + h.serviceName + `</h1>
    <p class="meta">` + fmt.Sprintf("%d routes, generated %s", len(h.routes), time.Now().Format(time.RFC3339)) + ` (<a href="/?json=true">JSON</a>)</p>
    <table>
        <tr><th>Method</th><th>Path</th><th>Handler</th></tr>`)

	for _, route := range h.routes {
		html.WriteString(fmt.Sprintf(`
        <tr><td>%s</td><td class="path">%s</td><td>%s</td></tr>`,
			route.Method, route.Path, route.HandlerName))
	}

	html.WriteString(`
    </table>
</body>
</html>`)

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.String(http.StatusOK, html.String())
}

// GetRouteListingJSON returns the route listing as JSON
func (h *RouteListingHandler) GetRouteListingJSON(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "get_route_listing_json")
	defer observability.FinishSpan(span, nil)
	c.JSON(http.StatusOK, h.routes)
}
