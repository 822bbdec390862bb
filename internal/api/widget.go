package api

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed static/panel.html
var panelHTML string

var panelTemplate = template.Must(template.New("panel").Parse(panelHTML))

// WidgetHandler serves the embeddable chat panel
type WidgetHandler struct {
	page []byte
}

// NewWidgetHandler renders the panel once. apiBase is the storefront API
// prefix the panel posts to, e.g. "/api/v1/storefront".
func NewWidgetHandler(apiBase string) (*WidgetHandler, error) {
	var buf bytes.Buffer
	if err := panelTemplate.Execute(&buf, struct{ APIBase string }{APIBase: apiBase}); err != nil {
		return nil, err
	}
	return &WidgetHandler{page: buf.Bytes()}, nil
}

func (h *WidgetHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/widget", h.Panel)
}

// Panel writes the chat panel page
func (h *WidgetHandler) Panel(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "text/html; charset=utf-8", h.page)
}
