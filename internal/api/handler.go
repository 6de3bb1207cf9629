package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"depth_spider/internal/app"
)

type Handler struct {
	svc    Service
	logger *logrus.Entry
}

func NewHandler(svc Service, logger *logrus.Entry) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// ErrorResponse is the body of every 4xx/5xx answer.
type ErrorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// refreshBody accepts depth as a JSON number or a numeric string.
type refreshBody struct {
	URL   string          `json:"url"`
	Depth json.RawMessage `json:"depth"`
}

// Crawl handles GET /api/crawler?url=...&depth=...
func (h *Handler) Crawl(c *gin.Context) {
	req, err := app.ParseRequest(c.Query("url"), c.Query("depth"))
	if err != nil {
		h.fail(c, err)
		return
	}

	results, err := h.svc.Search(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// Refresh handles POST /api/refresh with a JSON or form body.
func (h *Handler) Refresh(c *gin.Context) {
	rawURL, rawDepth, err := refreshParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "The request body is not valid JSON."})
		return
	}

	req, err := app.ParseRequest(rawURL, rawDepth)
	if err != nil {
		h.fail(c, err)
		return
	}

	results, err := h.svc.Refresh(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.svc.Ping(c.Request.Context()); err != nil {
		h.logger.WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func refreshParams(c *gin.Context) (string, string, error) {
	if c.ContentType() != gin.MIMEJSON {
		return c.PostForm("url"), c.PostForm("depth"), nil
	}

	var body refreshBody
	if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return "", "", err
	}

	return body.URL, rawDepth(body.Depth), nil
}

// rawDepth turns the JSON depth value into the text ParseRequest expects.
func rawDepth(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return text
}

func (h *Handler) fail(c *gin.Context, err error) {
	var verr *app.ValidationError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: verr.Message(), Errors: verr.Fields})
	case errors.Is(err, app.ErrURLNotFound):
		const msg = "URL was not found."
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: msg,
			Errors:  map[string][]string{"url": {msg}},
		})
	default:
		h.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Server Error"})
	}
}
