package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"assistant-workers/internal/common/database"
	apperrors "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/render"
	"assistant-workers/internal/service"

	"github.com/charmbracelet/lipgloss"
	"github.com/gin-gonic/gin"
)

const readinessTimeout = 2 * time.Second

type BatchRequest struct {
	Requests []service.Request `json:"requests" binding:"required"`
}

type BatchResponse struct {
	Results []*service.Response `json:"results"`
}

type ResolveRequest struct {
	Titles []string `json:"titles" binding:"required,min=1,max=100,dive,required"`
	service.Request
}

type ResolveResponse struct {
	Resolutions []service.Resolution `json:"resolutions"`
}

// Handler serves the annotation API.
type Handler struct {
	svc      *service.Service
	checkers []database.Checker
	html     *render.HTMLRenderer
	terminal *render.TerminalRenderer
	logger   logger.Logger
	timeout  time.Duration
}

// NewHandler serves svc. checkers back /ready; timeout bounds each request.
func NewHandler(svc *service.Service, renderOpts render.Options, timeout time.Duration, log logger.Logger, checkers ...database.Checker) *Handler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handler{
		svc:      svc,
		checkers: checkers,
		html:     render.NewHTMLRenderer(renderOpts),
		terminal: render.NewTerminalRenderer(renderOpts, lipgloss.NewRenderer(io.Discard)),
		logger:   log,
		timeout:  timeout,
	}
}

// Annotate handles POST /api/annotate.
func (h *Handler) Annotate(c *gin.Context) {
	var req service.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperrors.NewInvalidAnnotationInputError(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp, err := h.svc.Annotate(ctx, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AnnotateBatch handles POST /api/annotate/batch.
func (h *Handler) AnnotateBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperrors.NewInvalidAnnotationInputError(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	results, err := h.svc.AnnotateBatch(ctx, req.Requests)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, BatchResponse{Results: results})
}

// Resolve handles POST /api/resolve.
func (h *Handler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperrors.NewInvalidAnnotationInputError(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resolutions, err := h.svc.ResolveTitles(ctx, req.Titles, req.Request)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ResolveResponse{Resolutions: resolutions})
}

// Render annotates the body and returns it as html (default), term or json.
func (h *Handler) Render(c *gin.Context) {
	format := c.DefaultQuery("format", "html")
	if format != "html" && format != "term" && format != "json" {
		h.writeError(c, apperrors.NewInvalidAnnotationInputError("format must be html, term or json"))
		return
	}

	var req service.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, apperrors.NewInvalidAnnotationInputError(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp, err := h.svc.Annotate(ctx, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	switch format {
	case "json":
		c.JSON(http.StatusOK, resp)
	case "term":
		c.String(http.StatusOK, h.terminal.Render(resp.Result))
	default:
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(h.html.Render(resp.Result)))
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready pings every backend and answers 503 when one is down.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	checks, err := database.PingAll(ctx, h.checkers...)
	if err != nil {
		h.logger.Warn("readiness check failed", map[string]interface{}{"error": err})
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	stdErr := apperrors.Normalize(err)
	status := apperrors.HTTPStatus(stdErr.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request error", map[string]interface{}{
			"requestId": c.GetString(requestIDKey),
			"errorCode": string(stdErr.Code),
			"error":     err,
		})
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":     stdErr,
		"requestId": c.GetString(requestIDKey),
	})
}
