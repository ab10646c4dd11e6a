package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Response bodies for pipeline rejections. They never carry internal detail.
const (
	msgInvalidSignature = "Invalid or missing webhook signature."
	msgUnavailable      = "Service temporarily unavailable."
	msgProcessingFailed = "Event could not be processed and was logged for review."
)

// SignatureVerifier is satisfied by *Verifier.
type SignatureVerifier interface {
	Verify(ctx context.Context, rawBody []byte, header string) bool
}

// IngestHandler is the HTTP entry point of the pipeline.
type IngestHandler struct {
	verifier SignatureVerifier
	limiter  Limiter
	router   *Router
	audit    AuditLog
	metrics  *Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewIngestHandler wires the pipeline stages. metrics may be nil.
func NewIngestHandler(verifier SignatureVerifier, limiter Limiter, router *Router, audit AuditLog, metrics *Metrics, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{
		verifier: verifier,
		limiter:  limiter,
		router:   router,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

func (h *IngestHandler) RegisterRoutes(e *echo.Echo, path string, mw ...echo.MiddlewareFunc) {
	e.POST(path, h.Handle, mw...)
}

// Handle runs signature check, rate check, envelope parse, dispatch and the
// audit write in that order. Only the first three stages can answer with a
// non-200 status.
func (h *IngestHandler) Handle(c echo.Context) error {
	ctx := c.Request().Context()
	log := h.logger.With().Str("request_id", requestID(c)).Logger()

	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		h.reject(c, log, ReasonParse, err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": errInvalidJSON.Message})
	}

	if !h.verifier.Verify(ctx, raw, c.Request().Header.Get(SignatureHeader)) {
		h.reject(c, log, ReasonSignature, nil)
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": msgInvalidSignature})
	}

	allowed, err := h.limiter.Allow(ctx)
	if err != nil {
		h.reject(c, log, ReasonUnavailable, err)
		c.Response().Header().Set("Retry-After", retryAfter(h.limiter.Window()))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": msgUnavailable})
	}
	if !allowed {
		h.reject(c, log, ReasonRateLimit, nil)
		c.Response().Header().Set("Retry-After", retryAfter(h.limiter.Window()))
		return c.JSON(http.StatusTooManyRequests, map[string]string{
			"error": rateLimitMessage(h.limiter.Limit(), h.limiter.Window()),
		})
	}

	env, envErr := ParseEnvelope(raw)
	if envErr != nil {
		reason := ReasonEnvelope
		if envErr.Status == http.StatusBadRequest {
			reason = ReasonParse
		}
		h.reject(c, log, reason, envErr)
		body := map[string]any{"error": envErr.Message}
		if envErr.Details != nil {
			body["details"] = envErr.Details
		}
		return c.JSON(envErr.Status, body)
	}

	start := h.now()
	out := h.router.Dispatch(ctx, env)

	ev := &WebhookEvent{
		EventType:        env.EventType,
		Payload:          env.Payload,
		ProcessingStatus: out.Status,
		ReceivedAt:       start.UTC(),
	}
	if msg := out.AuditMessage(); msg != "" {
		ev.ErrorMessage = &msg
	}
	if err := h.audit.Record(ctx, ev); err != nil {
		fallback := textFallback(ev)
		if retryErr := h.audit.Record(ctx, fallback); retryErr != nil {
			log.Error().Err(err).
				AnErr("retry_error", retryErr).
				Str("event_type", env.EventType).
				Str("status", out.Status).
				Str("payload", string(env.Payload)).
				Msg("failed to write webhook audit row")
		} else {
			log.Warn().Err(err).
				Str("event_type", fallback.EventType).
				Msg("webhook payload audited as text")
			out.Status = StatusError
		}
	}

	h.metrics.processed(env.EventType, out.Status, h.router.Has(env.EventType), h.now().Sub(start))
	c.Set("webhook_status", out.Status)
	c.Set("event_type", env.EventType)

	evt := log.Info()
	if out.Status == StatusError {
		evt = log.Warn().Str("message", out.AuditMessage())
	}
	evt.Str("event_type", env.EventType).Str("status", out.Status).Msg("webhook event processed")

	resp := map[string]any{"received": true, "status": out.Status}
	if out.Status == StatusError {
		resp["message"] = msgProcessingFailed
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *IngestHandler) reject(c echo.Context, log zerolog.Logger, reason string, err error) {
	h.metrics.rejected(reason)
	c.Set("webhook_status", "rejected:"+reason)
	evt := log.Warn().Str("reason", reason)
	if reason == ReasonUnavailable {
		evt = log.Error().Str("reason", reason)
	}
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("webhook request rejected")
}

func requestID(c echo.Context) string {
	rid, _ := c.Get("request_id").(string)
	return rid
}

func rateLimitMessage(limit int, window time.Duration) string {
	if window == time.Minute {
		return fmt.Sprintf("Too many requests. Rate limit: %d events per minute.", limit)
	}
	return fmt.Sprintf("Too many requests. Rate limit: %d events per %s.", limit, window)
}

func retryAfter(window time.Duration) string {
	secs := int(math.Ceil(window.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
