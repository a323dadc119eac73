// Package server exposes the read-mostly dashboard API: the state
// snapshot, runtime policy configuration, manual offer close, and the
// inferred-rate chart.
package server

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bfx-lending-bot/internal/bfx"
	"bfx-lending-bot/internal/chart"
	"bfx-lending-bot/internal/state"
)

// ConfigSink receives validated runtime configuration updates. Updates
// flow through the dispatch queue so they serialise with event handling.
type ConfigSink interface {
	UpdateConfig(cfg state.BotConfig)
}

// OfferCloser cancels one funding offer at the exchange.
type OfferCloser interface {
	CancelOffer(ctx context.Context, id int64) (*bfx.Offer, error)
}

// Handler carries the API dependencies.
type Handler struct {
	store  *state.Store
	sink   ConfigSink
	closer OfferCloser
	logger zerolog.Logger
}

// NewHandler constructs the API handler.
func NewHandler(store *state.Store, sink ConfigSink, closer OfferCloser, logger zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		sink:   sink,
		closer: closer,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", h.Health)
	router.GET("/api/state", h.State)
	router.PATCH("/api/state/config", h.PatchConfig)
	router.POST("/api/offer/:id/close", h.CloseOffer)
	router.GET("/api/chart/rate.png", h.RateChart)

	return router
}

// Health reports liveness plus exchange connectivity.
func (h *Handler) Health(c *gin.Context) {
	snap := h.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"connected": snap.Connected,
	})
}

// State returns the full in-memory snapshot.
func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Snapshot())
}

// PatchConfig applies a partial configuration update. Unknown keys are
// rejected, as is any value that cannot be coerced to the field's type;
// on rejection the active configuration is left untouched.
func (h *Handler) PatchConfig(c *gin.Context) {
	var patch Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := h.store.Config()
	if err := patch.Apply(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.sink.UpdateConfig(cfg)
	h.logger.Info().Interface("config", cfg).Msg("runtime config updated")
	c.JSON(http.StatusOK, cfg)
}

// CloseOffer cancels one open funding offer by id.
func (h *Handler) CloseOffer(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offer id"})
		return
	}

	if !h.store.HasOffer(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "offer not found"})
		return
	}

	offer, err := h.closer.CancelOffer(c.Request.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Int64("offer_id", id).Msg("manual offer close failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"closed": id, "status": offer.Status})
}

// RateChart renders the inferred best-ask-rate history as PNG.
func (h *Handler) RateChart(c *gin.Context) {
	var buf bytes.Buffer
	if err := chart.RenderPNG(&buf, h.store.RateHistory()); err != nil {
		if err == chart.ErrNoData {
			c.JSON(http.StatusNotFound, gin.H{"error": "no rate history yet"})
			return
		}
		h.logger.Error().Err(err).Msg("chart render failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chart render failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
