package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"beer-scanner-backend/internal/catalog"
	"beer-scanner-backend/internal/model"
	"beer-scanner-backend/internal/notification"
	"beer-scanner-backend/internal/scraper"
	"beer-scanner-backend/internal/store"
)

// Checker runs an on-demand check for one bar.
type Checker interface {
	CheckBar(ctx context.Context, barID int64, force bool) (*model.Check, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	catalog    *catalog.Catalog
	checker    Checker
	dispatcher *notification.Dispatcher
	webpush    *webpush.Options
	logger     *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, cat *catalog.Catalog, checker Checker, dispatcher *notification.Dispatcher,
	webpushOptions *webpush.Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:      s,
		catalog:    cat,
		checker:    checker,
		dispatcher: dispatcher,
		webpush:    webpushOptions,
		logger:     logger,
	}
}

// writeError maps domain errors onto HTTP status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	var dup *catalog.DuplicateAliasError
	var badType *catalog.InvalidBeerTypeError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &dup), errors.Is(err, catalog.ErrBeerExists), errors.Is(err, scraper.ErrBarBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &badType), errors.Is(err, catalog.ErrSelfMerge), errors.Is(err, catalog.ErrBlankName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// idParam parses a positive integer path parameter, answering 400 when it is malformed.
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func limitQuery(c *gin.Context, def, maxLimit int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxLimit)
}
