package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"beer-scanner-backend/internal/model"
)

// BarResponse represents the API response for a single bar.
type BarResponse struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Location      string     `json:"location"`
	LastCheckedAt *time.Time `json:"lastCheckedAt"`
	BeerCount     int64      `json:"beerCount"`
}

// GetBars handles the GET /api/bars request.
func (h *Handler) GetBars(c *gin.Context) {
	bars, err := h.store.ListBars(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	type aggRow struct {
		BarID     int64
		BeerCount int64
	}
	var aggs []aggRow
	if err := h.store.DB().WithContext(c.Request.Context()).
		Model(&model.CurrentAvailability{}).
		Select("bar_id AS bar_id, COUNT(*) AS beer_count").
		Group("bar_id").
		Scan(&aggs).Error; err != nil {
		h.writeError(c, err)
		return
	}
	counts := make(map[int64]int64, len(aggs))
	for _, a := range aggs {
		counts[a.BarID] = a.BeerCount
	}

	resp := make([]BarResponse, 0, len(bars))
	for _, b := range bars {
		resp = append(resp, BarResponse{
			ID:            b.ID,
			Name:          b.Name,
			Location:      b.Location,
			LastCheckedAt: b.LastCheckedAt,
			BeerCount:     counts[b.ID],
		})
	}
	c.JSON(http.StatusOK, resp)
}

// beerAvailabilityResponse is one beer on a bar's menu.
type beerAvailabilityResponse struct {
	model.Beer
	AddedAt        time.Time  `json:"addedAt"`
	LastVerifiedAt *time.Time `json:"lastVerifiedAt,omitempty"`
	RemovedAt      *time.Time `json:"removedAt,omitempty"`
}

// GetBarBeers handles GET /api/bars/{bar_id}/beers. With ?at=<RFC3339> it
// answers what was on the menu at that instant.
func (h *Handler) GetBarBeers(c *gin.Context) {
	barID, ok := idParam(c, "bar_id")
	if !ok {
		return
	}
	if _, err := h.store.GetBar(c.Request.Context(), barID); err != nil {
		h.writeError(c, err)
		return
	}

	atParam := c.Query("at")
	if atParam == "" {
		h.currentBeers(c, barID)
		return
	}
	at, err := time.Parse(time.RFC3339, atParam)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'at' timestamp format. Use RFC3339."})
		return
	}
	h.beersAt(c, barID, at)
}

func (h *Handler) currentBeers(c *gin.Context, barID int64) {
	rows, err := h.store.ListCurrent(c.Request.Context(), barID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := make([]beerAvailabilityResponse, 0, len(rows))
	for _, r := range rows {
		verified := r.LastVerifiedAt
		resp = append(resp, beerAvailabilityResponse{Beer: r.Beer, AddedAt: r.AddedAt, LastVerifiedAt: &verified})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) beersAt(c *gin.Context, barID int64, at time.Time) {
	ctx := c.Request.Context()
	history, err := h.store.ListHistory(ctx, barID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	current, err := h.store.ListCurrent(ctx, barID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]beerAvailabilityResponse, 0)
	for _, r := range history {
		if r.AddedAt.After(at) || (r.RemovedAt != nil && !r.RemovedAt.After(at)) {
			continue
		}
		resp = append(resp, beerAvailabilityResponse{Beer: r.Beer, AddedAt: r.AddedAt, RemovedAt: r.RemovedAt})
	}
	for _, r := range current {
		if r.AddedAt.After(at) {
			continue
		}
		resp = append(resp, beerAvailabilityResponse{Beer: r.Beer, AddedAt: r.AddedAt})
	}
	c.JSON(http.StatusOK, resp)
}

// GetBarChecks handles GET /api/bars/{bar_id}/checks.
func (h *Handler) GetBarChecks(c *gin.Context) {
	barID, ok := idParam(c, "bar_id")
	if !ok {
		return
	}
	checks, err := h.store.ListChecksForBar(c.Request.Context(), barID, limitQuery(c, 20, 200))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, checks)
}

// GetBarStats handles GET /api/bars/{bar_id}/stats.
func (h *Handler) GetBarStats(c *gin.Context) {
	barID, ok := idParam(c, "bar_id")
	if !ok {
		return
	}
	s, err := h.store.GetStats(c.Request.Context(), barID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// GetStats handles GET /api/stats, the counters summed over all bars.
func (h *Handler) GetStats(c *gin.Context) {
	agg, err := h.store.AggregateStats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, agg)
}

// CheckBar handles POST /api/admin/bars/{bar_id}/check[?force=true].
func (h *Handler) CheckBar(c *gin.Context) {
	barID, ok := idParam(c, "bar_id")
	if !ok {
		return
	}
	check, err := h.checker.CheckBar(c.Request.Context(), barID, c.Query("force") == "true")
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}
