package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"beer-scanner-backend/internal/catalog"
)

// GetBeer handles GET /api/beers/{beer_id}.
func (h *Handler) GetBeer(c *gin.Context) {
	id, ok := idParam(c, "beer_id")
	if !ok {
		return
	}
	beer, err := h.store.GetBeer(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, beer)
}

// GetBeerTypes handles GET /api/beer-types, the styles accepted when editing a beer.
func (h *Handler) GetBeerTypes(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Vocabulary().Types())
}

// UpdateBeer handles PATCH /api/admin/beers/{beer_id}.
func (h *Handler) UpdateBeer(c *gin.Context) {
	id, ok := idParam(c, "beer_id")
	if !ok {
		return
	}
	var upd catalog.BeerUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	beer, err := h.catalog.UpdateBeer(c.Request.Context(), id, upd)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, beer)
}

// DeleteBeer handles DELETE /api/admin/beers/{beer_id}.
func (h *Handler) DeleteBeer(c *gin.Context) {
	id, ok := idParam(c, "beer_id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteBeer(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MergeBeer handles POST /api/admin/beers/{beer_id}/merge/{target_id}: the
// first beer is folded into the target and removed.
func (h *Handler) MergeBeer(c *gin.Context) {
	sourceID, ok := idParam(c, "beer_id")
	if !ok {
		return
	}
	targetID, ok := idParam(c, "target_id")
	if !ok {
		return
	}
	beer, err := h.catalog.MergeBeers(c.Request.Context(), sourceID, targetID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, beer)
}

// GetAliases handles GET /api/admin/beers/{beer_id}/aliases.
func (h *Handler) GetAliases(c *gin.Context) {
	id, ok := idParam(c, "beer_id")
	if !ok {
		return
	}
	aliases, err := h.catalog.ListAliases(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, aliases)
}

type postAliasRequest struct {
	Name    string `json:"name" binding:"required"`
	Brewery string `json:"brewery"`
}

// PostAlias handles POST /api/admin/beers/{beer_id}/aliases.
func (h *Handler) PostAlias(c *gin.Context) {
	id, ok := idParam(c, "beer_id")
	if !ok {
		return
	}
	var req postAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	alias, err := h.catalog.AddAlias(c.Request.Context(), id, req.Name, req.Brewery)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alias)
}

// DeleteAlias handles DELETE /api/admin/aliases/{alias_id}.
func (h *Handler) DeleteAlias(c *gin.Context) {
	id, ok := idParam(c, "alias_id")
	if !ok {
		return
	}
	if err := h.catalog.DeleteAlias(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
