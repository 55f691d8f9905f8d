package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"equipment-twin-backend/internal/model"
)

// equipmentRequest is the body accepted by create and update.
type equipmentRequest struct {
	ID          int64      `json:"id"`
	TagNumber   string     `json:"tagNumber"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Capacity    *float64   `json:"capacity"`
	Unit        *string    `json:"unit"`
	InstallDate *time.Time `json:"installDate"`
}

func (r equipmentRequest) toModel() model.Equipment {
	e := model.Equipment{
		TagNumber: r.TagNumber,
		Name:      r.Name,
		Type:      r.Type,
		Status:    r.Status,
		Capacity:  r.Capacity,
		Unit:      r.Unit,
	}
	if r.InstallDate != nil {
		e.InstallDate = *r.InstallDate
	}
	return e
}

func notFoundMessage(id int64) string {
	return fmt.Sprintf("Equipment with ID %d not found", id)
}

// parseID rejects only ids that are not integers. Zero and negative ids are
// left to the store, which reports them as not found.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid equipment ID"})
		return 0, false
	}
	return id, true
}

// ListEquipment handles GET /api/equipment.
func (h *Handler) ListEquipment(c *gin.Context) {
	items, err := h.store.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	if items == nil {
		items = []model.Equipment{}
	}
	c.JSON(http.StatusOK, items)
}

// GetEquipment handles GET /api/equipment/{id}.
func (h *Handler) GetEquipment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	e, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, notFoundMessage(id))
		return
	}
	c.JSON(http.StatusOK, e)
}

// CreateEquipment handles POST /api/equipment.
func (h *Handler) CreateEquipment(c *gin.Context) {
	var req equipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body: " + err.Error()})
		return
	}

	created, err := h.store.Create(c.Request.Context(), req.toModel())
	if err != nil {
		h.respondError(c, err, "")
		return
	}

	c.Header("Location", fmt.Sprintf("/api/equipment/%d", created.ID))
	c.JSON(http.StatusCreated, created)
}

// UpdateEquipment handles PUT /api/equipment/{id}.
func (h *Handler) UpdateEquipment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req equipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid request body: " + err.Error()})
		return
	}
	if req.ID != 0 && req.ID != id {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "ID mismatch"})
		return
	}

	updated, err := h.store.Update(c.Request.Context(), id, req.toModel())
	if err != nil {
		h.respondError(c, err, notFoundMessage(id))
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteEquipment handles DELETE /api/equipment/{id}.
func (h *Handler) DeleteEquipment(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err, notFoundMessage(id))
		return
	}
	c.Status(http.StatusNoContent)
}

// SearchEquipment handles GET /api/equipment/search?query=.
func (h *Handler) SearchEquipment(c *gin.Context) {
	items, err := h.store.Search(c.Request.Context(), c.Query("query"))
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	if items == nil {
		items = []model.Equipment{}
	}
	c.JSON(http.StatusOK, items)
}

// GetStats handles GET /api/equipment/stats.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, stats)
}
