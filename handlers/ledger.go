package handlers

import (
	"net/http"

	"rapidcare/services/ledger"
	"rapidcare/utils"

	"github.com/gin-gonic/gin"
)

// LedgerHandler exposes the resource ledger for dashboards and manual
// corrections by hospital admins.
type LedgerHandler struct {
	Ledger *ledger.Ledger
}

func NewLedgerHandler(l *ledger.Ledger) *LedgerHandler {
	return &LedgerHandler{Ledger: l}
}

// GetResourcesHandler returns every tracked counter for one hospital.
func (h *LedgerHandler) GetResourcesHandler(c *gin.Context) {
	hospitalID := c.Param("id")
	counters := h.Ledger.Snapshot(hospitalID)
	if len(counters) == 0 {
		utils.JSONError(c, http.StatusNotFound, "hospital not tracked", hospitalID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hospitalId": hospitalID, "counters": counters})
}

// GetResourceHandler returns a single counter.
func (h *LedgerHandler) GetResourceHandler(c *gin.Context) {
	hospitalID := c.Param("id")
	resourceType := c.Param("resourceType")
	counter, ok := h.Ledger.Get(hospitalID, resourceType)
	if !ok {
		utils.JSONError(c, http.StatusNotFound, "resource not tracked", resourceType)
		return
	}
	c.JSON(http.StatusOK, counter)
}

type setTotalsRequest struct {
	Total     int `json:"total"`
	Available int `json:"available"`
}

// SetTotalsHandler applies an admin correction to one counter. The same
// validation that guards server reconciliation applies here.
func (h *LedgerHandler) SetTotalsHandler(c *gin.Context) {
	hospitalID := c.Param("id")
	resourceType := c.Param("resourceType")

	var req setTotalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid totals request", err.Error())
		return
	}

	err := h.Ledger.WithKey(hospitalID, resourceType, func() error {
		return h.Ledger.SetTotals(hospitalID, resourceType, req.Total, req.Available)
	})
	if err != nil {
		if ledger.IsInvalidResourceState(err) {
			utils.JSONError(c, http.StatusUnprocessableEntity, "invalid resource state", err.Error())
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, "failed to update resources", err.Error())
		return
	}

	counter, _ := h.Ledger.Get(hospitalID, resourceType)
	c.JSON(http.StatusOK, counter)
}
