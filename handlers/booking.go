package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"rapidcare/database/repository/audit"
	"rapidcare/models"
	"rapidcare/services/approval"
	"rapidcare/utils"

	"github.com/gin-gonic/gin"
)

// BookingHandler exposes the booking approval workflow.
type BookingHandler struct {
	Machine *approval.Machine
	Audit   audit.AuditRepository
}

func NewBookingHandler(machine *approval.Machine, auditRepo audit.AuditRepository) *BookingHandler {
	return &BookingHandler{Machine: machine, Audit: auditRepo}
}

type submitBookingRequest struct {
	HospitalID         string `json:"hospitalId" binding:"required"`
	PatientID          string `json:"patientId" binding:"required"`
	PatientName        string `json:"patientName"`
	ResourceType       string `json:"resourceType" binding:"required"`
	ResourcesRequested int    `json:"resourcesRequested" binding:"required"`
	Urgency            string `json:"urgency"`
	Notes              string `json:"notes"`
}

// SubmitBookingHandler registers a new pending booking.
func (h *BookingHandler) SubmitBookingHandler(c *gin.Context) {
	var req submitBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid booking request", err.Error())
		return
	}

	booking, err := h.Machine.Submit(models.Booking{
		HospitalID:         req.HospitalID,
		PatientID:          req.PatientID,
		PatientName:        req.PatientName,
		ResourceType:       req.ResourceType,
		ResourcesRequested: req.ResourcesRequested,
		Urgency:            req.Urgency,
		Notes:              req.Notes,
	})
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, "failed to submit booking", err.Error())
		return
	}
	c.JSON(http.StatusCreated, booking)
}

// GetBookingHandler returns one booking by id.
func (h *BookingHandler) GetBookingHandler(c *gin.Context) {
	booking, ok := h.Machine.Get(c.Param("bookingId"))
	if !ok {
		utils.JSONError(c, http.StatusNotFound, "booking not found", c.Param("bookingId"))
		return
	}
	c.JSON(http.StatusOK, booking)
}

// PendingBookingsHandler lists the pending queue for one hospital.
func (h *BookingHandler) PendingBookingsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"hospitalId": c.Param("id"),
		"bookings":   h.Machine.Pending(c.Param("id")),
	})
}

type approveBookingRequest struct {
	CollectPayment bool    `json:"collectPayment"`
	DepositAmount  float64 `json:"depositAmount"`
	Currency       string  `json:"currency"`
}

// ApproveBookingHandler approves a pending booking, reserving resources and
// optionally collecting a deposit.
func (h *BookingHandler) ApproveBookingHandler(c *gin.Context) {
	var req approveBookingRequest
	// Body is optional; only reject malformed JSON.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.JSONError(c, http.StatusBadRequest, "invalid approve request", err.Error())
			return
		}
	}

	booking, err := h.Machine.Approve(c.Request.Context(), c.Param("bookingId"), approval.ApproveOpts{
		Actor:          actorFromContext(c),
		CollectPayment: req.CollectPayment,
		DepositAmount:  req.DepositAmount,
		Currency:       req.Currency,
	})
	if err != nil {
		h.writeDecisionError(c, err, "failed to approve booking")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// DeclineBookingHandler declines a pending booking. A reason is mandatory.
func (h *BookingHandler) DeclineBookingHandler(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "decline reason is required", err.Error())
		return
	}

	booking, err := h.Machine.Decline(c.Request.Context(), c.Param("bookingId"), req.Reason)
	if err != nil {
		h.writeDecisionError(c, err, "failed to decline booking")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// CancelBookingHandler cancels a pending or approved booking.
func (h *BookingHandler) CancelBookingHandler(c *gin.Context) {
	booking, err := h.Machine.Cancel(c.Request.Context(), c.Param("bookingId"))
	if err != nil {
		h.writeDecisionError(c, err, "failed to cancel booking")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// CompleteBookingHandler marks an approved booking completed and releases
// its resources.
func (h *BookingHandler) CompleteBookingHandler(c *gin.Context) {
	booking, err := h.Machine.Complete(c.Request.Context(), c.Param("bookingId"))
	if err != nil {
		h.writeDecisionError(c, err, "failed to complete booking")
		return
	}
	c.JSON(http.StatusOK, booking)
}

// BookingHistoryHandler returns the audit trail for one booking.
func (h *BookingHandler) BookingHistoryHandler(c *gin.Context) {
	records, err := h.Audit.ListByBooking(c.Request.Context(), c.Param("bookingId"))
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to load booking history", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookingId": c.Param("bookingId"), "history": records})
}

// HospitalAuditHandler returns recent transitions across a hospital.
func (h *BookingHandler) HospitalAuditHandler(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	records, err := h.Audit.ListByHospital(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to load audit trail", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"hospitalId": c.Param("id"), "records": records})
}

func (h *BookingHandler) writeDecisionError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, approval.ErrBookingNotFound):
		utils.JSONError(c, http.StatusNotFound, msg, err.Error())
	case approval.IsResourceUnavailable(err):
		utils.JSONError(c, http.StatusConflict, msg, err.Error())
	case approval.IsInvalidTransition(err):
		utils.JSONError(c, http.StatusConflict, msg, err.Error())
	default:
		utils.JSONError(c, http.StatusInternalServerError, msg, err.Error())
	}
}

func actorFromContext(c *gin.Context) string {
	if v, ok := c.Get("subjectID"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "system"
}
