package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/entity"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/repository"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/service"
)

// ReportHandler exposes the report lifecycle operations. Lock violations
// surface as 409 so the UI can offer the reopen flow.
type ReportHandler struct {
	reports *service.ReportService
}

func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func (h *ReportHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrReportLocked):
		Error(c, 409, "report is finalized and synchronized; reopen it to edit")
	case errors.Is(err, repository.ErrNotFound):
		Error(c, 404, "report not found")
	default:
		Error(c, 500, "failed to update report")
	}
}

// Get GET /api/v1/orders/:id/report
func (h *ReportHandler) Get(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	report, err := h.reports.Get(orderID)
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, report)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

// SaveNotes PUT /api/v1/orders/:id/report/notes
func (h *ReportHandler) SaveNotes(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	var req notesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, "invalid notes payload")
		return
	}
	if err := h.reports.SaveNotes(orderID, req.Notes); err != nil {
		h.fail(c, err)
		return
	}
	Success(c, nil)
}

type signatureRequest struct {
	Signature     string `json:"signature" binding:"required"`
	SignatureName string `json:"signature_name"`
}

// SaveSignature PUT /api/v1/orders/:id/report/signature
func (h *ReportHandler) SaveSignature(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	var req signatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, "signature is required")
		return
	}
	if err := h.reports.SaveSignature(orderID, req.Signature, req.SignatureName); err != nil {
		h.fail(c, err)
		return
	}
	Success(c, nil)
}

// DeleteSignature DELETE /api/v1/orders/:id/report/signature
func (h *ReportHandler) DeleteSignature(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	if err := h.reports.DeleteSignature(orderID); err != nil {
		h.fail(c, err)
		return
	}
	Success(c, nil)
}

// SubmitReview POST /api/v1/orders/:id/report/reviews
// The body is a full device review; any prior review for the same device is
// replaced.
func (h *ReportHandler) SubmitReview(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	var review entity.Review
	if err := c.ShouldBindJSON(&review); err != nil || review.DeviceID <= 0 {
		Error(c, 400, "invalid review payload")
		return
	}
	if err := h.reports.SubmitDeviceReview(orderID, review); err != nil {
		h.fail(c, err)
		return
	}
	Created(c, nil)
}

// MarkScanned POST /api/v1/orders/:id/report/reviews/:deviceId/scanned
func (h *ReportHandler) MarkScanned(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	deviceID, err := strconv.Atoi(c.Param("deviceId"))
	if err != nil || deviceID <= 0 {
		Error(c, 400, "invalid device id")
		return
	}
	if err := h.reports.MarkDeviceScanned(orderID, deviceID); err != nil {
		h.fail(c, err)
		return
	}
	Success(c, nil)
}

type autoReviewRequest struct {
	ServiceID int `json:"service_id" binding:"required"`
	DeviceID  int `json:"device_id" binding:"required"`
}

// AutoReview POST /api/v1/orders/:id/report/auto-review
// Replicates the named device's review onto every sibling device at the
// same control point.
func (h *ReportHandler) AutoReview(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	var req autoReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, "service_id and device_id are required")
		return
	}
	devices, err := h.reports.AutoReview(orderID, req.ServiceID, req.DeviceID)
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, gin.H{"devices_replicated": devices})
}

type usageRequest struct {
	Products []entity.ProductReview `json:"products"`
	Pests    []entity.PestReview    `json:"pests"`
}

// SaveUsage PUT /api/v1/orders/:id/report/usage
// Stores the service-level product/pest usage arrays.
func (h *ReportHandler) SaveUsage(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	var req usageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, 400, "invalid usage payload")
		return
	}
	if err := h.reports.SaveServiceUsage(orderID, req.Products, req.Pests); err != nil {
		h.fail(c, err)
		return
	}
	Success(c, nil)
}

type finalizeRequest struct {
	Notes             *string `json:"notes"`
	CustomerSignature *string `json:"customer_signature"`
	SignatureName     *string `json:"signature_name"`
}

// Finalize POST /api/v1/orders/:id/report/finalize
func (h *ReportHandler) Finalize(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	var req finalizeRequest
	_ = c.ShouldBindJSON(&req)

	err := h.reports.Finalize(orderID, service.FinalizeOptions{
		Notes:             req.Notes,
		CustomerSignature: req.CustomerSignature,
		SignatureName:     req.SignatureName,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	Success(c, nil)
}

// Reopen POST /api/v1/orders/:id/report/reopen
// The only operation permitted on a locked report.
func (h *ReportHandler) Reopen(c *gin.Context) {
	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}
	if err := h.reports.Reopen(orderID); err != nil {
		h.fail(c, err)
		return
	}
	Success(c, nil)
}
