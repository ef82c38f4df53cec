package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/service"
)

// SyncHandler drives report uploads. Sync runs on the request goroutine and
// blocks until the batch finishes; the dispatcher is not cancellable
// mid-batch beyond the per-request timeout.
type SyncHandler struct {
	sync    *service.SyncService
	reports *service.ReportService
}

func NewSyncHandler(sync *service.SyncService, reports *service.ReportService) *SyncHandler {
	return &SyncHandler{sync: sync, reports: reports}
}

// Pending GET /api/v1/sync/pending — finalized-but-unsynchronized reports.
func (h *SyncHandler) Pending(c *gin.Context) {
	pending, err := h.reports.Unsynced()
	if err != nil {
		Error(c, 500, "failed to load pending reports")
		return
	}
	Success(c, pending)
}

type syncRequest struct {
	// OrderIDs selects reports to upload; empty means every pending report.
	OrderIDs []int `json:"order_ids"`
}

// Sync POST /api/v1/sync
// Uploads sequentially and reports per-item outcomes. A mid-batch failure
// returns 502 with the partial result: everything in sent is already
// flagged synchronized, the failed report and those after it are not.
func (h *SyncHandler) Sync(c *gin.Context) {
	var req syncRequest
	_ = c.ShouldBindJSON(&req)

	var result *service.SyncResult
	var err error
	if len(req.OrderIDs) > 0 {
		result, err = h.sync.SyncByOrderIDs(c.Request.Context(), req.OrderIDs)
	} else {
		result, err = h.sync.SyncPending(c.Request.Context())
	}
	if err != nil && result == nil {
		Error(c, 500, "failed to load reports for sync")
		return
	}

	if !result.Complete() {
		c.JSON(502, Response{
			Code:    502,
			Message: result.Message,
			Data:    result,
		})
		return
	}
	Success(c, result)
}
