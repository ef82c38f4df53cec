package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/entity"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/repository"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/shared/zonda"
)

// SyncService uploads finalized reports to the backend, strictly one at a
// time: report i+1 is only sent after report i is acknowledged. The first
// failure aborts the batch.
//
// Each acknowledged report is marked synchronized immediately, so a failure
// mid-batch leaves the already-accepted reports correctly flagged on the
// client instead of queued for a duplicate upload.
type SyncService struct {
	client *zonda.Client
	repos  *repository.Repositories
	log    *zap.Logger
}

func NewSyncService(client *zonda.Client, repos *repository.Repositories, log *zap.Logger) *SyncService {
	return &SyncService{client: client, repos: repos, log: log}
}

// SyncResult reports per-item outcomes of one batch.
type SyncResult struct {
	Sent          []int  `json:"sent"`
	FailedOrderID *int   `json:"failed_order_id,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Complete reports whether every report in the batch was acknowledged.
func (r *SyncResult) Complete() bool {
	return r.FailedOrderID == nil
}

// SyncReports sends the given reports sequentially. The returned result is
// always non-nil; err is non-nil when the batch aborted early.
func (s *SyncService) SyncReports(ctx context.Context, reports []entity.Report) (*SyncResult, error) {
	result := &SyncResult{Sent: []int{}}

	for _, report := range reports {
		if err := s.client.PushReport(ctx, report); err != nil {
			orderID := report.OrderID
			result.FailedOrderID = &orderID
			result.Message = syncFailureMessage(orderID, err)
			s.log.Error("report sync failed, aborting batch",
				zap.Int("order_id", orderID),
				zap.Int("sent", len(result.Sent)),
				zap.Error(err))
			return result, err
		}

		if err := s.repos.Report.MarkSynchronized([]int{report.OrderID}, nowStamp()); err != nil {
			s.log.Error("report accepted by server but not flagged locally",
				zap.Int("order_id", report.OrderID), zap.Error(err))
		}
		result.Sent = append(result.Sent, report.OrderID)
		s.log.Info("report synchronized", zap.Int("order_id", report.OrderID))
	}

	return result, nil
}

// SyncByOrderIDs uploads the selected pending reports. Reports that are not
// finalized or already synchronized are skipped.
func (s *SyncService) SyncByOrderIDs(ctx context.Context, orderIDs []int) (*SyncResult, error) {
	pending, err := s.repos.Report.Unsynced()
	if err != nil {
		return nil, err
	}

	selected := make(map[int]bool, len(orderIDs))
	for _, id := range orderIDs {
		selected[id] = true
	}
	batch := make([]entity.Report, 0, len(orderIDs))
	for _, rep := range pending {
		if selected[rep.OrderID] {
			batch = append(batch, rep)
		}
	}
	return s.SyncReports(ctx, batch)
}

// SyncPending uploads every finalized-but-unsynchronized report.
func (s *SyncService) SyncPending(ctx context.Context) (*SyncResult, error) {
	pending, err := s.repos.Report.Unsynced()
	if err != nil {
		return nil, err
	}
	return s.SyncReports(ctx, pending)
}

// syncFailureMessage maps server error classes to user-facing messaging:
// 409 surfaces the server's business-rule message verbatim, 500 a generic
// retry-later message, anything else the server message when present.
func syncFailureMessage(orderID int, err error) string {
	var apiErr *zonda.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Sprintf("Could not reach the server while syncing report %d", orderID)
	}
	switch {
	case apiErr.StatusCode == 409 && apiErr.Message != "":
		return apiErr.Message
	case apiErr.StatusCode == 409:
		return fmt.Sprintf("Report %d was rejected by the server", orderID)
	case apiErr.StatusCode >= 500:
		return "The server had a problem. Try again later or contact support."
	case apiErr.Message != "":
		return apiErr.Message
	default:
		return fmt.Sprintf("Unknown error while syncing report %d", orderID)
	}
}
