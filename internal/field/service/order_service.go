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

// ErrOfflineNoData means the backend is unreachable and no cached orders
// exist for the requested date.
var ErrOfflineNoData = errors.New("offline and no cached orders for date")

// OrderService fetches the technician's order listing and reconciles
// server-side reports with the local reports collection.
type OrderService struct {
	repos  *repository.Repositories
	client *zonda.Client
	log    *zap.Logger
}

func NewOrderService(repos *repository.Repositories, client *zonda.Client, log *zap.Logger) *OrderService {
	return &OrderService{repos: repos, client: client, log: log}
}

// OrdersResult is the outcome of a listing fetch. FromCache marks the
// offline path so the UI can tell the technician the data is stale.
type OrdersResult struct {
	Orders    []entity.Order `json:"orders"`
	FromCache bool           `json:"from_cache"`
}

// GetOrders runs the online reconciliation path: fetch orders and server
// reports for (userID, date), merge server reports with the local
// collection (local wins), apply the status-priority correction per order,
// persist everything, and return the corrected listing.
//
// The merge runs under the reports document's write lock, and the local
// collection is read inside it, after the fetch returns. An edit that lands
// while the fetch is in flight is therefore part of the merge input instead
// of being overwritten by it.
//
// When the fetch fails it falls back to the order history filtered by date,
// then to the dated cache snapshot; with neither it returns ErrOfflineNoData.
func (s *OrderService) GetOrders(ctx context.Context, userID, date string) (*OrdersResult, error) {
	resp, err := s.client.FetchOrders(ctx, userID, date)
	if err != nil {
		s.log.Warn("order fetch failed, using offline fallback",
			zap.String("user_id", userID), zap.String("date", date), zap.Error(err))
		return s.offlineFallback(userID, date)
	}

	orders := resp.Orders
	err = s.repos.Report.Replace(func(local []entity.Report) ([]entity.Report, error) {
		combined := combineReports(local, resp.Reports)
		for i := range orders {
			if rep := findReport(combined, orders[i].ID); rep != nil {
				applyStatusPriority(&orders[i], rep)
			}
		}
		return combined, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile reports: %w", err)
	}

	now := nowStamp()
	if err := s.repos.Order.SaveOrders(orders); err != nil {
		return nil, fmt.Errorf("persist orders: %w", err)
	}
	if err := s.repos.Order.SaveDateCache(userID, date, orders, now); err != nil {
		s.log.Warn("failed to save dated order cache", zap.Error(err))
	}
	if err := s.repos.History.UpsertMany(orders, now); err != nil {
		s.log.Warn("failed to update order history", zap.Error(err))
	}

	return &OrdersResult{Orders: orders, FromCache: false}, nil
}

// FindOrder returns an order from the current listing document.
func (s *OrderService) FindOrder(orderID int) (*entity.Order, error) {
	return s.repos.Order.FindByID(orderID)
}

func (s *OrderService) offlineFallback(userID, date string) (*OrdersResult, error) {
	fromHistory, err := s.repos.History.FilterByDate(date)
	if err != nil {
		s.log.Warn("failed to read order history", zap.Error(err))
	}
	if len(fromHistory) > 0 {
		return &OrdersResult{Orders: fromHistory, FromCache: true}, nil
	}

	cache, err := s.repos.Order.LoadDateCache(userID, date)
	if err != nil {
		s.log.Warn("failed to read dated order cache", zap.Error(err))
	}
	if cache != nil && len(cache.Data) > 0 {
		return &OrdersResult{Orders: cache.Data, FromCache: true}, nil
	}

	return nil, ErrOfflineNoData
}

// combineReports merges server reports with the local collection. The result
// has one entry per order_id and the local copy always wins: a matching
// server report is replaced wholesale, and local reports unknown to the
// server are appended as-is.
func combineReports(localReports, serverReports []entity.Report) []entity.Report {
	combined := make([]entity.Report, len(serverReports))
	copy(combined, serverReports)

	for _, local := range localReports {
		replaced := false
		for i := range combined {
			if combined[i].OrderID == local.OrderID {
				combined[i] = local
				replaced = true
				break
			}
		}
		if !replaced {
			combined = append(combined, local)
		}
	}
	return combined
}

func findReport(reports []entity.Report, orderID int) *entity.Report {
	for i := range reports {
		if reports[i].OrderID == orderID {
			return &reports[i]
		}
	}
	return nil
}

// applyStatusPriority reconciles the server's order status with the local
// finalize/sync flags. Exactly two disagreements have a resolution:
//
//   - Server says pending (1) but the local report completed a full
//     finalize+sync cycle: the server reopened the order after completion,
//     so the stale local "done" state is discarded.
//   - Server says completed (3) but the local report is not finalized: the
//     server expects completion, so the report is marked finalized but
//     unsynchronized to force a re-sync.
//
// The correction is idempotent: a second application is a no-op.
func applyStatusPriority(order *entity.Order, report *entity.Report) {
	localStatus := entity.OrderStatusPending
	if report.IsFinalized {
		localStatus = entity.OrderStatusCompleted
	}
	serverStatus := order.StatusID
	if serverStatus == 0 {
		serverStatus = entity.OrderStatusPending
	}

	if serverStatus == entity.OrderStatusPending && localStatus != entity.OrderStatusPending {
		if report.IsFinalized && report.IsSynchronized {
			order.StatusID = entity.OrderStatusPending
			report.IsFinalized = false
			report.IsSynchronized = false
		}
	}

	if serverStatus == entity.OrderStatusCompleted && localStatus == entity.OrderStatusPending {
		order.StatusID = entity.OrderStatusCompleted
		report.IsFinalized = true
		report.IsSynchronized = false
	}
}
