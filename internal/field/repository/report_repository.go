package repository

import (
	"fmt"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/entity"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/storage"
)

// ReportRepository owns the reports document. Every mutation locates the
// report by order_id and replaces it in place or appends it, keeping the
// collection free of duplicates.
type ReportRepository struct {
	store *storage.Store
}

func NewReportRepository(store *storage.Store) *ReportRepository {
	return &ReportRepository{store: store}
}

// All returns the full reports collection; an absent document is empty.
func (r *ReportRepository) All() ([]entity.Report, error) {
	var reports []entity.Report
	ok, err := r.store.Load(DocReports, &reports)
	if err != nil {
		return nil, fmt.Errorf("load reports: %w", err)
	}
	if !ok || reports == nil {
		return []entity.Report{}, nil
	}
	return reports, nil
}

// SaveAll overwrites the reports collection.
func (r *ReportRepository) SaveAll(reports []entity.Report) error {
	if err := r.store.Save(DocReports, reports); err != nil {
		return fmt.Errorf("save reports: %w", err)
	}
	return nil
}

// FindByOrderID returns the report for the order, or ErrNotFound.
func (r *ReportRepository) FindByOrderID(orderID int) (*entity.Report, error) {
	reports, err := r.All()
	if err != nil {
		return nil, err
	}
	for i := range reports {
		if reports[i].OrderID == orderID {
			return &reports[i], nil
		}
	}
	return nil, ErrNotFound
}

// Mutate applies fn to the order's report under the document write lock,
// creating it via create when absent. fn may reject the mutation by
// returning an error, in which case nothing is written.
func (r *ReportRepository) Mutate(orderID int, create func() entity.Report, fn func(*entity.Report) error) (entity.Report, error) {
	var result entity.Report
	err := r.store.Update(DocReports, func() (interface{}, error) {
		var reports []entity.Report
		if _, err := r.store.Load(DocReports, &reports); err != nil {
			return nil, fmt.Errorf("load reports: %w", err)
		}
		if reports == nil {
			reports = []entity.Report{}
		}

		idx := -1
		for i := range reports {
			if reports[i].OrderID == orderID {
				idx = i
				break
			}
		}
		if idx == -1 {
			if create == nil {
				return nil, ErrNotFound
			}
			reports = append(reports, create())
			idx = len(reports) - 1
		}

		if err := fn(&reports[idx]); err != nil {
			return nil, err
		}
		result = reports[idx]
		return reports, nil
	})
	if err != nil {
		return entity.Report{}, err
	}
	return result, nil
}

// Replace rewrites the whole reports collection under the document write
// lock. fn receives the current collection, re-read under the lock, and
// returns the collection to persist; returning an error aborts without
// writing. Mutations committed by other callers before the lock is taken are
// always visible to fn.
func (r *ReportRepository) Replace(fn func(current []entity.Report) ([]entity.Report, error)) error {
	return r.store.Update(DocReports, func() (interface{}, error) {
		var reports []entity.Report
		if _, err := r.store.Load(DocReports, &reports); err != nil {
			return nil, fmt.Errorf("load reports: %w", err)
		}
		if reports == nil {
			reports = []entity.Report{}
		}
		return fn(reports)
	})
}

// Unsynced returns reports that are finalized but not yet acknowledged by
// the server.
func (r *ReportRepository) Unsynced() ([]entity.Report, error) {
	reports, err := r.All()
	if err != nil {
		return nil, err
	}
	unsynced := make([]entity.Report, 0)
	for _, rep := range reports {
		if rep.IsFinalized && !rep.IsSynchronized {
			unsynced = append(unsynced, rep)
		}
	}
	return unsynced, nil
}

// MarkSynchronized flips is_synchronized for the given orders and stamps
// synchronized_at. Orders without a local report are skipped.
func (r *ReportRepository) MarkSynchronized(orderIDs []int, at string) error {
	ids := make(map[int]bool, len(orderIDs))
	for _, id := range orderIDs {
		ids[id] = true
	}
	return r.store.Update(DocReports, func() (interface{}, error) {
		var reports []entity.Report
		if _, err := r.store.Load(DocReports, &reports); err != nil {
			return nil, fmt.Errorf("load reports: %w", err)
		}
		for i := range reports {
			if ids[reports[i].OrderID] {
				reports[i].IsSynchronized = true
				reports[i].SynchronizedAt = at
			}
		}
		return reports, nil
	})
}
