package repository

import (
	"fmt"
	"time"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/entity"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/storage"
)

// HistoryRepository maintains the "all orders ever seen" collection used as
// the offline fallback (document orders_history).
type HistoryRepository struct {
	store *storage.Store
}

func NewHistoryRepository(store *storage.Store) *HistoryRepository {
	return &HistoryRepository{store: store}
}

// UpsertMany merges newOrders into the history keyed by order id, stamping
// lastUpdated on every entry it touches. Existing entries keep their
// position; new ones are appended.
func (r *HistoryRepository) UpsertMany(newOrders []entity.Order, at string) error {
	return r.store.Update(DocOrderHistory, func() (interface{}, error) {
		var history []entity.Order
		if _, err := r.store.Load(DocOrderHistory, &history); err != nil {
			return nil, fmt.Errorf("load order history: %w", err)
		}

		index := make(map[int]int, len(history))
		for i, order := range history {
			index[order.ID] = i
		}

		for _, order := range newOrders {
			order.LastUpdated = at
			if i, ok := index[order.ID]; ok {
				history[i] = order
			} else {
				index[order.ID] = len(history)
				history = append(history, order)
			}
		}
		return history, nil
	})
}

// GetAll returns the full history; absent means empty.
func (r *HistoryRepository) GetAll() ([]entity.Order, error) {
	var history []entity.Order
	ok, err := r.store.Load(DocOrderHistory, &history)
	if err != nil {
		return nil, fmt.Errorf("load order history: %w", err)
	}
	if !ok || history == nil {
		return []entity.Order{}, nil
	}
	return history, nil
}

// FilterByDate returns history entries whose programmed_date falls on the
// given calendar day (YYYY-MM-DD).
func (r *HistoryRepository) FilterByDate(date string) ([]entity.Order, error) {
	history, err := r.GetAll()
	if err != nil {
		return nil, err
	}
	matched := make([]entity.Order, 0)
	for _, order := range history {
		if programmedDay(order.ProgrammedDate) == date {
			matched = append(matched, order)
		}
	}
	return matched, nil
}

// programmedDay normalizes the backend's date formats to YYYY-MM-DD.
func programmedDay(programmed string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, programmed); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if len(programmed) >= 10 {
		return programmed[:10]
	}
	return programmed
}
