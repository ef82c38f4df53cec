package repository

import (
	"errors"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/storage"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Document names in the local store.
const (
	DocOrders       = "orders"
	DocReports      = "reports"
	DocOrderHistory = "orders_history"
)

// Repositories bundles the typed repositories over the document store.
type Repositories struct {
	Report  *ReportRepository
	Order   *OrderRepository
	History *HistoryRepository
}

func NewRepositories(store *storage.Store) *Repositories {
	return &Repositories{
		Report:  NewReportRepository(store),
		Order:   NewOrderRepository(store),
		History: NewHistoryRepository(store),
	}
}
