package repository

import (
	"fmt"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/entity"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/storage"
)

// OrderRepository owns the orders document (the listing currently shown to
// the technician) and the per-user-per-date cache documents.
type OrderRepository struct {
	store *storage.Store
}

func NewOrderRepository(store *storage.Store) *OrderRepository {
	return &OrderRepository{store: store}
}

func dateCacheKey(userID, date string) string {
	return fmt.Sprintf("orders_%s_%s", userID, date)
}

// SaveOrders overwrites the current order listing.
func (r *OrderRepository) SaveOrders(orders []entity.Order) error {
	if err := r.store.Save(DocOrders, orders); err != nil {
		return fmt.Errorf("save orders: %w", err)
	}
	return nil
}

// LoadOrders returns the current order listing; absent means empty.
func (r *OrderRepository) LoadOrders() ([]entity.Order, error) {
	var orders []entity.Order
	ok, err := r.store.Load(DocOrders, &orders)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	if !ok || orders == nil {
		return []entity.Order{}, nil
	}
	return orders, nil
}

// FindByID returns the order from the current listing, or ErrNotFound.
func (r *OrderRepository) FindByID(orderID int) (*entity.Order, error) {
	orders, err := r.LoadOrders()
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].ID == orderID {
			return &orders[i], nil
		}
	}
	return nil, ErrNotFound
}

// UpsertOrder replaces the order in the current listing by id, appending it
// when absent.
func (r *OrderRepository) UpsertOrder(order entity.Order) error {
	return r.store.Update(DocOrders, func() (interface{}, error) {
		var orders []entity.Order
		if _, err := r.store.Load(DocOrders, &orders); err != nil {
			return nil, fmt.Errorf("load orders: %w", err)
		}
		for i := range orders {
			if orders[i].ID == order.ID {
				orders[i] = order
				return orders, nil
			}
		}
		orders = append(orders, order)
		return orders, nil
	})
}

// SaveDateCache stores a dated snapshot of the listing for offline reads.
func (r *OrderRepository) SaveDateCache(userID, date string, orders []entity.Order, at string) error {
	cache := entity.OrderCache{Data: orders, LastUpdated: at}
	if err := r.store.Save(dateCacheKey(userID, date), cache); err != nil {
		return fmt.Errorf("save order cache: %w", err)
	}
	return nil
}

// LoadDateCache returns the dated snapshot, or nil when none exists.
func (r *OrderRepository) LoadDateCache(userID, date string) (*entity.OrderCache, error) {
	var cache entity.OrderCache
	ok, err := r.store.Load(dateCacheKey(userID, date), &cache)
	if err != nil {
		return nil, fmt.Errorf("load order cache: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &cache, nil
}
