package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/entity"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/storage"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/shared/zonda"
)

// Process-wide state documents.
const (
	DocUserData    = "userData"
	DocActiveOrder = "active_order"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrOrderInProgress stops the technician from starting a second order.
	ErrOrderInProgress = errors.New("another order is already in progress")
)

// Manager owns the authenticated session and the active-order marker, both
// persisted across restarts.
type Manager struct {
	store  *storage.Store
	client *zonda.Client
	log    *zap.Logger

	mu   sync.RWMutex
	user *entity.User
}

// NewManager restores any persisted session and re-arms the API client with
// its token.
func NewManager(store *storage.Store, client *zonda.Client, log *zap.Logger) *Manager {
	m := &Manager{store: store, client: client, log: log}

	var user entity.User
	ok, err := store.Load(DocUserData, &user)
	if err != nil {
		log.Warn("failed to restore session", zap.Error(err))
		return m
	}
	if ok && user.Token != "" {
		m.user = &user
		client.SetToken(user.Token)
		log.Info("session restored", zap.Int("user_id", user.UserID))
	}
	return m
}

// Login authenticates against the backend and persists the profile.
func (m *Manager) Login(ctx context.Context, email, password string) (*entity.User, error) {
	user, err := m.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(DocUserData, user); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	m.mu.Lock()
	m.user = user
	m.mu.Unlock()

	m.log.Info("logged in", zap.Int("user_id", user.UserID), zap.String("email", user.Email))
	return user, nil
}

// Logout clears the token and drops the persisted session.
func (m *Manager) Logout() error {
	m.client.ClearToken()

	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()

	if err := m.store.Delete(DocUserData); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Current returns the authenticated user, or nil.
func (m *Manager) Current() *entity.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// SetActiveOrder marks an order as in progress. It fails with
// ErrOrderInProgress while a different order holds the marker.
func (m *Manager) SetActiveOrder(orderID int, folio string) (*entity.ActiveOrder, error) {
	existing, err := m.ActiveOrder()
	if err != nil {
		m.log.Warn("failed to read active order marker", zap.Error(err))
	}
	if existing != nil && existing.OrderID != orderID {
		return nil, ErrOrderInProgress
	}
	if existing != nil {
		return existing, nil
	}

	marker := &entity.ActiveOrder{
		OrderID:    orderID,
		OrderFolio: folio,
		Time:       time.Now().Format(time.RFC3339),
	}
	if err := m.store.Save(DocActiveOrder, marker); err != nil {
		return nil, fmt.Errorf("persist active order: %w", err)
	}
	return marker, nil
}

// ActiveOrder returns the current marker, or nil when no order is active.
func (m *Manager) ActiveOrder() (*entity.ActiveOrder, error) {
	var marker entity.ActiveOrder
	ok, err := m.store.Load(DocActiveOrder, &marker)
	if err != nil {
		return nil, err
	}
	if !ok || marker.OrderID == 0 {
		return nil, nil
	}
	return &marker, nil
}

// ClearActiveOrder removes the marker.
func (m *Manager) ClearActiveOrder() error {
	return m.store.Delete(DocActiveOrder)
}
