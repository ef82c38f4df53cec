package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/entity"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/repository"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/storage"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/shared/zonda"
)

type orderEnv struct {
	repos  *repository.Repositories
	store  *storage.Store
	svc    *OrderService
	server *httptest.Server
}

// newOrderEnv wires an OrderService against a fake Zonda backend serving
// the given payload. A nil payload makes every request fail with 503,
// simulating an unreachable backend.
func newOrderEnv(t *testing.T, payload *zonda.OrdersResponse) *orderEnv {
	t.Helper()
	store, err := storage.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	repos := repository.NewRepositories(store)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if payload == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(server.Close)

	client := zonda.NewClient(server.URL, 2*time.Second)
	return &orderEnv{
		repos:  repos,
		store:  store,
		svc:    NewOrderService(repos, client, zap.NewNop()),
		server: server,
	}
}

// Server reopened an already-completed order: the local finalized+synced
// state is stale and must be reset.
func TestGetOrdersServerReopensCompletedOrder(t *testing.T) {
	env := newOrderEnv(t, &zonda.OrdersResponse{
		Orders: []entity.Order{{ID: 5, StatusID: 1, ProgrammedDate: "2025-08-30"}},
		Reports: []entity.Report{
			{OrderID: 5, IsFinalized: true, IsSynchronized: true},
		},
	})

	result, err := env.svc.GetOrders(context.Background(), "9", "2025-08-30")
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.False(t, result.FromCache)
	assert.Equal(t, 1, result.Orders[0].StatusID)

	rep, err := env.repos.Report.FindByOrderID(5)
	require.NoError(t, err)
	assert.False(t, rep.IsFinalized)
	assert.False(t, rep.IsSynchronized)
}

// Server expects completion but the local report never finalized: the order
// is forced to completed and the report flagged for re-sync.
func TestGetOrdersServerExpectsCompletion(t *testing.T) {
	env := newOrderEnv(t, &zonda.OrdersResponse{
		Orders: []entity.Order{{ID: 7, StatusID: 3, ProgrammedDate: "2025-08-30"}},
		Reports: []entity.Report{
			{OrderID: 7, IsFinalized: true},
		},
	})
	// Local copy is not finalized and must win the merge first.
	require.NoError(t, env.repos.Report.SaveAll([]entity.Report{
		{OrderID: 7, IsFinalized: false},
	}))

	result, err := env.svc.GetOrders(context.Background(), "9", "2025-08-30")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Orders[0].StatusID)

	rep, err := env.repos.Report.FindByOrderID(7)
	require.NoError(t, err)
	assert.True(t, rep.IsFinalized)
	assert.False(t, rep.IsSynchronized)
}

// The local report must replace the server copy field-for-field, never a mix.
func TestCombineReportsLocalPrecedence(t *testing.T) {
	localNotes := "local notes"
	local := []entity.Report{{
		OrderID: 11,
		Notes:   &localNotes,
		Reviews: []entity.Review{{DeviceID: 1, IsChecked: true}},
	}}
	serverNotes := "server notes"
	server := []entity.Report{{
		OrderID: 11,
		Notes:   &serverNotes,
		Reviews: []entity.Review{{DeviceID: 2}},
		Pests:   []entity.PestReview{{PestID: 4, ServiceID: 1, Count: "3"}},
	}}

	combined := combineReports(local, server)
	require.Len(t, combined, 1)
	assert.Equal(t, local[0], combined[0])
}

func TestCombineReportsAppendsLocalOnly(t *testing.T) {
	local := []entity.Report{{OrderID: 1}, {OrderID: 2}}
	server := []entity.Report{{OrderID: 2}, {OrderID: 3}}

	combined := combineReports(local, server)
	assert.Len(t, combined, 3)

	seen := map[int]int{}
	for _, r := range combined {
		seen[r.OrderID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "order %d appears %d times", id, n)
	}
}

func TestStatusPriorityIdempotent(t *testing.T) {
	cases := []struct {
		name   string
		order  entity.Order
		report entity.Report
	}{
		{"reopened", entity.Order{ID: 1, StatusID: 1}, entity.Report{OrderID: 1, IsFinalized: true, IsSynchronized: true}},
		{"expects completion", entity.Order{ID: 2, StatusID: 3}, entity.Report{OrderID: 2}},
		{"agreement", entity.Order{ID: 3, StatusID: 3}, entity.Report{OrderID: 3, IsFinalized: true, IsSynchronized: true}},
		{"pending both", entity.Order{ID: 4, StatusID: 1}, entity.Report{OrderID: 4}},
		{"finalized not synced stays", entity.Order{ID: 5, StatusID: 1}, entity.Report{OrderID: 5, IsFinalized: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order, report := tc.order, tc.report
			applyStatusPriority(&order, &report)
			once, onceRep := order, report
			applyStatusPriority(&order, &report)
			assert.Equal(t, once, order)
			assert.Equal(t, onceRep, report)
		})
	}
}

// Finalized-but-unsynced local work must survive a server status of 1: the
// reset only fires after a full finalize+sync cycle.
func TestStatusPriorityKeepsUnsyncedWork(t *testing.T) {
	order := entity.Order{ID: 8, StatusID: 1}
	report := entity.Report{OrderID: 8, IsFinalized: true, IsSynchronized: false}

	applyStatusPriority(&order, &report)

	assert.Equal(t, 1, order.StatusID)
	assert.True(t, report.IsFinalized)
	assert.False(t, report.IsSynchronized)
}

// An edit committed while the fetch is in flight must be merge input, not a
// casualty of the merge persist.
func TestGetOrdersKeepsMidFetchEdits(t *testing.T) {
	store, err := storage.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	repos := repository.NewRepositories(store)

	fetchStarted := make(chan struct{})
	fetchRelease := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(fetchStarted)
		<-fetchRelease
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(zonda.OrdersResponse{
			Orders: []entity.Order{{ID: 1, StatusID: 1, ProgrammedDate: "2025-08-30"}},
		})
	}))
	t.Cleanup(server.Close)

	svc := NewOrderService(repos, zonda.NewClient(server.URL, 5*time.Second), zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := svc.GetOrders(context.Background(), "9", "2025-08-30")
		done <- err
	}()

	<-fetchStarted
	notes := "mid-fetch note"
	_, err = repos.Report.Mutate(5,
		func() entity.Report { return entity.NewReport(5, nil, "2025-08-30T08:00:00Z") },
		func(rep *entity.Report) error {
			rep.Notes = &notes
			return nil
		})
	require.NoError(t, err)
	close(fetchRelease)
	require.NoError(t, <-done)

	rep, err := repos.Report.FindByOrderID(5)
	require.NoError(t, err)
	require.NotNil(t, rep.Notes)
	assert.Equal(t, notes, *rep.Notes)
}

func TestGetOrdersPersistsEverything(t *testing.T) {
	env := newOrderEnv(t, &zonda.OrdersResponse{
		Orders: []entity.Order{{ID: 21, Folio: "F-21", ProgrammedDate: "2025-08-30"}},
	})

	_, err := env.svc.GetOrders(context.Background(), "9", "2025-08-30")
	require.NoError(t, err)

	orders, err := env.repos.Order.LoadOrders()
	require.NoError(t, err)
	require.Len(t, orders, 1)

	cache, err := env.repos.Order.LoadDateCache("9", "2025-08-30")
	require.NoError(t, err)
	require.NotNil(t, cache)
	assert.Len(t, cache.Data, 1)

	history, err := env.repos.History.GetAll()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.NotEmpty(t, history[0].LastUpdated)
}

func TestGetOrdersOfflineFallsBackToHistory(t *testing.T) {
	env := newOrderEnv(t, nil)
	require.NoError(t, env.repos.History.UpsertMany([]entity.Order{
		{ID: 31, ProgrammedDate: "2025-08-30"},
		{ID: 32, ProgrammedDate: "2025-08-29"},
	}, "2025-08-30T08:00:00Z"))

	result, err := env.svc.GetOrders(context.Background(), "9", "2025-08-30")
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	require.Len(t, result.Orders, 1)
	assert.Equal(t, 31, result.Orders[0].ID)
}

func TestGetOrdersOfflineFallsBackToDateCache(t *testing.T) {
	env := newOrderEnv(t, nil)
	require.NoError(t, env.repos.Order.SaveDateCache("9", "2025-08-30",
		[]entity.Order{{ID: 45, ProgrammedDate: "2025-08-30"}}, "2025-08-29T20:00:00Z"))

	result, err := env.svc.GetOrders(context.Background(), "9", "2025-08-30")
	require.NoError(t, err)
	assert.True(t, result.FromCache)
	require.Len(t, result.Orders, 1)
	assert.Equal(t, 45, result.Orders[0].ID)
}

func TestGetOrdersOfflineNoData(t *testing.T) {
	env := newOrderEnv(t, nil)

	_, err := env.svc.GetOrders(context.Background(), "9", "2025-08-30")
	assert.ErrorIs(t, err, ErrOfflineNoData)
}
