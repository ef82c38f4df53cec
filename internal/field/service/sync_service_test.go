package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
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

// fakeSyncBackend records the order of incoming report uploads and answers
// each with the scripted status (default 200).
type fakeSyncBackend struct {
	mu       sync.Mutex
	received []int
	fail     map[int]int    // order_id -> status code
	message  map[int]string // order_id -> {message} body
}

func (b *fakeSyncBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rep entity.Report
		if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.received = append(b.received, rep.OrderID)
		status := b.fail[rep.OrderID]
		msg := b.message[rep.OrderID]
		b.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			if msg != "" {
				json.NewEncoder(w).Encode(map[string]string{"message": msg})
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (b *fakeSyncBackend) order() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int, len(b.received))
	copy(out, b.received)
	return out
}

func newSyncEnv(t *testing.T, backend *fakeSyncBackend) (*SyncService, *repository.Repositories) {
	t.Helper()
	store, err := storage.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	repos := repository.NewRepositories(store)

	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	client := zonda.NewClient(server.URL, 2*time.Second)
	return NewSyncService(client, repos, zap.NewNop()), repos
}

func finalized(orderID int) entity.Report {
	return entity.Report{OrderID: orderID, IsFinalized: true}
}

func TestSyncPendingSequential(t *testing.T) {
	backend := &fakeSyncBackend{}
	svc, repos := newSyncEnv(t, backend)
	require.NoError(t, repos.Report.SaveAll([]entity.Report{
		finalized(1), finalized(2), finalized(3),
	}))

	result, err := svc.SyncPending(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Complete())
	assert.Equal(t, []int{1, 2, 3}, result.Sent)
	assert.Equal(t, []int{1, 2, 3}, backend.order())

	pending, err := repos.Report.Unsynced()
	require.NoError(t, err)
	assert.Empty(t, pending)

	rep, err := repos.Report.FindByOrderID(2)
	require.NoError(t, err)
	assert.True(t, rep.IsSynchronized)
	assert.NotEmpty(t, rep.SynchronizedAt)
}

// A mid-batch failure aborts the batch but keeps the already-acknowledged
// reports flagged synchronized, so they are never re-uploaded.
func TestSyncFailureKeepsAcknowledged(t *testing.T) {
	backend := &fakeSyncBackend{fail: map[int]int{2: 500}}
	svc, repos := newSyncEnv(t, backend)
	require.NoError(t, repos.Report.SaveAll([]entity.Report{
		finalized(1), finalized(2), finalized(3),
	}))

	result, err := svc.SyncPending(context.Background())
	require.Error(t, err)
	assert.False(t, result.Complete())
	assert.Equal(t, []int{1}, result.Sent)
	require.NotNil(t, result.FailedOrderID)
	assert.Equal(t, 2, *result.FailedOrderID)
	assert.Equal(t, "The server had a problem. Try again later or contact support.", result.Message)

	// Report 3 was never attempted.
	assert.Equal(t, []int{1, 2}, backend.order())

	first, err := repos.Report.FindByOrderID(1)
	require.NoError(t, err)
	assert.True(t, first.IsSynchronized)

	pending, err := repos.Report.Unsynced()
	require.NoError(t, err)
	ids := make([]int, 0, len(pending))
	for _, rep := range pending {
		ids = append(ids, rep.OrderID)
	}
	assert.ElementsMatch(t, []int{2, 3}, ids)
}

func TestSyncConflictSurfacesServerMessage(t *testing.T) {
	backend := &fakeSyncBackend{
		fail:    map[int]int{7: 409},
		message: map[int]string{7: "La orden ya fue cerrada por el supervisor"},
	}
	svc, repos := newSyncEnv(t, backend)
	require.NoError(t, repos.Report.SaveAll([]entity.Report{finalized(7)}))

	result, err := svc.SyncPending(context.Background())
	require.Error(t, err)
	assert.Equal(t, "La orden ya fue cerrada por el supervisor", result.Message)

	var apiErr *zonda.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.StatusCode)
}

func TestSyncByOrderIDsFiltersSelection(t *testing.T) {
	backend := &fakeSyncBackend{}
	svc, repos := newSyncEnv(t, backend)
	require.NoError(t, repos.Report.SaveAll([]entity.Report{
		finalized(1),
		finalized(2),
		{OrderID: 3}, // not finalized, never eligible
		{OrderID: 4, IsFinalized: true, IsSynchronized: true},
	}))

	result, err := svc.SyncByOrderIDs(context.Background(), []int{2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, result.Sent)
	assert.Equal(t, []int{2}, backend.order())
}

func TestSyncUnreachableBackend(t *testing.T) {
	store, err := storage.New(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	repos := repository.NewRepositories(store)
	require.NoError(t, repos.Report.SaveAll([]entity.Report{finalized(5)}))

	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // connection refused from here on
	client := zonda.NewClient(server.URL, time.Second)
	svc := NewSyncService(client, repos, zap.NewNop())

	result, err := svc.SyncPending(context.Background())
	require.Error(t, err)
	assert.False(t, result.Complete())
	assert.Contains(t, result.Message, "Could not reach the server")

	rep, err := repos.Report.FindByOrderID(5)
	require.NoError(t, err)
	assert.False(t, rep.IsSynchronized)
}
