package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/entity"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/storage"
)

// TestEnv holds test environment resources
type TestEnv struct {
	Store  *storage.Store
	Router *gin.Engine
	T      *testing.T
}

// SetupStore creates a document store rooted in a per-test temp directory.
// The directory is cleaned up automatically.
func SetupStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// SeedReports writes the reports document directly.
func SeedReports(t *testing.T, store *storage.Store, reports []entity.Report) {
	t.Helper()
	if err := store.Save("reports", reports); err != nil {
		t.Fatalf("Failed to seed reports: %v", err)
	}
}

// SeedOrders writes the orders document directly.
func SeedOrders(t *testing.T, store *storage.Store, orders []entity.Order) {
	t.Helper()
	if err := store.Save("orders", orders); err != nil {
		t.Fatalf("Failed to seed orders: %v", err)
	}
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }
