package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"gorm.io/gorm/logger"

	"equipment-twin-backend/config"
	"equipment-twin-backend/internal/db"
	"equipment-twin-backend/internal/logging"
	"equipment-twin-backend/internal/model"
	"equipment-twin-backend/internal/mw"
	"equipment-twin-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testOptions() Options {
	return Options{RateLimit: rate.Inf, Burst: 1, CacheTTL: time.Minute}
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	gormDB, err := db.Open(&config.DatabaseConfig{Driver: config.DriverSQLite, DSN: ":memory:"}, logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gormDB) })
	require.NoError(t, db.NewMigrator(gormDB, logging.Discard()).Apply(context.Background(), 0))

	return store.NewGormStore(gormDB, logging.Discard())
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	return NewRouter(newTestStore(t), logging.Discard(), testOptions())
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const crudeFeedPump = `{
	"tagNumber": "P-101",
	"name": "Crude Feed Pump",
	"type": "Centrifugal Pump",
	"status": "Operating",
	"capacity": 500,
	"unit": "m³/h",
	"installDate": "2020-01-15T00:00:00Z"
}`

func TestEquipmentLifecycle(t *testing.T) {
	router := setupRouter(t)

	w := do(t, router, http.MethodPost, "/api/equipment", crudeFeedPump)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/api/equipment/1", w.Header().Get("Location"))

	var created model.Equipment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "m³/h", *created.Unit)
	assert.False(t, created.CreatedAt.IsZero())

	w = do(t, router, http.MethodPost, "/api/equipment", crudeFeedPump)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, http.MethodGet, "/api/equipment/1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodDelete, "/api/equipment/1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodGet, "/api/equipment/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"Equipment with ID 1 not found"}`, w.Body.String())

	w = do(t, router, http.MethodDelete, "/api/equipment/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAndStats(t *testing.T) {
	router := setupRouter(t)

	w := do(t, router, http.MethodGet, "/api/equipment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/equipment", crudeFeedPump).Code)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/equipment", map[string]any{
		"tagNumber": "E-201", "name": "Crude Preheat Exchanger", "type": "Shell & Tube Heat Exchanger",
		"status": "Maintenance", "installDate": "2019-06-20T00:00:00Z",
	}).Code)

	w = do(t, router, http.MethodGet, "/api/equipment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []model.Equipment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 2)

	w = do(t, router, http.MethodGet, "/api/equipment/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats model.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(2), stats.TotalCount)
	assert.Equal(t, int64(1), stats.OperatingCount)
	assert.Equal(t, int64(1), stats.MaintenanceCount)
	assert.Len(t, stats.EquipmentTypes, 2)
}

func TestUpdateEquipment(t *testing.T) {
	router := setupRouter(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/equipment", crudeFeedPump).Code)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/equipment", map[string]any{
		"tagNumber": "P-102", "name": "Spare Pump", "type": "Centrifugal Pump", "installDate": "2021-01-01T00:00:00Z",
	}).Code)

	body := map[string]any{
		"id": 1, "tagNumber": "P-101", "name": "Crude Feed Pump A", "type": "Centrifugal Pump",
		"status": "Maintenance", "installDate": "2020-01-15T00:00:00Z",
	}
	w := do(t, router, http.MethodPut, "/api/equipment/1", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated model.Equipment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Crude Feed Pump A", updated.Name)
	assert.Equal(t, "Maintenance", updated.Status)
	assert.Nil(t, updated.Capacity)
	require.NotNil(t, updated.UpdatedAt)

	w = do(t, router, http.MethodPut, "/api/equipment/2", body)
	assert.Equal(t, http.StatusBadRequest, w.Code, "body id differs from path id")

	body["id"] = 0
	body["tagNumber"] = "P-102"
	w = do(t, router, http.MethodPut, "/api/equipment/1", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, http.MethodPut, "/api/equipment/99", map[string]any{
		"tagNumber": "P-999", "name": "Ghost", "type": "Pump", "installDate": "2020-01-15T00:00:00Z",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateEquipment_BadInput(t *testing.T) {
	router := setupRouter(t)

	testCases := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"tagNumber":`},
		{name: "missing tag", body: `{"name":"Pump","type":"Pump","installDate":"2020-01-15T00:00:00Z"}`},
		{name: "missing install date", body: `{"tagNumber":"P-1","name":"Pump","type":"Pump"}`},
		{name: "bad install date", body: `{"tagNumber":"P-1","name":"Pump","type":"Pump","installDate":"yesterday"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/equipment", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	w := do(t, router, http.MethodGet, "/api/equipment/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNonPositiveIDsAreNotFound(t *testing.T) {
	router := setupRouter(t)

	for _, path := range []string{"/api/equipment/0", "/api/equipment/-3"} {
		w := do(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)

		w = do(t, router, http.MethodDelete, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)

		w = do(t, router, http.MethodPut, path, crudeFeedPump)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}

	w := do(t, router, http.MethodGet, "/api/equipment/0", nil)
	assert.JSONEq(t, `{"message":"Equipment with ID 0 not found"}`, w.Body.String())
}

func TestSearchEquipment(t *testing.T) {
	router := setupRouter(t)
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/equipment", crudeFeedPump).Code)

	for _, path := range []string{"/api/equipment/search", "/api/equipment/search?query=", "/api/equipment/search?query=%20"} {
		w := do(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}

	w := do(t, router, http.MethodGet, "/api/equipment/search?query=P-101", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var items []model.Equipment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "P-101", items[0].TagNumber)

	w = do(t, router, http.MethodGet, "/api/equipment/search?query=Boiler", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCacheIsFlushedByWrites(t *testing.T) {
	router := setupRouter(t)

	w := do(t, router, http.MethodGet, "/api/equipment/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/equipment/stats", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/equipment", crudeFeedPump).Code)

	w = do(t, router, http.MethodGet, "/api/equipment/stats", nil)
	assert.Empty(t, w.Header().Get("X-Cache"))
	var stats model.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalCount)
}

// pausingStore holds the first Get open after it has read the row, so a write
// can complete while that read is still in flight.
type pausingStore struct {
	store.Store
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausingStore) Get(ctx context.Context, id int64) (model.Equipment, error) {
	e, err := p.Store.Get(ctx, id)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return e, err
}

func TestDeleteDuringInFlightGet(t *testing.T) {
	s := &pausingStore{Store: newTestStore(t), read: make(chan struct{}), release: make(chan struct{})}
	router := NewRouter(s, logging.Discard(), testOptions())
	require.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/api/equipment", crudeFeedPump).Code)

	inFlight := make(chan int)
	go func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/equipment/1", nil))
		inFlight <- w.Code
	}()

	<-s.read
	require.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/api/equipment/1", nil).Code)
	close(s.release)
	assert.Equal(t, http.StatusOK, <-inFlight)

	w := do(t, router, http.MethodGet, "/api/equipment/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache"))
}

func TestHealthAndReadiness(t *testing.T) {
	router := setupRouter(t)

	w := do(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Healthy", body["status"])
	assert.Equal(t, "Equipment API", body["service"])
	assert.NotEmpty(t, w.Header().Get(mw.RequestIDHeader))

	w = do(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNotReadyRouter(t *testing.T) {
	opts := testOptions()
	opts.StartupErr = &db.MigrationError{Version: 1, Description: "create equipment table", Err: errors.New("permission denied")}
	router := NewRouter(nil, logging.Discard(), opts)

	w := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "permission denied")

	w = do(t, router, http.MethodGet, "/api/equipment", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = do(t, router, http.MethodPost, "/api/equipment", crudeFeedPump)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// failingStore returns err from every operation.
type failingStore struct {
	store.Store
	err error
}

func (f failingStore) List(context.Context) ([]model.Equipment, error) { return nil, f.err }

func (f failingStore) Stats(context.Context) (model.Stats, error) { return model.Stats{}, f.err }

func TestStoreFailuresMapToStatus(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "unavailable", err: store.ErrStoreUnavailable, expected: http.StatusServiceUnavailable},
		{name: "unexpected", err: errors.New("disk full"), expected: http.StatusInternalServerError},
		{name: "client went away", err: fmt.Errorf("list equipment: %w: %w", store.ErrCanceled, context.Canceled), expected: statusClientClosedRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter(failingStore{err: tc.err}, logging.Discard(), testOptions())

			w := do(t, router, http.MethodGet, "/api/equipment", nil)
			assert.Equal(t, tc.expected, w.Code)
			w = do(t, router, http.MethodGet, "/api/equipment/stats", nil)
			assert.Equal(t, tc.expected, w.Code)
			assert.NotContains(t, w.Body.String(), "disk full")
		})
	}
}

func TestCanceledRequestIsNotLoggedAsError(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	router := NewRouter(failingStore{err: fmt.Errorf("list equipment: %w: %w", store.ErrCanceled, context.Canceled)}, log, testOptions())

	w := do(t, router, http.MethodGet, "/api/equipment", nil)
	assert.Equal(t, statusClientClosedRequest, w.Code)
	assert.Contains(t, logs.String(), "request canceled by client")
	assert.NotContains(t, logs.String(), "level=ERROR")
}

func TestRateLimiting(t *testing.T) {
	opts := testOptions()
	opts.RateLimit = rate.Limit(0.001)
	opts.Burst = 2
	router := NewRouter(failingStore{err: store.ErrStoreUnavailable}, logging.Discard(), opts)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, router, http.MethodGet, "/api/equipment", nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, codes[2])

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/health", nil).Code, "probes are not rate limited")
}
