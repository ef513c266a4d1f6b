package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"phincommerce/internal/pkg/discovery"
	"phincommerce/internal/pkg/rule"
	"phincommerce/internal/service/orchestrator/domain"
)

const inventoryService = "product-service"

// fakeProductService 模拟库存服务的 /api/v1/products 接口
type fakeProductService struct {
	mu      sync.Mutex
	stock   map[int64]int
	updates []quantityUpdateRequest
	fail    bool
}

func (s *fakeProductService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.fail {
			http.Error(w, "database unavailable", http.StatusInternalServerError)
			return
		}
		id := mustID(r)
		qty, ok := s.stock[id]
		if !ok {
			http.Error(w, "product not found", http.StatusNotFound)
			return
		}
		writeJSON(w, SuccessResponse[productDTO]{Status: "OK", Data: productDTO{ID: id, Category: "books", StockQuantity: qty}})
	})
	mux.HandleFunc("PATCH /api/v1/products/{id}/quantities", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		var req quantityUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.updates = append(s.updates, req)
		id := mustID(r)
		qty, ok := s.stock[id]
		if !ok {
			http.Error(w, "product not found", http.StatusNotFound)
			return
		}
		switch req.Action {
		case actionDeduct:
			if qty < req.StockQuantity {
				http.Error(w, "insufficient stock", http.StatusBadRequest)
				return
			}
			qty -= req.StockQuantity
		case actionAdd:
			qty += req.StockQuantity
		}
		s.stock[id] = qty
		writeJSON(w, SuccessResponse[productDTO]{Status: "OK", Data: productDTO{ID: id, StockQuantity: qty}})
	})
	return mux
}

func (s *fakeProductService) stockOf(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[id]
}

func mustID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newInventoryAdapter(t *testing.T, baseURL string, expr string) *InventoryHTTPAdapter {
	t.Helper()
	stockRule, err := rule.NewStockRule(expr)
	require.NoError(t, err)
	a, err := NewInventoryHTTPAdapter(testClient(), discovery.StaticResolver{inventoryService: baseURL}, inventoryService, stockRule, 2*time.Second)
	require.NoError(t, err)
	return a
}

func TestInventoryAdapter_CheckAvailability(t *testing.T) {
	svc := &fakeProductService{stock: map[int64]int{10: 5, 11: 0}}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()
	a := newInventoryAdapter(t, srv.URL, "")

	assert.Equal(t, domain.OutcomeOK, a.CheckAvailability(context.Background(), 10, 5).Outcome)

	short := a.CheckAvailability(context.Background(), 10, 6)
	assert.Equal(t, domain.OutcomeRejected, short.Outcome)
	assert.Equal(t, "insufficient stock: have 5, need 6", short.Reason)

	assert.Equal(t, domain.OutcomeRejected, a.CheckAvailability(context.Background(), 11, 1).Outcome)

	missing := a.CheckAvailability(context.Background(), 99, 1)
	assert.Equal(t, domain.OutcomeRejected, missing.Outcome)
	assert.Equal(t, "product not found", missing.Reason)
}

func TestInventoryAdapter_CustomStockRule(t *testing.T) {
	svc := &fakeProductService{stock: map[int64]int{10: 5}}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()
	a := newInventoryAdapter(t, srv.URL, "stock - requested >= 2")

	assert.True(t, a.CheckAvailability(context.Background(), 10, 3).Succeeded())
	assert.False(t, a.CheckAvailability(context.Background(), 10, 4).Succeeded())
}

func TestInventoryAdapter_TransportErrors(t *testing.T) {
	svc := &fakeProductService{stock: map[int64]int{10: 5}, fail: true}
	srv := httptest.NewServer(svc.handler())
	a := newInventoryAdapter(t, srv.URL, "")

	serverError := a.CheckAvailability(context.Background(), 10, 1)
	assert.Equal(t, domain.OutcomeTransportError, serverError.Outcome)
	require.Error(t, serverError.Err)

	srv.Close()
	unreachable := a.CheckAvailability(context.Background(), 10, 1)
	assert.Equal(t, domain.OutcomeTransportError, unreachable.Outcome)

	unresolved, err := NewInventoryHTTPAdapter(testClient(), discovery.StaticResolver{}, inventoryService, nil, time.Second)
	require.NoError(t, err)
	result := unresolved.Reserve(context.Background(), 10, 1)
	assert.Equal(t, domain.OutcomeTransportError, result.Outcome)
	assert.ErrorIs(t, result.Err, discovery.ErrServiceNotFound)
}

func TestInventoryAdapter_CallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	a, err := NewInventoryHTTPAdapter(testClient(), discovery.StaticResolver{inventoryService: srv.URL}, inventoryService, nil, 50*time.Millisecond)
	require.NoError(t, err)

	result := a.CheckAvailability(context.Background(), 10, 1)

	assert.Equal(t, domain.OutcomeTransportError, result.Outcome)
}

func TestInventoryAdapter_ReserveAndRelease(t *testing.T) {
	svc := &fakeProductService{stock: map[int64]int{10: 5}}
	srv := httptest.NewServer(svc.handler())
	defer srv.Close()
	a := newInventoryAdapter(t, srv.URL, "")

	assert.True(t, a.Reserve(context.Background(), 10, 2).Succeeded())
	assert.Equal(t, 3, svc.stockOf(10))

	over := a.Reserve(context.Background(), 10, 4)
	assert.Equal(t, domain.OutcomeRejected, over.Outcome)
	assert.Equal(t, 3, svc.stockOf(10))

	assert.True(t, a.Release(context.Background(), 10, 2).Succeeded())
	assert.Equal(t, 5, svc.stockOf(10))

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, []quantityUpdateRequest{
		{Action: "DEDUCT", StockQuantity: 2},
		{Action: "DEDUCT", StockQuantity: 4},
		{Action: "ADD", StockQuantity: 2},
	}, svc.updates)
}
