package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"phincommerce/internal/pkg/logger"
	"phincommerce/internal/service/orchestrator/domain"
)

// HistoryReader 查询某个订单的 Saga 流转记录
type HistoryReader interface {
	History(ctx context.Context, orderID int64) ([]domain.Transition, error)
}

// SagaHandler 封装了编排器的 HTTP 处理器
type SagaHandler struct {
	history  HistoryReader
	hub      *Hub
	gatherer prometheus.Gatherer
}

// NewSagaHandler 创建一个新的 HTTP 处理器实例。hub 为空时不注册 websocket 路由。
func NewSagaHandler(history HistoryReader, hub *Hub, gatherer prometheus.Gatherer) *SagaHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &SagaHandler{history: history, hub: hub, gatherer: gatherer}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *SagaHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /api/v1/sagas/{orderID}", h.sagaHistoryHandler)
	if h.hub != nil {
		mux.HandleFunc("/ws/sagas", h.hub.ServeWs)
	}
}

type transitionView struct {
	SagaID     string    `json:"saga_id"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type sagaView struct {
	SagaID      string           `json:"saga_id"`
	State       string           `json:"state"`
	Terminal    bool             `json:"terminal"`
	Transitions []transitionView `json:"transitions"`
}

type historyResponse struct {
	OrderID int64      `json:"order_id"`
	Sagas   []sagaView `json:"sagas"`
}

func (h *SagaHandler) sagaHistoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	orderID, err := strconv.ParseInt(r.PathValue("orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		http.Error(w, "order id must be a positive integer", http.StatusBadRequest)
		return
	}

	transitions, err := h.history.History(ctx, orderID)
	if errors.Is(err, domain.ErrSagaNotFound) {
		http.Error(w, "no saga recorded for this order", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Int64("order", orderID).Msg("Failed to read saga journal")
		http.Error(w, "failed to read saga journal", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(groupBySaga(orderID, transitions)); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("Failed to write response")
	}
}

// groupBySaga 按 Saga 分组，保持各 Saga 首次出现的顺序。同一订单可能有多次投递。
func groupBySaga(orderID int64, transitions []domain.Transition) historyResponse {
	resp := historyResponse{OrderID: orderID, Sagas: []sagaView{}}
	index := make(map[string]int)
	for _, t := range transitions {
		i, ok := index[t.SagaID]
		if !ok {
			i = len(resp.Sagas)
			index[t.SagaID] = i
			resp.Sagas = append(resp.Sagas, sagaView{SagaID: t.SagaID})
		}
		view := &resp.Sagas[i]
		view.Transitions = append(view.Transitions, transitionView{
			SagaID:     t.SagaID,
			From:       stateName(t.From),
			To:         t.To.String(),
			Detail:     t.Detail,
			OccurredAt: t.OccurredAt,
		})
		view.State = t.To.String()
		view.Terminal = t.To.IsTerminal()
	}
	return resp
}

func stateName(s domain.SagaState) string {
	if s == 0 {
		return ""
	}
	return s.String()
}
