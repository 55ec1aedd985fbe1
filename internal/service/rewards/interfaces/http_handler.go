package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/haomehaode/kuileme/internal/pkg/logger"
	"github.com/haomehaode/kuileme/internal/service/rewards/application"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

const (
	serviceName  = "growth-service"
	userIDHeader = "X-User-ID"
)

// RewardsHandler 封装了成长服务的 HTTP 处理器
type RewardsHandler struct {
	service *application.RewardsService
}

// NewRewardsHandler 创建一个新的 HTTP 处理器实例
func NewRewardsHandler(service *application.RewardsService) *RewardsHandler {
	return &RewardsHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *RewardsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /recovery/balance", h.withUser("GetBalance", h.getBalance))
	mux.HandleFunc("POST /recovery/lottery/draw", h.withUser("DrawLottery", h.drawLottery))
	mux.HandleFunc("GET /recovery/records", h.withUser("ListLedgerRecords", h.listLedgerRecords))

	mux.HandleFunc("GET /gifts", h.withUser("ListGifts", h.listGifts))
	mux.HandleFunc("POST /gifts/{id}/exchange", h.withUser("ExchangeGift", h.exchangeGift))
	mux.HandleFunc("GET /gifts/exchange-records", h.withUser("ListExchangeRecords", h.listExchangeRecords))
	mux.HandleFunc("POST /gifts/exchange-records/{id}/cancel", h.withUser("CancelExchange", h.cancelExchange))

	mux.HandleFunc("GET /growth/summary", h.withUser("GetGrowthSummary", h.getGrowthSummary))
	mux.HandleFunc("GET /growth/level", h.withUser("GetLevel", h.getLevel))
	mux.HandleFunc("GET /growth/points-records", h.withUser("ListPointsRecords", h.listPointsRecords))

	mux.HandleFunc("GET /medals", h.withUser("ListMedals", h.listMedals))
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID int64)

// withUser 提取追踪上下文和网关注入的用户 ID，并为请求开启 span
func (h *RewardsHandler) withUser(name string, next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := otel.Tracer(serviceName).Start(ctx, "http."+name)
		defer span.End()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		l := logger.Ctx(ctx).With().Str("request_id", requestID).Str("route", name).Logger()
		ctx = l.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)

		userID, err := strconv.ParseInt(r.Header.Get(userIDHeader), 10, 64)
		if err != nil || userID <= 0 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Detail: "missing or invalid " + userIDHeader})
			return
		}
		span.SetAttributes(attribute.Int64("user.id", userID))
		next(w, r.WithContext(ctx), userID)
	}
}

func (h *RewardsHandler) getBalance(w http.ResponseWriter, r *http.Request, userID int64) {
	resp, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RewardsHandler) drawLottery(w http.ResponseWriter, r *http.Request, userID int64) {
	resp, err := h.service.DrawLottery(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RewardsHandler) listLedgerRecords(w http.ResponseWriter, r *http.Request, userID int64) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var kind *domain.RecordKind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k, ok := domain.ParseRecordKind(raw)
		if !ok {
			writeError(w, r, domain.InvalidArgument("unknown record kind %q", raw))
			return
		}
		kind = &k
	}
	resp, err := h.service.ListLedgerRecords(r.Context(), userID, kind, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RewardsHandler) listGifts(w http.ResponseWriter, r *http.Request, _ int64) {
	var giftType *domain.GiftType
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, ok := domain.ParseGiftType(raw)
		if !ok {
			writeError(w, r, domain.InvalidArgument("unknown gift type %q", raw))
			return
		}
		giftType = &t
	}
	resp, err := h.service.ListGifts(r.Context(), giftType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ExchangeRequest 是兑换礼品的请求体
type ExchangeRequest struct {
	ShippingAddress *string `json:"shipping_address"`
}

func (h *RewardsHandler) exchangeGift(w http.ResponseWriter, r *http.Request, userID int64) {
	giftID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ExchangeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, domain.InvalidArgument("invalid request body: %v", err))
			return
		}
	}
	resp, err := h.service.ExchangeGift(r.Context(), userID, giftID, req.ShippingAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RewardsHandler) listExchangeRecords(w http.ResponseWriter, r *http.Request, userID int64) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.service.ListExchangeRecords(r.Context(), userID, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// cancelExchange 用户只能取消自己待发货的兑换；发货和签收由履约后台通过 Kafka 推进
func (h *RewardsHandler) cancelExchange(w http.ResponseWriter, r *http.Request, userID int64) {
	exchangeID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.service.CancelExchange(r.Context(), userID, exchangeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RewardsHandler) getGrowthSummary(w http.ResponseWriter, r *http.Request, userID int64) {
	resp, err := h.service.GetGrowthSummary(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RewardsHandler) getLevel(w http.ResponseWriter, r *http.Request, userID int64) {
	resp, err := h.service.GetLevel(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *RewardsHandler) listPointsRecords(w http.ResponseWriter, r *http.Request, userID int64) {
	page, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := h.service.ListPointsRecords(r.Context(), userID, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// listMedals 无法识别的 rarity 视为不过滤
func (h *RewardsHandler) listMedals(w http.ResponseWriter, r *http.Request, userID int64) {
	var rarity *domain.Rarity
	if rr, ok := domain.ParseRarity(r.URL.Query().Get("rarity")); ok {
		rarity = &rr
	}
	resp, err := h.service.ListMedals(r.Context(), userID, rarity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.InvalidArgument("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// parsePage 解析 skip/limit 查询参数
func parsePage(r *http.Request) (domain.Page, error) {
	var page domain.Page
	q := r.URL.Query()
	if raw := q.Get("skip"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return page, domain.InvalidArgument("invalid skip %q", raw)
		}
		page.Offset = v
	}
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return page, domain.InvalidArgument("invalid limit %q", raw)
		}
		page.Limit = v
	}
	return page.Normalize(), nil
}

type errorBody struct {
	Detail          string `json:"detail"`
	PointsShortfall *int64 `json:"points_shortfall,omitempty"`
	AmountShortfall string `json:"amount_shortfall,omitempty"`
}

// writeError 把领域错误映射为 HTTP 状态码
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var funds *domain.InsufficientFundsError
	switch {
	case errors.As(err, &funds):
		pts := funds.PointsShortfall
		writeJSON(w, http.StatusBadRequest, errorBody{
			Detail:          funds.Error(),
			PointsShortfall: &pts,
			AmountShortfall: funds.AmountShortfall.StringFixed(2),
		})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Detail: err.Error()})
	case errors.Is(err, domain.ErrOutOfStock):
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "礼品库存不足"})
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error()})
	case errors.Is(err, domain.ErrConcurrencyConflict):
		writeJSON(w, http.StatusConflict, errorBody{Detail: "请求过于频繁，请稍后重试"})
	default:
		logger.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
