package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/haomehaode/kuileme/internal/pkg/database"
	"github.com/haomehaode/kuileme/internal/service/rewards/application"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
	"github.com/haomehaode/kuileme/internal/service/rewards/infrastructure"
)

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func newTestServer(t *testing.T) (*httptest.Server, *application.RewardsService, domain.UnitOfWork) {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	require.NoError(t, infrastructure.AutoMigrate(db))

	uow := infrastructure.NewGormUnitOfWork(db, infrastructure.TxOptions{LockTimeout: 10 * time.Second})
	engine, err := domain.NewLotteryEngine(domain.DefaultPrizeTable(), fixedSource(0.7))
	require.NoError(t, err)
	svc := application.NewRewardsService(uow, noop.NewTracerProvider().Tracer("test"), engine)

	mux := http.NewServeMux()
	NewRewardsHandler(svc).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return srv, svc, uow
}

func do(t *testing.T, srv *httptest.Server, method, path, userID, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var raw json.RawMessage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		if len(raw) > 0 && raw[0] == '{' {
			require.NoError(t, json.Unmarshal(raw, &out))
		}
	}
	return resp, out
}

func TestHandler_RequiresUserHeader(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, body := do(t, srv, http.MethodGet, "/recovery/balance", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body["detail"], userIDHeader)
}

func TestHandler_BalanceAndLottery(t *testing.T) {
	srv, svc, _ := newTestServer(t)

	resp, body := do(t, srv, http.MethodGet, "/recovery/balance", "5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), body["user_id"])
	assert.Equal(t, "0", body["recovery_balance"])

	resp, body = do(t, srv, http.MethodPost, "/recovery/lottery/draw", "5", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "1.00", body["amount_shortfall"])

	_, err := svc.ApplyAdjustment(context.Background(), application.Adjustment{
		UserID: 5, Kind: domain.RecordKindRecharge, Amount: decimal.NewFromInt(2),
	})
	require.NoError(t, err)

	resp, body = do(t, srv, http.MethodPost, "/recovery/lottery/draw", "5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "小额回血", body["prize_name"])
	assert.Equal(t, "6", body["new_balance"])

	resp, _ = do(t, srv, http.MethodGet, "/recovery/records?kind=lottery_win&limit=5", "5", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/recovery/records?kind=jackpot", "5", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/recovery/records?skip=-1", "5", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_ExchangeFlow(t *testing.T) {
	srv, svc, uow := newTestServer(t)
	ctx := context.Background()

	gift := &domain.Gift{Name: "帆布袋", Type: domain.GiftTypePhysical, Stock: 1, PointsRequired: 50, RecoveryRequired: decimal.Zero}
	require.NoError(t, uow.Repositories().Gifts.Create(ctx, gift))
	_, err := svc.ApplyAdjustment(ctx, application.Adjustment{UserID: 1, Kind: domain.RecordKindReward, Points: 60})
	require.NoError(t, err)

	path := "/gifts/" + strconv.FormatInt(gift.ID, 10) + "/exchange"
	resp, body := do(t, srv, http.MethodPost, path, "1", `{"shipping_address":"北京市朝阳区"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "北京市朝阳区", body["shipping_address"])

	resp, body = do(t, srv, http.MethodPost, path, "1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "礼品库存不足", body["detail"])

	resp, _ = do(t, srv, http.MethodPost, "/gifts/999/exchange", "1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/gifts?type=hologram", "1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/gifts/exchange-records", nil)
	require.NoError(t, err)
	req.Header.Set(userIDHeader, "1")
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	var records []application.ExchangeRecordResponse
	require.NoError(t, json.NewDecoder(raw.Body).Decode(&records))
	require.Len(t, records, 1)

	cancelPath := "/gifts/exchange-records/" + strconv.FormatInt(records[0].ID, 10) + "/cancel"
	resp, _ = do(t, srv, http.MethodPost, cancelPath, "2", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	stored, err := uow.Repositories().Exchanges.Get(ctx, records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ExchangeStatusPending, stored.Status)

	// 发货等履约状态不能由用户推进
	resp, _ = do(t, srv, http.MethodPost, "/gifts/exchange-records/"+strconv.FormatInt(records[0].ID, 10)+"/status", "1", `{"status":"shipped","tracking_number":"SF1"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPost, cancelPath, "1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["status"])
	assert.Equal(t, float64(1), body["user_id"])
}

func TestHandler_Growth(t *testing.T) {
	srv, svc, uow := newTestServer(t)
	ctx := context.Background()
	target := int64(1)
	medal := &domain.Medal{Name: "初来乍到", Rarity: domain.RarityCommon, UnlockCondition: "发布第一条帖子", TargetValue: &target}
	require.NoError(t, uow.Repositories().Growth.CreateMedal(ctx, medal))

	resp, body := do(t, srv, http.MethodGet, "/growth/summary", "3", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["level"])

	resp, body = do(t, srv, http.MethodGet, "/growth/level", "3", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(100), body["next_level_exp"])

	resp, _ = do(t, srv, http.MethodGet, "/growth/points-records", "3", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// 无法识别的稀有度不过滤
	resp, _ = do(t, srv, http.MethodGet, "/medals?rarity=mythic", "3", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// 勋章进度只能由内部消息驱动
	resp, _ = do(t, srv, http.MethodPost, "/medals/"+strconv.FormatInt(medal.ID, 10)+"/progress", "3", `{"delta":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, body = do(t, srv, http.MethodGet, "/growth/summary", "3", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["unlocked_medals_count"])

	view, err := svc.RecordMedalProgress(ctx, 3, medal.ID, 1)
	require.NoError(t, err)
	assert.True(t, view.IsUnlocked)

	resp, body = do(t, srv, http.MethodGet, "/growth/summary", "3", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["unlocked_medals_count"])
}

func TestHandler_Health(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
