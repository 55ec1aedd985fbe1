package adapter

import (
	"context"
	"fmt"

	"github.com/haomehaode/kuileme/internal/pkg/redis"
	"github.com/haomehaode/kuileme/internal/service/rewards/port"
)

const (
	reserveStockScriptName = "reserve_gift_stock"
	releaseStockScriptName = "release_gift_stock"
)

// StockGateRedisAdapter 是 port.StockGate 接口的 Redis 实现。
type StockGateRedisAdapter struct {
	redisClient *redis.Client
}

// NewStockGateRedisAdapter 创建库存闸门适配器，并加载所需的 Lua 脚本。
func NewStockGateRedisAdapter(redisClient *redis.Client) (*StockGateRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(reserveStockScriptName, reserveStockScript); err != nil {
		return nil, fmt.Errorf("failed to load reserve stock script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(releaseStockScriptName, releaseStockScript); err != nil {
		return nil, fmt.Errorf("failed to load release stock script: %w", err)
	}
	return &StockGateRedisAdapter{redisClient: redisClient}, nil
}

func stockKey(giftID int64) string {
	return fmt.Sprintf("rewards:stock:{%d}", giftID)
}

// Reserve 原子地预占一个库存
func (a *StockGateRedisAdapter) Reserve(ctx context.Context, giftID int64) (port.StockReservation, error) {
	result, err := a.redisClient.RunScript(ctx, reserveStockScriptName, []string{stockKey(giftID)})
	if err != nil {
		return 0, fmt.Errorf("stock gate failed to run script: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}

	switch code {
	case 1:
		return port.StockReserved, nil
	case 0:
		return port.StockSoldOut, nil
	case -1:
		return port.StockUntracked, nil
	default:
		return 0, fmt.Errorf("unknown result code from reserve script: %d", code)
	}
}

// Release 归还 Reserve 预占的库存，闸门未跟踪该礼品时什么也不做
func (a *StockGateRedisAdapter) Release(ctx context.Context, giftID int64) error {
	if _, err := a.redisClient.RunScript(ctx, releaseStockScriptName, []string{stockKey(giftID)}); err != nil {
		return fmt.Errorf("stock gate failed to release: %w", err)
	}
	return nil
}

// PrepareStock 用数据库库存覆盖闸门中的值
func (a *StockGateRedisAdapter) PrepareStock(ctx context.Context, giftID, stock int64) error {
	if err := a.redisClient.GetClient().Set(ctx, stockKey(giftID), stock, 0).Err(); err != nil {
		return fmt.Errorf("failed to prepare gift stock: %w", err)
	}
	return nil
}

var reserveStockScript = `
-- KEYS[1]: 礼品库存的 Key, 例如: rewards:stock:{42}

-- 1. 未预热的礼品交给数据库判断
if redis.call('exists', KEYS[1]) == 0 then
    return -1
end

-- 2. 检查库存是否充足
local stock = tonumber(redis.call('get', KEYS[1]))
if stock and stock > 0 then
    redis.call('decr', KEYS[1])
    return 1 -- 预占成功
end

return 0 -- 已售罄
`

var releaseStockScript = `
-- KEYS[1]: 礼品库存的 Key
if redis.call('exists', KEYS[1]) == 1 then
    return redis.call('incr', KEYS[1])
end
return -1
`
