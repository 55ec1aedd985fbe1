package port

import "context"

// StockReservation 是库存闸门的预占结果
type StockReservation int

const (
	StockReserved  StockReservation = iota + 1
	StockSoldOut                    // 闸门中库存已为零
	StockUntracked                  // 闸门未预热该礼品，交由数据库判断
)

// StockGate 是限量礼品的快速售罄判断出站端口。
// 数据库库存始终是权威值，闸门只用于在事务前挡掉明显的售罄请求。
type StockGate interface {
	// Reserve 预占一个库存
	Reserve(ctx context.Context, giftID int64) (StockReservation, error)

	// Release 是 Reserve 的补偿操作
	Release(ctx context.Context, giftID int64) error

	// PrepareStock 用数据库中的库存预热闸门
	PrepareStock(ctx context.Context, giftID, stock int64) error
}
