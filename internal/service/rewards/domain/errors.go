package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// 业务错误哨兵，调用方通过 errors.Is 判断类别
var (
	ErrNotFound            = errors.New("not found")
	ErrOutOfStock          = errors.New("out of stock")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrStorage             = errors.New("storage failure")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// InsufficientFundsError 携带每种货币的精确缺口，未缺的货币为零
type InsufficientFundsError struct {
	PointsShortfall int64
	AmountShortfall decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	switch {
	case e.PointsShortfall > 0 && e.AmountShortfall.IsPositive():
		return fmt.Sprintf("积分不足，还需要%d积分；回血金不足，还需要%s元", e.PointsShortfall, e.AmountShortfall.StringFixed(2))
	case e.PointsShortfall > 0:
		return fmt.Sprintf("积分不足，还需要%d积分", e.PointsShortfall)
	default:
		return fmt.Sprintf("回血金不足，还需要%s元", e.AmountShortfall.StringFixed(2))
	}
}

func (e *InsufficientFundsError) Is(target error) bool { return target == ErrInsufficientFunds }

// OutOfStockError 礼品库存为零
type OutOfStockError struct {
	GiftID int64
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("gift %d is out of stock", e.GiftID)
}

func (e *OutOfStockError) Is(target error) bool { return target == ErrOutOfStock }

// NotFoundError 实体不存在
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StorageError 包装底层存储失败，Op 为失败的操作名
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func (e *StorageError) Unwrap() error { return e.Err }

// InvalidArgument 返回一个可被 errors.Is(err, ErrInvalidArgument) 识别的错误
func InvalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
