package infrastructure

import (
	"context"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

// 数据库驱动返回的锁等待、死锁、序列化失败错误码
const (
	mysqlLockWaitTimeout uint16 = 1205
	mysqlDeadlock        uint16 = 1213

	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// isConflict 判断错误是否来自锁竞争，这类错误可以通过重试整个事务解决
func isConflict(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlLockWaitTimeout || myErr.Number == mysqlDeadlock
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrInterrupt:
			return true
		}
	}
	return false
}

// classify 把驱动错误翻译成领域错误，op 描述失败的操作
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}
	if isConflict(err) {
		return pkgerrors.Wrapf(domain.ErrConcurrencyConflict, "%s: %v", op, err)
	}
	return &domain.StorageError{Op: op, Err: pkgerrors.WithStack(err)}
}

// notFound 把 gorm.ErrRecordNotFound 翻译成 NotFoundError，其他错误交给 classify
func notFound(op, entity string, id int64, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	return classify(op, err)
}

// isClassified 错误是否已经是领域错误
func isClassified(err error) bool {
	for _, target := range []error{
		domain.ErrNotFound,
		domain.ErrOutOfStock,
		domain.ErrInsufficientFunds,
		domain.ErrConcurrencyConflict,
		domain.ErrStorage,
		domain.ErrInvalidArgument,
		domain.ErrInvalidTransition,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
