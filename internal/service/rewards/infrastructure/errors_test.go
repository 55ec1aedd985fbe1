package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/haomehaode/kuileme/internal/pkg/database"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

func TestClassify(t *testing.T) {
	conflicts := []error{
		context.DeadlineExceeded,
		&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"},
		&mysql.MySQLError{Number: 1213, Message: "Deadlock found"},
		&pgconn.PgError{Code: "40001"},
		&pgconn.PgError{Code: "40P01"},
		&pgconn.PgError{Code: "55P03"},
		sqlite3.Error{Code: sqlite3.ErrBusy},
	}
	for _, err := range conflicts {
		assert.ErrorIs(t, classify("op", err), domain.ErrConcurrencyConflict, "%v", err)
	}

	storage := []error{
		&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"},
		&pgconn.PgError{Code: "23505"},
		errors.New("connection reset by peer"),
	}
	for _, err := range storage {
		classified := classify("op", err)
		assert.ErrorIs(t, classified, domain.ErrStorage, "%v", err)
		assert.NotErrorIs(t, classified, domain.ErrConcurrencyConflict)
	}

	assert.Nil(t, classify("op", nil))

	funds := &domain.InsufficientFundsError{PointsShortfall: 1}
	assert.Same(t, funds, classify("op", funds))
}

func TestNotFound(t *testing.T) {
	err := notFound("load gift", "gift", 9, gorm.ErrRecordNotFound)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(9), nf.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// MySQL 上 SELECT ... FOR UPDATE 失败时，事务必须回滚且错误为 StorageError
func TestLedgerStore_StorageFailureRollsBack(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := database.OpenDialector(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), database.Config{LogLevel: "silent"})
	require.NoError(t, err)

	uow := NewGormUnitOfWork(db, TxOptions{MaxRetries: 3, LockTimeout: time.Second})
	require.True(t, uow.rowLocks)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `user_balances`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT \\* FROM `user_balances` WHERE user_id = \\? .*FOR UPDATE").
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	_, err = uow.Repositories().Ledger.ApplyDelta(context.Background(), 1, domain.Delta{
		Points: 5, Kind: domain.RecordKindReward,
	})
	require.ErrorIs(t, err, domain.ErrStorage)

	var se *domain.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "load balance", se.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 锁等待超时会被重试，重试次数用尽后返回并发冲突
func TestUnitOfWork_RetriesConflictsThenGivesUp(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := database.OpenDialector(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), database.Config{LogLevel: "silent"})
	require.NoError(t, err)

	uow := NewGormUnitOfWork(db, TxOptions{MaxRetries: 2, LockTimeout: time.Second})
	lockWait := &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}
	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO `user_balances`").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT \\* FROM `user_balances`").WillReturnError(lockWait)
		mock.ExpectRollback()
	}

	attempts := 0
	err = uow.Transact(context.Background(), func(ctx context.Context, repos domain.Repositories) error {
		attempts++
		_, err := repos.Ledger.ApplyDelta(ctx, 1, domain.Delta{Points: 1, Kind: domain.RecordKindReward})
		return err
	})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Equal(t, 3, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
