package infrastructure

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/haomehaode/kuileme/internal/pkg/logger"
	"github.com/haomehaode/kuileme/internal/pkg/metrics"
	"github.com/haomehaode/kuileme/internal/service/rewards/domain"
)

const (
	defaultMaxRetries  = 3
	defaultLockTimeout = 3 * time.Second
	initialBackoff     = 10 * time.Millisecond
)

// TxOptions 控制事务的锁等待和冲突重试
type TxOptions struct {
	MaxRetries  int
	LockTimeout time.Duration
}

// GormUnitOfWork 是 domain.UnitOfWork 的 GORM 实现。
// 每次 Transact 都在独立的数据库事务中执行，冲突时整体重试。
type GormUnitOfWork struct {
	db          *gorm.DB
	maxRetries  int
	lockTimeout time.Duration
	rowLocks    bool // SQLite 没有行锁，只依赖版本号
}

// NewGormUnitOfWork 创建工作单元
func NewGormUnitOfWork(db *gorm.DB, opts TxOptions) *GormUnitOfWork {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	return &GormUnitOfWork{
		db:          db,
		maxRetries:  opts.MaxRetries,
		lockTimeout: opts.LockTimeout,
		rowLocks:    db.Dialector.Name() != "sqlite",
	}
}

// Repositories 返回不在事务中的仓储，写操作会各自开启事务
func (u *GormUnitOfWork) Repositories() domain.Repositories {
	return u.reposFor(u.db, false)
}

func (u *GormUnitOfWork) reposFor(db *gorm.DB, inTx bool) domain.Repositories {
	return domain.Repositories{
		Ledger:    &GormLedgerStore{db: db, inTx: inTx, uow: u},
		Gifts:     &GormGiftRepository{db: db, uow: u},
		Exchanges: &GormExchangeRepository{db: db, uow: u},
		Growth:    &GormGrowthRepository{db: db, uow: u},
	}
}

// Transact 实现 domain.UnitOfWork
func (u *GormUnitOfWork) Transact(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		err := u.transactOnce(ctx, fn)
		if err == nil || !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}
		if attempt >= u.maxRetries || ctx.Err() != nil {
			return err
		}

		metrics.TxConflictRetries.Inc()
		logger.Ctx(ctx).Warn().Err(err).Int("attempt", attempt+1).Msg("transaction conflict, retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return err
		}
		backoff *= 2
	}
}

func (u *GormUnitOfWork) transactOnce(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	txCtx, cancel := context.WithTimeout(ctx, u.lockTimeout)
	defer cancel()

	err := u.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		return fn(txCtx, u.reposFor(tx, true))
	})
	return classify("transaction", err)
}

// forUpdate 在支持行锁的数据库上追加 FOR UPDATE
func (u *GormUnitOfWork) forUpdate(db *gorm.DB) *gorm.DB {
	if !u.rowLocks {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// AutoMigrate 创建或更新全部表结构
func AutoMigrate(db *gorm.DB) error {
	return classify("migrate", db.AutoMigrate(allModels...))
}
