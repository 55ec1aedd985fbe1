package domain

import "context"

// LedgerStore 余额与流水的唯一写入口
type LedgerStore interface {
	// GetOrCreateBalance 返回用户余额，不存在时创建零余额
	GetOrCreateBalance(ctx context.Context, userID int64) (*UserBalance, error)
	// ApplyDelta 原子地修改余额并追加一条流水；任一货币会变为负数时拒绝
	ApplyDelta(ctx context.Context, userID int64, delta Delta) (*UserBalance, error)
	// ListRecords 按时间倒序列出流水
	ListRecords(ctx context.Context, userID int64, q RecordQuery) ([]*LedgerRecord, error)
}

// GiftRepository 礼品目录
type GiftRepository interface {
	List(ctx context.Context, giftType *GiftType) ([]*Gift, error)
	Get(ctx context.Context, id int64) (*Gift, error)
	// GetForUpdate 在事务中锁定礼品行
	GetForUpdate(ctx context.Context, id int64) (*Gift, error)
	// DecrementStock 库存减一，库存已为零时返回 OutOfStockError
	DecrementStock(ctx context.Context, id int64) error
	Create(ctx context.Context, gift *Gift) error
	ListLimited(ctx context.Context) ([]*Gift, error)
}

// ExchangeRepository 兑换记录
type ExchangeRepository interface {
	Create(ctx context.Context, record *ExchangeRecord) error
	Get(ctx context.Context, id int64) (*ExchangeRecord, error)
	GetForUpdate(ctx context.Context, id int64) (*ExchangeRecord, error)
	Update(ctx context.Context, record *ExchangeRecord) error
	ListByUser(ctx context.Context, userID int64, page Page) ([]*ExchangeRecord, error)
}

// GrowthRepository 等级与勋章
type GrowthRepository interface {
	GetOrCreateLevel(ctx context.Context, userID int64) (*UserLevel, error)
	GetOrCreateLevelForUpdate(ctx context.Context, userID int64) (*UserLevel, error)
	SaveLevel(ctx context.Context, level *UserLevel) error
	ListMedals(ctx context.Context, rarity *Rarity) ([]*Medal, error)
	GetMedal(ctx context.Context, id int64) (*Medal, error)
	CreateMedal(ctx context.Context, medal *Medal) error
	// EnsureProgress 为缺失的 (user, medal) 组合创建零进度行，并返回全部进度
	EnsureProgress(ctx context.Context, userID int64, medalIDs []int64) (map[int64]*UserMedalProgress, error)
	GetProgressForUpdate(ctx context.Context, userID, medalID int64) (*UserMedalProgress, error)
	SaveProgress(ctx context.Context, p *UserMedalProgress) error
	CountUnlocked(ctx context.Context, userID int64) (int64, error)
}

// Repositories 同一个事务视图下的全部仓储
type Repositories struct {
	Ledger    LedgerStore
	Gifts     GiftRepository
	Exchanges ExchangeRepository
	Growth    GrowthRepository
}

// UnitOfWork 在一个数据库事务中执行 fn。
// fn 返回 ConcurrencyConflictError 时整个事务可能被重新执行，因此 fn 不能有事务外的副作用。
type UnitOfWork interface {
	Repositories() Repositories
	Transact(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
