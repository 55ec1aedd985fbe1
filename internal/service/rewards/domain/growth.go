package domain

import (
	"math"
	"time"
)

// DefaultExpPerLevel 每升一级需要的经验值
const DefaultExpPerLevel int64 = 100

// UserLevel 用户等级
type UserLevel struct {
	UserID    int64
	Level     int
	Exp       int64
	Version   int64
	UpdatedAt time.Time
}

// LevelCurve 由经验值推导等级：level = 1 + exp / ExpPerLevel
type LevelCurve struct {
	ExpPerLevel int64
}

func (c LevelCurve) LevelFor(exp int64) int {
	per := c.ExpPerLevel
	if per <= 0 {
		per = DefaultExpPerLevel
	}
	if exp < 0 {
		exp = 0
	}
	return 1 + int(exp/per)
}

// Gain 增加经验并重新计算等级，非正数不产生变化；经验值在 int64 上限处饱和
func (c LevelCurve) Gain(l *UserLevel, exp int64) bool {
	if exp <= 0 {
		return false
	}
	if l.Exp > math.MaxInt64-exp {
		l.Exp = math.MaxInt64
	} else {
		l.Exp += exp
	}
	l.Level = c.LevelFor(l.Exp)
	return true
}

// Medal 勋章定义
type Medal struct {
	ID              int64
	Name            string
	Description     string
	Icon            string
	Rarity          Rarity
	UnlockCondition string
	TargetValue     *int64
	CreatedAt       time.Time
}

// UserMedalProgress 用户对某个勋章的进度，(UserID, MedalID) 唯一
type UserMedalProgress struct {
	UserID     int64
	MedalID    int64
	Progress   int64
	IsUnlocked bool
	UnlockedAt *time.Time
}

// AddProgress 增加进度，达到目标值时解锁，已解锁的勋章不会再被锁回
func (p *UserMedalProgress) AddProgress(m *Medal, delta int64, now time.Time) {
	p.Progress += delta
	if p.Progress < 0 {
		p.Progress = 0
	}
	if !p.IsUnlocked && m.TargetValue != nil && p.Progress >= *m.TargetValue {
		p.IsUnlocked = true
		p.UnlockedAt = &now
	}
}

// MedalWithProgress 勋章定义与当前用户进度的合并视图
type MedalWithProgress struct {
	Medal
	Progress   int64
	IsUnlocked bool
	UnlockedAt *time.Time
}
