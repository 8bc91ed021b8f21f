package repository

import (
	"time"

	"gorm.io/gorm"

	"line-gpt-go/internal/model"
)

// ExchangeFilter 描述审计记录的查询条件，字段为 nil 表示不过滤。
type ExchangeFilter struct {
	UserID    *string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}

// ExchangeRepository 定义了问答审计记录的持久化操作。
type ExchangeRepository interface {
	Create(exchange *model.Exchange) error
	Find(filter ExchangeFilter) ([]model.Exchange, error)
	CountUsers() (int64, error)
}

// exchangeRepository 是 ExchangeRepository 接口的 GORM 实现。
type exchangeRepository struct {
	db *gorm.DB
}

// NewExchangeRepository 创建一个新的 ExchangeRepository 实例。
func NewExchangeRepository(db *gorm.DB) ExchangeRepository {
	return &exchangeRepository{db: db}
}

// Create 写入一条问答记录。
func (r *exchangeRepository) Create(exchange *model.Exchange) error {
	return r.db.Create(exchange).Error
}

// Find 按条件倒序查询问答记录。
func (r *exchangeRepository) Find(filter ExchangeFilter) ([]model.Exchange, error) {
	var exchanges []model.Exchange
	q := r.db.Model(&model.Exchange{})
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.StartTime != nil {
		q = q.Where("created_at >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		q = q.Where("created_at <= ?", *filter.EndTime)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	err := q.Order("created_at DESC").Limit(limit).Find(&exchanges).Error
	return exchanges, err
}

// CountUsers 返回有过问答记录的用户数量。
func (r *exchangeRepository) CountUsers() (int64, error) {
	var count int64
	err := r.db.Model(&model.Exchange{}).Distinct("user_id").Count(&count).Error
	return count, err
}
