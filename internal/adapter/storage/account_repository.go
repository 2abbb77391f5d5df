package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rl1809/ticket-booking/internal/core/domain"
)

type accountModel struct {
	ID          int64  `gorm:"primaryKey"`
	AccountUUID string `gorm:"column:account_uuid"`
	Active      bool
}

func (accountModel) TableName() string {
	return "accounts"
}

// AccountRepository resolves caller identities against the accounts table.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository wraps an existing pool so accounts and bookings share
// connections.
func NewAccountRepository(conn *sql.DB) (*AccountRepository, error) {
	db, err := gorm.Open(gormmysql.New(gormmysql.Config{Conn: conn}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return &AccountRepository{db: db}, nil
}

func (r *AccountRepository) FindActiveAccount(ctx context.Context, identity string) (*domain.Account, error) {
	var model accountModel
	err := r.db.WithContext(ctx).
		Where("account_uuid = ? AND active = ?", identity, true).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	return &domain.Account{ID: model.ID, UUID: model.AccountUUID, Active: model.Active}, nil
}

// CreateAccount registers an identity. Used for seeding.
func (r *AccountRepository) CreateAccount(ctx context.Context, identity string, active bool) (domain.Account, error) {
	model := accountModel{AccountUUID: identity, Active: active}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}
	return domain.Account{ID: model.ID, UUID: model.AccountUUID, Active: model.Active}, nil
}
