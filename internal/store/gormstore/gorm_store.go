// Package gormstore implements order persistence on Gorm + SQLite.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"marlin/internal/order"
	"marlin/internal/store/model"
)

type OrderStore struct {
	db *gorm.DB
}

func NewOrderStore(path string) (*OrderStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("order store: database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return NewOrderStoreFromDB(db)
}

func NewOrderStoreFromDB(db *gorm.DB) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("order store: gorm db cannot be nil")
	}
	if err := db.AutoMigrate(&model.OrderModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		// SQLite + WAL: keep lock contention low while the HTTP layer reads.
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &OrderStore{db: db}, nil
}

func (s *OrderStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save upserts an order keyed by its order ID.
func (s *OrderStore) Save(ctx context.Context, spec *order.Spec, status model.OrderStatus, simulated bool) error {
	if spec == nil {
		return errors.New("order cannot be nil")
	}
	m := newOrderModel(spec, status, simulated)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		UpdateAll: true,
	}).Create(&m).Error
}

// UpdateStatus moves an order to a new status, by order ID.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	return s.db.WithContext(ctx).Model(&model.OrderModel{}).
		Where("order_id = ?", orderID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().Unix(),
		}).Error
}

// FindByOrderID returns the stored order, or nil when absent.
func (s *OrderStore) FindByOrderID(ctx context.Context, orderID string) (*model.OrderModel, error) {
	var m model.OrderModel
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListRecent lists the most recently created orders, newest first.
func (s *OrderStore) ListRecent(ctx context.Context, limit int) ([]model.OrderModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []model.OrderModel
	if err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListBySymbol lists orders for one symbol, newest first.
func (s *OrderStore) ListBySymbol(ctx context.Context, symbol string, limit int) ([]model.OrderModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []model.OrderModel
	if err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func newOrderModel(spec *order.Spec, status model.OrderStatus, simulated bool) model.OrderModel {
	now := time.Now().Unix()
	side := "buy"
	if spec.Type.IsSell() {
		side = "sell"
	}
	linked := ""
	if spec.LinkedTo != nil {
		linked = spec.LinkedTo.ID
	}
	raw, _ := json.Marshal(spec)
	sim := 0
	if simulated {
		sim = 1
	}
	created := now
	if !spec.CreatedAt.IsZero() {
		created = spec.CreatedAt.Unix()
	}
	return model.OrderModel{
		OrderID:       spec.ID,
		Symbol:        spec.Symbol,
		Side:          side,
		Type:          spec.Type.String(),
		Quantity:      spec.Quantity,
		Price:         spec.Price,
		Cost:          spec.Cost(),
		LinkedOrderID: linked,
		IsSimulated:   sim,
		Status:        status,
		RawData:       datatypes.JSON(raw),
		CreatedAtUnix: created,
		UpdatedAtUnix: now,
	}
}
