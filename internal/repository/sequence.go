package repository

import (
	"context"
	"fmt"
	"jewelry-checkout/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const OrderNumberSequence = "orders"

type OrderSequenceRepository interface {
	// Ensure creates the counter row, starting after the highest existing
	// order number.
	Ensure(ctx context.Context, name string) error
	// Next increments and returns the counter inside tx. The row stays
	// locked until tx ends, so a rollback gives the number back.
	Next(ctx context.Context, tx *gorm.DB, name string) (int64, error)
}

type orderSequenceRepoImpl struct {
	db *gorm.DB
}

func NewOrderSequenceRepository(db *gorm.DB) OrderSequenceRepository {
	return &orderSequenceRepoImpl{
		db: db,
	}
}

func (r *orderSequenceRepoImpl) Ensure(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := r.bootstrap(tx, name)
		return err
	})
}

func (r *orderSequenceRepoImpl) bootstrap(tx *gorm.DB, name string) (int64, error) {
	var maxNumber int64
	err := tx.Model(&model.Order{}).
		Select("COALESCE(MAX(order_number), 0)").
		Scan(&maxNumber).Error
	if err != nil {
		return 0, fmt.Errorf("read max order number: %w", err)
	}

	seq := model.OrderSequence{Name: name, Value: maxNumber}
	err = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error
	if err != nil {
		return 0, fmt.Errorf("create sequence %s: %w", name, err)
	}
	return maxNumber, nil
}

func (r *orderSequenceRepoImpl) Next(ctx context.Context, tx *gorm.DB, name string) (int64, error) {
	tx = tx.WithContext(ctx)

	res := tx.Model(&model.OrderSequence{}).
		Where("name = ?", name).
		UpdateColumn("value", gorm.Expr("value + 1"))
	if res.Error != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", name, res.Error)
	}

	if res.RowsAffected == 0 {
		if _, err := r.bootstrap(tx, name); err != nil {
			return 0, err
		}
		res = tx.Model(&model.OrderSequence{}).
			Where("name = ?", name).
			UpdateColumn("value", gorm.Expr("value + 1"))
		if res.Error != nil {
			return 0, fmt.Errorf("increment sequence %s: %w", name, res.Error)
		}
	}

	var seq model.OrderSequence
	if err := tx.Where("name = ?", name).First(&seq).Error; err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", name, err)
	}
	return seq.Value, nil
}
