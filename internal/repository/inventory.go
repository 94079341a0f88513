package repository

import (
	"context"
	"jewelry-checkout/internal/model"
	"time"

	"gorm.io/gorm"
)

type InventoryRepository interface {
	// Decrement takes qty units only if at least qty are in stock and
	// reports whether it did.
	Decrement(ctx context.Context, tx *gorm.DB, productID string, qty int) (bool, error)
	Restock(ctx context.Context, tx *gorm.DB, productID string, qty int) error
	Stock(ctx context.Context, productID string) (int, error)
}

type inventoryRepoImpl struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepoImpl{
		db: db,
	}
}

func (r *inventoryRepoImpl) Decrement(ctx context.Context, tx *gorm.DB, productID string, qty int) (bool, error) {
	res := tx.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now(),
		})
	return res.RowsAffected > 0, res.Error
}

// Restock ignores soft deletion so cancelled orders return units to
// products that were hidden meanwhile.
func (r *inventoryRepoImpl) Restock(ctx context.Context, tx *gorm.DB, productID string, qty int) error {
	return tx.WithContext(ctx).Unscoped().Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", qty),
			"updated_at": time.Now(),
		}).Error
}

func (r *inventoryRepoImpl) Stock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := r.db.WithContext(ctx).Unscoped().Model(&model.Product{}).
		Where("id = ?", productID).
		Select("stock").
		Scan(&stock).Error
	return stock, err
}
