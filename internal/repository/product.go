package repository

import (
	"context"
	"errors"
	"jewelry-checkout/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Seed(ctx context.Context) error
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, productID string) (*model.Product, error)
	// LockMany reads the products with an exclusive row lock held until tx
	// ends. Rows are locked in ascending id order; missing ids are simply
	// absent from the result.
	LockMany(ctx context.Context, tx *gorm.DB, productIDs []string) (map[string]*model.Product, error)
}

type productRepoImpl struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepoImpl{
		db: db,
	}
}

func (r *productRepoImpl) Seed(ctx context.Context) error {
	products := []model.Product{
		{ID: "ring-solitaire-18k", Name: "Solitaire Ring 18K", Price: decimal.NewFromInt(45999), Discount: decimal.NewFromInt(5), Stock: 12, Category: "rings"},
		{ID: "pendant-heart-925", Name: "Heart Pendant Sterling Silver", Price: decimal.NewFromInt(2499), Discount: decimal.NewFromInt(10), Stock: 40, Category: "pendants"},
		{ID: "earring-jhumka-22k", Name: "Jhumka Earrings 22K", Price: decimal.NewFromInt(38750), Discount: decimal.Zero, Stock: 6, Category: "earrings"},
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}

func (r *productRepoImpl) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepoImpl) FindByID(ctx context.Context, productID string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Where("id = ?", productID).
		First(&product).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &product, nil
}

func (r *productRepoImpl) LockMany(ctx context.Context, tx *gorm.DB, productIDs []string) (map[string]*model.Product, error) {
	var products []*model.Product
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", productIDs).
		Order("id").
		Find(&products).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}
