package service

import (
	"context"
	"fmt"
	"jewelry-checkout/internal/model"
	"jewelry-checkout/internal/repository"
)

type ProductService interface {
	GetProduct(ctx context.Context, productID string) (*model.Product, error)
	GetStock(ctx context.Context, productID string) (int, error)
}

type productServiceImpl struct {
	productRepo   repository.ProductRepository
	inventoryRepo repository.InventoryRepository
}

func NewProductService(
	productRepo repository.ProductRepository,
	inventoryRepo repository.InventoryRepository,
) ProductService {
	return &productServiceImpl{
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
	}
}

func (s *productServiceImpl) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("find product: %w", err)
	}
	if product == nil {
		return nil, &ProductNotFoundError{ProductID: productID}
	}
	return product, nil
}

func (s *productServiceImpl) GetStock(ctx context.Context, productID string) (int, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return 0, err
	}
	return s.inventoryRepo.Stock(ctx, productID)
}
