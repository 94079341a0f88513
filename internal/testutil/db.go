// Package testutil opens throwaway databases for tests.
package testutil

import (
	"context"
	"fmt"
	"jewelry-checkout/internal/client"
	"jewelry-checkout/internal/config"
	"jewelry-checkout/internal/model"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"
)

// NewSQLite returns a migrated in-memory database private to the test. It
// has a single connection, so transactions run one at a time.
func NewSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := client.OpenDatabase(config.Database{
		Driver:       "sqlite",
		URL:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// NewPostgres starts a disposable PostgreSQL container. The test is skipped
// when Docker is not reachable or -short is set.
func NewPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("checkout"),
		postgres.WithUsername("checkout"),
		postgres.WithPassword("checkout"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := client.OpenDatabase(config.Database{
		Driver:       "postgres",
		URL:          dsn,
		MaxIdleConns: 10,
		MaxOpenConns: 20,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func CreateProduct(t *testing.T, db *gorm.DB, id, price, discount string, stock int) *model.Product {
	t.Helper()

	p := &model.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    decimal.RequireFromString(price),
		Discount: decimal.RequireFromString(discount),
		Stock:    stock,
		Category: "test",
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func Stock(t *testing.T, db *gorm.DB, id string) int {
	t.Helper()

	var p model.Product
	require.NoError(t, db.Unscoped().Where("id = ?", id).First(&p).Error)
	return p.Stock
}
