package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/benangcapital/benang/internal/clock"
	"github.com/benangcapital/benang/internal/product/domain"
	"github.com/benangcapital/benang/internal/product/repository"
)

func newService(t *testing.T) domain.Service {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Product{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewSystemClock(),
		Repo:  repository.Provide(),
	})
}

func TestCreateProductNormalizesSKU(t *testing.T) {
	svc := newService(t)

	product, err := svc.Create(context.Background(), domain.CreateProductRequest{
		Name:      "Kemeja Batik",
		SKU:       " prd-kemeja-batik ",
		UnitPrice: 250_000_00,
	})
	require.NoError(t, err)
	assert.Equal(t, "PRD-KEMEJA-BATIK", product.SKU)
	assert.Equal(t, domain.ProductActive, product.Status)

	// A blank SKU gets generated from the ID.
	generated, err := svc.Create(context.Background(), domain.CreateProductRequest{
		Name:      "Celana Kerja",
		UnitPrice: 180_000_00,
	})
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("PRD-%s", generated.ID.String()), generated.SKU)
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	svc := newService(t)

	_, err := svc.Create(context.Background(), domain.CreateProductRequest{
		Name:      "Kemeja Batik",
		SKU:       "PRD-001",
		UnitPrice: 100_000,
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), domain.CreateProductRequest{
		Name:      "Kemeja Polos",
		SKU:       "prd-001",
		UnitPrice: 90_000,
	})
	assert.ErrorIs(t, err, domain.ErrSKUTaken)
}

func TestCreateProductValidation(t *testing.T) {
	svc := newService(t)

	_, err := svc.Create(context.Background(), domain.CreateProductRequest{
		Name:      " ",
		UnitPrice: 100,
	})
	assert.ErrorIs(t, err, domain.ErrNameRequired)

	_, err = svc.Create(context.Background(), domain.CreateProductRequest{
		Name: "Kemeja",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidUnitPrice)
}

func TestArchiveProductIdempotent(t *testing.T) {
	svc := newService(t)

	product, err := svc.Create(context.Background(), domain.CreateProductRequest{
		Name:      "Kemeja Batik",
		UnitPrice: 100_000,
	})
	require.NoError(t, err)

	archived, err := svc.Archive(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductArchived, archived.Status)

	archived, err = svc.Archive(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductArchived, archived.Status)
}
