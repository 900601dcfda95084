package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	equipmentdomain "github.com/benangcapital/benang/internal/equipment/domain"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	productdomain "github.com/benangcapital/benang/internal/product/domain"
)

const (
	demoInvestorEmail = "demo@benang.capital"
	demoInvestorName  = "Demo Investor"
	demoProductSKU    = "PRD-DEMO-KEMEJA"
)

// EnsureDemoData seeds a demo investor, product and equipment so a
// fresh local install has something to click through. Idempotent.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureDemoInvestor(ctx, tx, node); err != nil {
			return err
		}
		if err := ensureDemoProduct(ctx, tx, node); err != nil {
			return err
		}
		return ensureDemoEquipment(ctx, tx, node)
	})
}

func ensureDemoInvestor(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&investordomain.Investor{}).
		Where("email = ?", demoInvestorEmail).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return tx.WithContext(ctx).Create(&investordomain.Investor{
		ID:       node.Generate(),
		Name:     demoInvestorName,
		Email:    demoInvestorEmail,
		Status:   investordomain.StatusActive,
		Metadata: datatypes.JSONMap{"seeded": true},
	}).Error
}

func ensureDemoProduct(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&productdomain.Product{}).
		Where("sku = ?", demoProductSKU).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return tx.WithContext(ctx).Create(&productdomain.Product{
		ID:        node.Generate(),
		Name:      "Kemeja Batik",
		SKU:       demoProductSKU,
		UnitPrice: 250_000_00,
		Status:    productdomain.ProductActive,
	}).Error
}

func ensureDemoEquipment(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	if err := tx.WithContext(ctx).
		Model(&equipmentdomain.Equipment{}).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return tx.WithContext(ctx).Create(&equipmentdomain.Equipment{
		ID:                   node.Generate(),
		Name:                 "Mesin Jahit Industri",
		PurchasePrice:        15_000_000_00,
		CurrentValue:         15_000_000_00,
		InvestorPoolShareBps: 5000,
		ExitValuationBasis:   equipmentdomain.BasisCurrentValue,
		Status:               equipmentdomain.EquipmentActive,
	}).Error
}
