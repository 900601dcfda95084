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
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/benangcapital/benang/internal/allocation/domain"
	"github.com/benangcapital/benang/internal/allocation/repository"
	"github.com/benangcapital/benang/internal/clock"
	equipmentdomain "github.com/benangcapital/benang/internal/equipment/domain"
	equipmentrepo "github.com/benangcapital/benang/internal/equipment/repository"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	investorrepo "github.com/benangcapital/benang/internal/investor/repository"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	ledgerrepo "github.com/benangcapital/benang/internal/ledger/repository"
	ledgerservice "github.com/benangcapital/benang/internal/ledger/service"
	"github.com/benangcapital/benang/internal/observability/metrics"
	productdomain "github.com/benangcapital/benang/internal/product/domain"
	productrepo "github.com/benangcapital/benang/internal/product/repository"
)

var testMetrics = metrics.NewLedgerMetrics()

type testEnv struct {
	conn *gorm.DB
	node *snowflake.Node
	svc  domain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&investordomain.Investor{},
		&ledgerdomain.Entry{},
		&productdomain.Product{},
		&equipmentdomain.Equipment{},
		&domain.ProductAllocation{},
		&domain.EquipmentAllocation{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	projector := ledgerservice.New(ledgerservice.Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clock.NewSystemClock(),
		Repo:      ledgerrepo.Provide(),
		Investors: investorrepo.Provide(),
		Metrics:   testMetrics,
	})

	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clock.NewSystemClock(),
		Repo:      repository.Provide(),
		Products:  productrepo.Provide(),
		Equipment: equipmentrepo.Provide(),
		Projector: projector,
	})
	return &testEnv{conn: conn, node: node, svc: svc}
}

func (e *testEnv) investor(t *testing.T, cash int64) *investordomain.Investor {
	t.Helper()
	inv := &investordomain.Investor{
		ID:          e.node.Generate(),
		Name:        "Dewi Lestari",
		Email:       fmt.Sprintf("dewi+%d@benang.test", e.node.Generate().Int64()),
		Status:      investordomain.StatusActive,
		CashBalance: cash,
		Metadata:    datatypes.JSONMap{},
	}
	require.NoError(t, e.conn.Create(inv).Error)
	return inv
}

func (e *testEnv) product(t *testing.T, unitPrice int64, status productdomain.ProductStatus) *productdomain.Product {
	t.Helper()
	p := &productdomain.Product{
		ID:        e.node.Generate(),
		Name:      "Kemeja Batik",
		SKU:       fmt.Sprintf("PRD-%d", e.node.Generate().Int64()),
		UnitPrice: unitPrice,
		Status:    status,
	}
	require.NoError(t, e.conn.Create(p).Error)
	return p
}

func (e *testEnv) equipment(t *testing.T, purchasePrice int64) *equipmentdomain.Equipment {
	t.Helper()
	eq := &equipmentdomain.Equipment{
		ID:                   e.node.Generate(),
		Name:                 "Mesin Jahit Industri",
		PurchasePrice:        purchasePrice,
		CurrentValue:         purchasePrice,
		InvestorPoolShareBps: 5000,
		ExitValuationBasis:   equipmentdomain.BasisCurrentValue,
		Status:               equipmentdomain.EquipmentActive,
	}
	require.NoError(t, e.conn.Create(eq).Error)
	return eq
}

func (e *testEnv) cashBalance(t *testing.T, id snowflake.ID) int64 {
	t.Helper()
	var inv investordomain.Investor
	require.NoError(t, e.conn.First(&inv, "id = ?", id).Error)
	return inv.CashBalance
}

func TestAllocateToProductDebitsCash(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 500_000)
	product := env.product(t, 50_000, productdomain.ProductActive)

	alloc, err := env.svc.AllocateToProduct(context.Background(), domain.AllocateProductRequest{
		InvestorID:     inv.ID,
		ProductID:      product.ID,
		Quantity:       4,
		IdempotencyKey: "alloc-1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(200_000), alloc.TotalInvestment)
	assert.Equal(t, int64(50_000), alloc.UnitPrice)
	assert.Equal(t, int64(4), alloc.QuantityRemaining)
	assert.Equal(t, int64(300_000), env.cashBalance(t, inv.ID))

	var entry ledgerdomain.Entry
	require.NoError(t, env.conn.First(&entry, "source_type = ? AND source_id = ?", "product_allocation", alloc.ID).Error)
	assert.Equal(t, ledgerdomain.EntryAllocationProduct, entry.Type)
	assert.Equal(t, int64(200_000), entry.Amount)
}

func TestAllocateToProductInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 100_000)
	product := env.product(t, 150_000, productdomain.ProductActive)

	_, err := env.svc.AllocateToProduct(context.Background(), domain.AllocateProductRequest{
		InvestorID:     inv.ID,
		ProductID:      product.ID,
		Quantity:       1,
		IdempotencyKey: "alloc-broke",
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)

	// The rollback must also discard the allocation row.
	var count int64
	require.NoError(t, env.conn.Model(&domain.ProductAllocation{}).Where("investor_id = ?", inv.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, int64(100_000), env.cashBalance(t, inv.ID))
}

func TestAllocateToProductArchived(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 100_000)
	product := env.product(t, 10_000, productdomain.ProductArchived)

	_, err := env.svc.AllocateToProduct(context.Background(), domain.AllocateProductRequest{
		InvestorID:     inv.ID,
		ProductID:      product.ID,
		Quantity:       1,
		IdempotencyKey: "alloc-archived",
	})
	assert.ErrorIs(t, err, productdomain.ErrProductArchived)
}

func TestAllocateToProductIdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 500_000)
	product := env.product(t, 50_000, productdomain.ProductActive)

	req := domain.AllocateProductRequest{
		InvestorID:     inv.ID,
		ProductID:      product.ID,
		Quantity:       2,
		IdempotencyKey: "alloc-replay",
	}

	first, err := env.svc.AllocateToProduct(context.Background(), req)
	require.NoError(t, err)

	second, err := env.svc.AllocateToProduct(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(400_000), env.cashBalance(t, inv.ID))
}

func TestAllocateToEquipmentFreezesOwnershipBps(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 300_000)
	eq := env.equipment(t, 200_000)

	alloc, err := env.svc.AllocateToEquipment(context.Background(), domain.AllocateEquipmentRequest{
		InvestorID:     inv.ID,
		EquipmentID:    eq.ID,
		Amount:         50_000,
		IdempotencyKey: "eq-alloc-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2500), alloc.InvestmentBps)
	assert.Equal(t, int64(250_000), env.cashBalance(t, inv.ID))

	// A revaluation never rewrites the ownership snapshot.
	require.NoError(t, env.conn.Model(&equipmentdomain.Equipment{}).Where("id = ?", eq.ID).Update("current_value", 320_000).Error)
	var got domain.EquipmentAllocation
	require.NoError(t, env.conn.First(&got, "id = ?", alloc.ID).Error)
	assert.Equal(t, int64(2500), got.InvestmentBps)
}

func TestAllocateToEquipmentOverAllocation(t *testing.T) {
	env := newTestEnv(t)
	first := env.investor(t, 300_000)
	second := env.investor(t, 300_000)
	eq := env.equipment(t, 200_000)

	_, err := env.svc.AllocateToEquipment(context.Background(), domain.AllocateEquipmentRequest{
		InvestorID:     first.ID,
		EquipmentID:    eq.ID,
		Amount:         180_000,
		IdempotencyKey: "eq-first",
	})
	require.NoError(t, err)

	_, err = env.svc.AllocateToEquipment(context.Background(), domain.AllocateEquipmentRequest{
		InvestorID:     second.ID,
		EquipmentID:    eq.ID,
		Amount:         30_000,
		IdempotencyKey: "eq-second",
	})
	assert.ErrorIs(t, err, domain.ErrOverAllocation)
	assert.Equal(t, int64(300_000), env.cashBalance(t, second.ID))

	// Topping up to exactly the purchase price is still allowed.
	_, err = env.svc.AllocateToEquipment(context.Background(), domain.AllocateEquipmentRequest{
		InvestorID:     second.ID,
		EquipmentID:    eq.ID,
		Amount:         20_000,
		IdempotencyKey: "eq-third",
	})
	require.NoError(t, err)
}

func TestAllocateToEquipmentBpsSumCappedAtFull(t *testing.T) {
	env := newTestEnv(t)
	eq := env.equipment(t, 200_000)

	// Each of the first three shares rounds 50_010/200_000 half up to
	// 2501 bps; the naive last share would round to 2499 and push the
	// total to 10002.
	amounts := []int64{50_010, 50_010, 50_010, 49_970}
	var allocs []*domain.EquipmentAllocation
	for i, amount := range amounts {
		inv := env.investor(t, 100_000)
		alloc, err := env.svc.AllocateToEquipment(context.Background(), domain.AllocateEquipmentRequest{
			InvestorID:     inv.ID,
			EquipmentID:    eq.ID,
			Amount:         amount,
			IdempotencyKey: fmt.Sprintf("eq-split-%d", i),
		})
		require.NoError(t, err)
		allocs = append(allocs, alloc)
	}

	assert.Equal(t, int64(2501), allocs[0].InvestmentBps)
	assert.Equal(t, int64(2501), allocs[1].InvestmentBps)
	assert.Equal(t, int64(2501), allocs[2].InvestmentBps)
	assert.Equal(t, int64(2497), allocs[3].InvestmentBps)

	var total int64
	require.NoError(t, env.conn.Model(&domain.EquipmentAllocation{}).
		Where("equipment_id = ? AND has_exited = ?", eq.ID, false).
		Select("COALESCE(SUM(investment_bps), 0)").Scan(&total).Error)
	assert.Equal(t, int64(10_000), total)
}

func TestAllocateToEquipmentRetired(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 300_000)
	eq := env.equipment(t, 200_000)
	require.NoError(t, env.conn.Model(&equipmentdomain.Equipment{}).Where("id = ?", eq.ID).Update("status", equipmentdomain.EquipmentRetired).Error)

	_, err := env.svc.AllocateToEquipment(context.Background(), domain.AllocateEquipmentRequest{
		InvestorID:     inv.ID,
		EquipmentID:    eq.ID,
		Amount:         10_000,
		IdempotencyKey: "eq-retired",
	})
	assert.ErrorIs(t, err, equipmentdomain.ErrEquipmentRetired)
}
