package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	allocationdomain "github.com/benangcapital/benang/internal/allocation/domain"
	allocationrepo "github.com/benangcapital/benang/internal/allocation/repository"
	"github.com/benangcapital/benang/internal/clock"
	equipmentdomain "github.com/benangcapital/benang/internal/equipment/domain"
	equipmentrepo "github.com/benangcapital/benang/internal/equipment/repository"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	investorrepo "github.com/benangcapital/benang/internal/investor/repository"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	ledgerrepo "github.com/benangcapital/benang/internal/ledger/repository"
	ledgerservice "github.com/benangcapital/benang/internal/ledger/service"
	"github.com/benangcapital/benang/internal/observability/metrics"
	"github.com/benangcapital/benang/internal/withdrawal/domain"
	"github.com/benangcapital/benang/internal/withdrawal/repository"
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
		&equipmentdomain.Equipment{},
		&allocationdomain.ProductAllocation{},
		&allocationdomain.EquipmentAllocation{},
		&domain.WithdrawalRequest{},
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
		DB:          conn,
		Log:         zap.NewNop(),
		GenID:       node,
		Clock:       clock.NewSystemClock(),
		Repo:        repository.Provide(),
		Investors:   investorrepo.Provide(),
		Allocations: allocationrepo.Provide(),
		Equipment:   equipmentrepo.Provide(),
		Projector:   projector,
	})
	return &testEnv{conn: conn, node: node, svc: svc}
}

func (e *testEnv) investor(t *testing.T, cash, profit int64) *investordomain.Investor {
	t.Helper()
	inv := &investordomain.Investor{
		ID:            e.node.Generate(),
		Name:          "Rina Hartati",
		Email:         fmt.Sprintf("rina+%d@benang.test", e.node.Generate().Int64()),
		Status:        investordomain.StatusActive,
		CashBalance:   cash,
		ProfitBalance: profit,
		Metadata:      datatypes.JSONMap{},
	}
	require.NoError(t, e.conn.Create(inv).Error)
	return inv
}

func (e *testEnv) productAllocation(t *testing.T, investorID snowflake.ID, total, quantity int64) *allocationdomain.ProductAllocation {
	t.Helper()
	alloc := &allocationdomain.ProductAllocation{
		ID:                e.node.Generate(),
		InvestorID:        investorID,
		ProductID:         e.node.Generate(),
		TotalInvestment:   total,
		UnitPrice:         total / quantity,
		Quantity:          quantity,
		QuantityRemaining: quantity,
		IdempotencyKey:    fmt.Sprintf("pa-%d", e.node.Generate().Int64()),
	}
	require.NoError(t, e.conn.Create(alloc).Error)
	return alloc
}

func (e *testEnv) equipmentAllocation(t *testing.T, investorID snowflake.ID, bps int64, basis equipmentdomain.ValuationBasis, currentValue int64) *allocationdomain.EquipmentAllocation {
	t.Helper()
	eq := &equipmentdomain.Equipment{
		ID:                   e.node.Generate(),
		Name:                 "Mesin Potong",
		PurchasePrice:        200_000,
		CurrentValue:         currentValue,
		InvestorPoolShareBps: 5000,
		ExitValuationBasis:   basis,
		Status:               equipmentdomain.EquipmentActive,
	}
	require.NoError(t, e.conn.Create(eq).Error)

	alloc := &allocationdomain.EquipmentAllocation{
		ID:              e.node.Generate(),
		InvestorID:      investorID,
		EquipmentID:     eq.ID,
		AmountAllocated: bps * 20,
		InvestmentBps:   bps,
		IdempotencyKey:  fmt.Sprintf("ea-%d", e.node.Generate().Int64()),
	}
	require.NoError(t, e.conn.Create(alloc).Error)
	return alloc
}

func (e *testEnv) reload(t *testing.T, id snowflake.ID) investordomain.Investor {
	t.Helper()
	var inv investordomain.Investor
	require.NoError(t, e.conn.First(&inv, "id = ?", id).Error)
	return inv
}

func TestSubmitCashWithdrawalParksPending(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 2_000, 0)

	request, err := env.svc.Submit(context.Background(), domain.SubmitRequest{
		InvestorID:     inv.ID,
		Type:           domain.TypeCash,
		Amount:         1_500,
		IdempotencyKey: "wdr-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, request.Status)
	assert.Equal(t, int64(1_500), request.Amount)
	assert.True(t, strings.HasPrefix(request.Reference, "WDR-"))

	// Submission never moves money.
	assert.Equal(t, int64(2_000), env.reload(t, inv.ID).CashBalance)
}

func TestSubmitBeyondBalance(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 2_000, 500)

	_, err := env.svc.Submit(context.Background(), domain.SubmitRequest{
		InvestorID:     inv.ID,
		Type:           domain.TypeCash,
		Amount:         3_000,
		IdempotencyKey: "wdr-over",
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)

	_, err = env.svc.Submit(context.Background(), domain.SubmitRequest{
		InvestorID:     inv.ID,
		Type:           domain.TypeProfit,
		Amount:         600,
		IdempotencyKey: "wdr-profit-over",
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)
}

func TestApproveStaleBalance(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 2_000, 0)

	first, err := env.svc.Submit(context.Background(), domain.SubmitRequest{
		InvestorID:     inv.ID,
		Type:           domain.TypeCash,
		Amount:         1_500,
		IdempotencyKey: "wdr-a",
	})
	require.NoError(t, err)

	second, err := env.svc.Submit(context.Background(), domain.SubmitRequest{
		InvestorID:     inv.ID,
		Type:           domain.TypeCash,
		Amount:         1_500,
		IdempotencyKey: "wdr-b",
	})
	require.NoError(t, err)

	approved, err := env.svc.Approve(context.Background(), first.ID, 0, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Status)
	assert.Equal(t, int64(1_500), approved.ApprovedAmount)
	assert.Equal(t, int64(500), env.reload(t, inv.ID).CashBalance)
	assert.Equal(t, int64(1_500), env.reload(t, inv.ID).TotalWithdrawn)

	// The second request passed submission but the money is gone.
	_, err = env.svc.Approve(context.Background(), second.ID, 0, "admin:1")
	assert.ErrorIs(t, err, domain.ErrStaleBalance)

	got, err := env.svc.GetByID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, int64(500), env.reload(t, inv.ID).CashBalance)
}

func TestApprovePartialAmount(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 2_000, 0)

	request, err := env.svc.Submit(context.Background(), domain.SubmitRequest{
		InvestorID:     inv.ID,
		Type:           domain.TypeCash,
		Amount:         1_500,
		IdempotencyKey: "wdr-partial",
	})
	require.NoError(t, err)

	approved, err := env.svc.Approve(context.Background(), request.ID, 1_000, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), approved.ApprovedAmount)
	assert.Equal(t, int64(1_000), env.reload(t, inv.ID).CashBalance)

	// Settling above the asked figure is rejected.
	other, err := env.svc.Submit(context.Background(), domain.SubmitRequest{
		InvestorID:     inv.ID,
		Type:           domain.TypeCash,
		Amount:         500,
		IdempotencyKey: "wdr-partial-2",
	})
	require.NoError(t, err)
	_, err = env.svc.Approve(context.Background(), other.ID, 800, "admin:1")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestApproveNonPending(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 2_000, 0)

	request, err := env.svc.Submit(context.Background(), domain.SubmitRequest{
		InvestorID:     inv.ID,
		Type:           domain.TypeCash,
		Amount:         1_000,
		IdempotencyKey: "wdr-twice",
	})
	require.NoError(t, err)

	_, err = env.svc.Approve(context.Background(), request.ID, 0, "admin:1")
	require.NoError(t, err)

	_, err = env.svc.Approve(context.Background(), request.ID, 0, "admin:1")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, int64(1_000), env.reload(t, inv.ID).CashBalance)
}

func TestRejectWithdrawal(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 2_000, 0)

	request, err := env.svc.Submit(context.Background(), domain.SubmitRequest{
		InvestorID:     inv.ID,
		Type:           domain.TypeCash,
		Amount:         1_000,
		IdempotencyKey: "wdr-reject",
	})
	require.NoError(t, err)

	rejected, err := env.svc.Reject(context.Background(), request.ID, "unverified bank account", "admin:2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
	assert.Equal(t, "unverified bank account", rejected.Reason)
	assert.Equal(t, int64(2_000), env.reload(t, inv.ID).CashBalance)

	_, err = env.svc.Reject(context.Background(), request.ID, "again", "admin:2")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestProductPartialExit(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 0, 0)
	alloc := env.productAllocation(t, inv.ID, 100_000, 10)

	request, err := env.svc.Submit(context.Background(), domain.SubmitRequest{
		InvestorID:          inv.ID,
		Type:                domain.TypeProduct,
		ProductAllocationID: alloc.ID,
		Quantity:            4,
		IdempotencyKey:      "wdr-product",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40_000), request.Amount)

	approved, err := env.svc.Approve(context.Background(), request.ID, 0, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, int64(40_000), approved.ApprovedAmount)
	assert.Equal(t, int64(40_000), env.reload(t, inv.ID).CashBalance)

	var gotAlloc allocationdomain.ProductAllocation
	require.NoError(t, env.conn.First(&gotAlloc, "id = ?", alloc.ID).Error)
	assert.Equal(t, int64(6), gotAlloc.QuantityRemaining)
	assert.Equal(t, int64(40_000), gotAlloc.CapitalReturned)

	var entry ledgerdomain.Entry
	require.NoError(t, env.conn.First(&entry, "source_type = ? AND source_id = ?", "withdrawal", request.ID).Error)
	assert.Equal(t, ledgerdomain.EntryRefund, entry.Type)

	// Asking for more pieces than remain is caught at submission.
	_, err = env.svc.Submit(context.Background(), domain.SubmitRequest{
		InvestorID:          inv.ID,
		Type:                domain.TypeProduct,
		ProductAllocationID: alloc.ID,
		Quantity:            7,
		IdempotencyKey:      "wdr-product-2",
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientQuantity)
}

func TestEquipmentShareExit(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 0, 0)
	alloc := env.equipmentAllocation(t, inv.ID, 2500, equipmentdomain.BasisCurrentValue, 240_000)

	request, err := env.svc.Submit(context.Background(), domain.SubmitRequest{
		InvestorID:            inv.ID,
		Type:                  domain.TypeEquipmentShare,
		EquipmentAllocationID: alloc.ID,
		IdempotencyKey:        "wdr-exit",
	})
	require.NoError(t, err)
	// 2500 bps of the 240_000 current value.
	assert.Equal(t, int64(60_000), request.Amount)

	_, err = env.svc.Approve(context.Background(), request.ID, 0, "admin:1")
	require.NoError(t, err)
	assert.Equal(t, int64(60_000), env.reload(t, inv.ID).CashBalance)

	var gotAlloc allocationdomain.EquipmentAllocation
	require.NoError(t, env.conn.First(&gotAlloc, "id = ?", alloc.ID).Error)
	assert.True(t, gotAlloc.HasExited)
	require.NotNil(t, gotAlloc.ExitedAt)

	_, err = env.svc.Submit(context.Background(), domain.SubmitRequest{
		InvestorID:            inv.ID,
		Type:                  domain.TypeEquipmentShare,
		EquipmentAllocationID: alloc.ID,
		IdempotencyKey:        "wdr-exit-2",
	})
	assert.ErrorIs(t, err, domain.ErrAllocationExited)
}

func TestSubmitIdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, 2_000, 0)

	req := domain.SubmitRequest{
		InvestorID:     inv.ID,
		Type:           domain.TypeCash,
		Amount:         1_000,
		IdempotencyKey: "wdr-replay",
	}

	first, err := env.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	second, err := env.svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
