package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/benangcapital/benang/internal/clock"
	"github.com/benangcapital/benang/internal/deposit/domain"
	"github.com/benangcapital/benang/internal/deposit/repository"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	investorrepo "github.com/benangcapital/benang/internal/investor/repository"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	ledgerrepo "github.com/benangcapital/benang/internal/ledger/repository"
	ledgerservice "github.com/benangcapital/benang/internal/ledger/service"
	"github.com/benangcapital/benang/internal/observability/metrics"
)

var testMetrics = metrics.NewLedgerMetrics()

type testEnv struct {
	conn  *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   domain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&investordomain.Investor{},
		&ledgerdomain.Entry{},
		&domain.Deposit{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	projector := ledgerservice.New(ledgerservice.Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fake,
		Repo:      ledgerrepo.Provide(),
		Investors: investorrepo.Provide(),
		Metrics:   testMetrics,
	})

	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fake,
		Repo:      repository.Provide(),
		Investors: investorrepo.Provide(),
		Projector: projector,
	})
	return &testEnv{conn: conn, node: node, clock: fake, svc: svc}
}

func (e *testEnv) investor(t *testing.T, status investordomain.InvestorStatus) *investordomain.Investor {
	t.Helper()
	inv := &investordomain.Investor{
		ID:       e.node.Generate(),
		Name:     "Agus Prasetyo",
		Email:    fmt.Sprintf("agus+%d@benang.test", e.node.Generate().Int64()),
		Status:   status,
		Metadata: datatypes.JSONMap{},
	}
	require.NoError(t, e.conn.Create(inv).Error)
	return inv
}

func (e *testEnv) cashBalance(t *testing.T, id snowflake.ID) int64 {
	t.Helper()
	var inv investordomain.Investor
	require.NoError(t, e.conn.First(&inv, "id = ?", id).Error)
	return inv.CashBalance
}

func TestCreateComputesNetAmount(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, investordomain.StatusActive)

	deposit, err := env.svc.Create(context.Background(), domain.CreateDepositRequest{
		InvestorID:     inv.ID,
		GrossAmount:    100_000,
		Charges:        2_500,
		PaymentMethod:  "bank_transfer",
		IdempotencyKey: "dep-1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(97_500), deposit.Amount)
	assert.Equal(t, domain.StatusAwaitingPayment, deposit.Status)
	assert.True(t, strings.HasPrefix(deposit.Reference, "DEP-"))
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, investordomain.StatusActive)

	_, err := env.svc.Create(context.Background(), domain.CreateDepositRequest{
		InvestorID:     inv.ID,
		GrossAmount:    10_000,
		Charges:        10_000,
		IdempotencyKey: "dep-charges",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidCharges)

	_, err = env.svc.Create(context.Background(), domain.CreateDepositRequest{
		InvestorID:     inv.ID,
		GrossAmount:    10_000,
		IdempotencyKey: "  ",
	})
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyMiss)

	suspended := env.investor(t, investordomain.StatusSuspended)
	_, err = env.svc.Create(context.Background(), domain.CreateDepositRequest{
		InvestorID:     suspended.ID,
		GrossAmount:    10_000,
		IdempotencyKey: "dep-suspended",
	})
	assert.ErrorIs(t, err, investordomain.ErrInvestorNotActive)
}

func TestCreateIdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, investordomain.StatusActive)

	req := domain.CreateDepositRequest{
		InvestorID:     inv.ID,
		GrossAmount:    50_000,
		IdempotencyKey: "dep-replay",
	}

	first, err := env.svc.Create(context.Background(), req)
	require.NoError(t, err)
	second, err := env.svc.Create(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, env.conn.Model(&domain.Deposit{}).Where("investor_id = ?", inv.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestConfirmCreditsCashOnce(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, investordomain.StatusActive)

	deposit, err := env.svc.Create(context.Background(), domain.CreateDepositRequest{
		InvestorID:     inv.ID,
		GrossAmount:    100_000,
		Charges:        2_500,
		IdempotencyKey: "dep-confirm",
	})
	require.NoError(t, err)

	_, err = env.svc.MarkPaid(context.Background(), deposit.ID)
	require.NoError(t, err)
	_, err = env.svc.UploadReceipt(context.Background(), deposit.ID, "https://files.benang.test/receipt.jpg")
	require.NoError(t, err)

	confirmed, err := env.svc.Confirm(context.Background(), deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Equal(t, int64(97_500), env.cashBalance(t, inv.ID))

	// A second confirm is a no-op, not a double credit.
	again, err := env.svc.Confirm(context.Background(), deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, again.Status)
	assert.Equal(t, int64(97_500), env.cashBalance(t, inv.ID))
}

func TestConfirmFromAwaitingPayment(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, investordomain.StatusActive)

	deposit, err := env.svc.Create(context.Background(), domain.CreateDepositRequest{
		InvestorID:     inv.ID,
		GrossAmount:    10_000,
		IdempotencyKey: "dep-skip",
	})
	require.NoError(t, err)

	_, err = env.svc.Confirm(context.Background(), deposit.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, int64(0), env.cashBalance(t, inv.ID))
}

func TestCancelIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, investordomain.StatusActive)

	deposit, err := env.svc.Create(context.Background(), domain.CreateDepositRequest{
		InvestorID:     inv.ID,
		GrossAmount:    10_000,
		IdempotencyKey: "dep-cancel",
	})
	require.NoError(t, err)

	cancelled, err := env.svc.Cancel(context.Background(), deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	_, err = env.svc.MarkPaid(context.Background(), deposit.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestExpireStaleSweepsOldAwaitingPayment(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, investordomain.StatusActive)

	stale, err := env.svc.Create(context.Background(), domain.CreateDepositRequest{
		InvestorID:     inv.ID,
		GrossAmount:    10_000,
		IdempotencyKey: "dep-stale",
	})
	require.NoError(t, err)

	paid, err := env.svc.Create(context.Background(), domain.CreateDepositRequest{
		InvestorID:     inv.ID,
		GrossAmount:    20_000,
		IdempotencyKey: "dep-paid",
	})
	require.NoError(t, err)
	_, err = env.svc.MarkPaid(context.Background(), paid.ID)
	require.NoError(t, err)

	env.clock.Advance(25 * time.Hour)

	fresh, err := env.svc.Create(context.Background(), domain.CreateDepositRequest{
		InvestorID:     inv.ID,
		GrossAmount:    30_000,
		IdempotencyKey: "dep-fresh",
	})
	require.NoError(t, err)

	cutoff := env.clock.Now().Add(-24 * time.Hour)
	expired, err := env.svc.ExpireStale(context.Background(), cutoff, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := env.svc.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.Status)

	got, err = env.svc.GetByID(context.Background(), paid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingReceipt, got.Status)

	got, err = env.svc.GetByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingPayment, got.Status)
}
