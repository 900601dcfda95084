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

	"github.com/benangcapital/benang/internal/clock"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	investorrepo "github.com/benangcapital/benang/internal/investor/repository"
	"github.com/benangcapital/benang/internal/ledger/domain"
	"github.com/benangcapital/benang/internal/ledger/repository"
	"github.com/benangcapital/benang/internal/observability/metrics"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

// Prometheus registration is process-wide, so the whole package shares
// one instance.
var testMetrics = metrics.NewLedgerMetrics()

func newProjector(t *testing.T) (*gorm.DB, domain.Projector, *snowflake.Node) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&investordomain.Investor{}, &domain.Entry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	projector := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clock.NewSystemClock(),
		Repo:      repository.Provide(),
		Investors: investorrepo.Provide(),
		Metrics:   testMetrics,
	})
	return conn, projector, node
}

func seedInvestor(t *testing.T, conn *gorm.DB, node *snowflake.Node, status investordomain.InvestorStatus) *investordomain.Investor {
	t.Helper()
	inv := &investordomain.Investor{
		ID:       node.Generate(),
		Name:     "Sari Wijaya",
		Email:    fmt.Sprintf("sari+%d@benang.test", node.Generate().Int64()),
		Status:   status,
		Metadata: datatypes.JSONMap{},
	}
	require.NoError(t, conn.Create(inv).Error)
	return inv
}

func apply(conn *gorm.DB, p domain.Projector, draft domain.EntryDraft) (*domain.Entry, error) {
	var entry *domain.Entry
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = p.Apply(context.Background(), tx, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func reloadInvestor(t *testing.T, conn *gorm.DB, id snowflake.ID) investordomain.Investor {
	t.Helper()
	var inv investordomain.Investor
	require.NoError(t, conn.First(&inv, "id = ?", id).Error)
	return inv
}

func TestApplyDepositCreditsCash(t *testing.T) {
	conn, projector, node := newProjector(t)
	inv := seedInvestor(t, conn, node, investordomain.StatusActive)

	entry, err := apply(conn, projector, domain.EntryDraft{
		InvestorID: inv.ID,
		Type:       domain.EntryDeposit,
		Account:    domain.AccountCash,
		Amount:     100_000,
		SourceType: "deposit",
		SourceID:   node.Generate(),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(100_000), entry.BalanceAfter)
	assert.Equal(t, int64(0), entry.ProfitAfter)

	got := reloadInvestor(t, conn, inv.ID)
	assert.Equal(t, int64(100_000), got.CashBalance)
	assert.Equal(t, int64(100_000), got.TotalInvested)
	assert.Equal(t, int64(0), got.ProfitBalance)
}

func TestApplyDebitBeyondBalance(t *testing.T) {
	conn, projector, node := newProjector(t)
	inv := seedInvestor(t, conn, node, investordomain.StatusActive)

	_, err := apply(conn, projector, domain.EntryDraft{
		InvestorID: inv.ID,
		Type:       domain.EntryDeposit,
		Account:    domain.AccountCash,
		Amount:     50_000,
		SourceType: "deposit",
		SourceID:   node.Generate(),
	})
	require.NoError(t, err)

	_, err = apply(conn, projector, domain.EntryDraft{
		InvestorID: inv.ID,
		Type:       domain.EntryWithdrawal,
		Account:    domain.AccountCash,
		Amount:     60_000,
		SourceType: "withdrawal",
		SourceID:   node.Generate(),
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// The failed debit must leave no trace.
	got := reloadInvestor(t, conn, inv.ID)
	assert.Equal(t, int64(50_000), got.CashBalance)

	var count int64
	require.NoError(t, conn.Model(&domain.Entry{}).Where("investor_id = ?", inv.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestApplyReplaySameSourceIsNoOp(t *testing.T) {
	conn, projector, node := newProjector(t)
	inv := seedInvestor(t, conn, node, investordomain.StatusActive)
	sourceID := node.Generate()

	draft := domain.EntryDraft{
		InvestorID: inv.ID,
		Type:       domain.EntryDeposit,
		Account:    domain.AccountCash,
		Amount:     75_000,
		SourceType: "deposit",
		SourceID:   sourceID,
	}

	first, err := apply(conn, projector, draft)
	require.NoError(t, err)

	second, err := apply(conn, projector, draft)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	got := reloadInvestor(t, conn, inv.ID)
	assert.Equal(t, int64(75_000), got.CashBalance)
	assert.Equal(t, int64(75_000), got.TotalInvested)
}

func TestApplyInactiveInvestor(t *testing.T) {
	conn, projector, node := newProjector(t)
	inv := seedInvestor(t, conn, node, investordomain.StatusPendingVerification)

	_, err := apply(conn, projector, domain.EntryDraft{
		InvestorID: inv.ID,
		Type:       domain.EntryDeposit,
		Account:    domain.AccountCash,
		Amount:     10_000,
		SourceType: "deposit",
		SourceID:   node.Generate(),
	})
	assert.ErrorIs(t, err, investordomain.ErrInvestorNotActive)
}

func TestApplyRejectsMalformedDrafts(t *testing.T) {
	conn, projector, node := newProjector(t)
	inv := seedInvestor(t, conn, node, investordomain.StatusActive)

	_, err := apply(conn, projector, domain.EntryDraft{
		InvestorID: inv.ID,
		Type:       domain.EntryDeposit,
		Account:    domain.AccountCash,
		Amount:     0,
		SourceType: "deposit",
		SourceID:   node.Generate(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = apply(conn, projector, domain.EntryDraft{
		InvestorID: inv.ID,
		Type:       "dividend",
		Account:    domain.AccountCash,
		Amount:     10_000,
		SourceType: "deposit",
		SourceID:   node.Generate(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEntryType)

	_, err = apply(conn, projector, domain.EntryDraft{
		InvestorID: inv.ID,
		Type:       domain.EntryDeposit,
		Account:    "escrow",
		Amount:     10_000,
		SourceType: "deposit",
		SourceID:   node.Generate(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)

	_, err = apply(conn, projector, domain.EntryDraft{
		InvestorID: inv.ID,
		Type:       domain.EntryDeposit,
		Account:    domain.AccountCash,
		Amount:     10_000,
		SourceType: "",
		SourceID:   node.Generate(),
	})
	assert.ErrorIs(t, err, domain.ErrMissingSource)
}

func TestReplayMatchesCachedColumns(t *testing.T) {
	conn, projector, node := newProjector(t)
	inv := seedInvestor(t, conn, node, investordomain.StatusActive)

	drafts := []domain.EntryDraft{
		{Type: domain.EntryDeposit, Account: domain.AccountCash, Amount: 200_000, SourceType: "deposit"},
		{Type: domain.EntryAllocationProduct, Account: domain.AccountCash, Amount: 80_000, SourceType: "product_allocation"},
		{Type: domain.EntryProfitCredit, Account: domain.AccountProfit, Amount: 30_000, SourceType: "profit_distribution"},
		{Type: domain.EntryWithdrawal, Account: domain.AccountProfit, Amount: 20_000, SourceType: "withdrawal"},
	}
	for _, draft := range drafts {
		draft.InvestorID = inv.ID
		draft.SourceID = node.Generate()
		_, err := apply(conn, projector, draft)
		require.NoError(t, err)
	}

	folded, err := projector.Replay(context.Background(), inv.ID)
	require.NoError(t, err)

	got := reloadInvestor(t, conn, inv.ID)
	assert.Equal(t, got.CashBalance, folded.Cash)
	assert.Equal(t, got.ProfitBalance, folded.Profit)
	assert.Equal(t, int64(120_000), folded.Cash)
	assert.Equal(t, int64(10_000), folded.Profit)
}

func TestListByInvestorFiltersByType(t *testing.T) {
	conn, projector, node := newProjector(t)
	inv := seedInvestor(t, conn, node, investordomain.StatusActive)

	for i := 0; i < 3; i++ {
		_, err := apply(conn, projector, domain.EntryDraft{
			InvestorID: inv.ID,
			Type:       domain.EntryDeposit,
			Account:    domain.AccountCash,
			Amount:     10_000,
			SourceType: "deposit",
			SourceID:   node.Generate(),
		})
		require.NoError(t, err)
	}
	_, err := apply(conn, projector, domain.EntryDraft{
		InvestorID: inv.ID,
		Type:       domain.EntryWithdrawal,
		Account:    domain.AccountCash,
		Amount:     5_000,
		SourceType: "withdrawal",
		SourceID:   node.Generate(),
	})
	require.NoError(t, err)

	resp, err := projector.ListByInvestor(context.Background(), domain.ListEntryRequest{
		InvestorID: inv.ID,
		Type:       domain.EntryDeposit,
		Pagination: pagination.Pagination{PageSize: 10},
	})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 3)
	for _, entry := range resp.Entries {
		assert.Equal(t, domain.EntryDeposit, entry.Type)
	}
}
