package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	auditdomain "github.com/benangcapital/benang/internal/audit/domain"
	"github.com/benangcapital/benang/internal/clock"
	depositdomain "github.com/benangcapital/benang/internal/deposit/domain"
	depositrepo "github.com/benangcapital/benang/internal/deposit/repository"
	depositservice "github.com/benangcapital/benang/internal/deposit/service"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	investorrepo "github.com/benangcapital/benang/internal/investor/repository"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	ledgerrepo "github.com/benangcapital/benang/internal/ledger/repository"
	ledgerservice "github.com/benangcapital/benang/internal/ledger/service"
	"github.com/benangcapital/benang/internal/observability/metrics"
)

var testMetrics = metrics.NewLedgerMetrics()

type auditRecord struct {
	actorType string
	action    string
	metadata  map[string]any
}

// fakeAudit captures audit writes so job side effects are assertable.
type fakeAudit struct {
	records []auditRecord
}

func (f *fakeAudit) AuditLog(_ context.Context, actorType string, _ *string, action string, _ string, _ *string, metadata map[string]any) error {
	f.records = append(f.records, auditRecord{actorType: actorType, action: action, metadata: metadata})
	return nil
}

func (f *fakeAudit) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func (f *fakeAudit) actions() []string {
	out := make([]string, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r.action)
	}
	return out
}

type testEnv struct {
	conn      *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	projector ledgerdomain.Projector
	deposits  depositdomain.Service
	audit     *fakeAudit
	scheduler *Scheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&investordomain.Investor{},
		&ledgerdomain.Entry{},
		&depositdomain.Deposit{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC))

	projector := ledgerservice.New(ledgerservice.Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fake,
		Repo:      ledgerrepo.Provide(),
		Investors: investorrepo.Provide(),
		Metrics:   testMetrics,
	})

	deposits := depositservice.New(depositservice.Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     fake,
		Repo:      depositrepo.Provide(),
		Investors: investorrepo.Provide(),
		Projector: projector,
	})

	audit := &fakeAudit{}
	sched, err := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		Clock:     fake,
		Projector: projector,
		Investors: investorrepo.Provide(),
		Deposits:  deposits,
		Metrics:   testMetrics,
		AuditSvc:  audit,
	})
	require.NoError(t, err)

	return &testEnv{
		conn:      conn,
		node:      node,
		clock:     fake,
		projector: projector,
		deposits:  deposits,
		audit:     audit,
		scheduler: sched,
	}
}

func (e *testEnv) investor(t *testing.T) *investordomain.Investor {
	t.Helper()
	inv := &investordomain.Investor{
		ID:       e.node.Generate(),
		Name:     "Citra Ayu",
		Email:    fmt.Sprintf("citra+%d@benang.test", e.node.Generate().Int64()),
		Status:   investordomain.StatusActive,
		Metadata: datatypes.JSONMap{},
	}
	require.NoError(t, e.conn.Create(inv).Error)
	return inv
}

func (e *testEnv) deposit(t *testing.T, investorID snowflake.ID, gross int64, key string) *depositdomain.Deposit {
	t.Helper()
	dep, err := e.deposits.Create(context.Background(), depositdomain.CreateDepositRequest{
		InvestorID:     investorID,
		GrossAmount:    gross,
		IdempotencyKey: key,
	})
	require.NoError(t, err)
	return dep
}

func TestNewRejectsMissingDeps(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConsistencyCheckDetectsDrift(t *testing.T) {
	env := newTestEnv(t)
	clean := env.investor(t)
	drifted := env.investor(t)

	for _, inv := range []*investordomain.Investor{clean, drifted} {
		err := env.conn.Transaction(func(tx *gorm.DB) error {
			_, err := env.projector.Apply(context.Background(), tx, ledgerdomain.EntryDraft{
				InvestorID: inv.ID,
				Type:       ledgerdomain.EntryDeposit,
				Account:    ledgerdomain.AccountCash,
				Amount:     100_000,
				SourceType: "deposit",
				SourceID:   env.node.Generate(),
			})
			return err
		})
		require.NoError(t, err)
	}

	// A write that bypasses the projector.
	require.NoError(t, env.conn.Exec(
		"UPDATE investors SET cash_balance = cash_balance + 500 WHERE id = ?", drifted.ID,
	).Error)

	require.NoError(t, env.scheduler.ConsistencyCheckJob(context.Background()))

	require.Len(t, env.audit.records, 1)
	record := env.audit.records[0]
	assert.Equal(t, "ledger.balance_drift", record.action)
	assert.Equal(t, "system", record.actorType)
	assert.Equal(t, drifted.ID.String(), record.metadata["investor_id"])
	assert.Equal(t, int64(100_500), record.metadata["cached_cash"])
	assert.Equal(t, int64(100_000), record.metadata["replayed_cash"])
}

func TestConsistencyCheckCleanLedgerIsQuiet(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t)

	err := env.conn.Transaction(func(tx *gorm.DB) error {
		_, err := env.projector.Apply(context.Background(), tx, ledgerdomain.EntryDraft{
			InvestorID: inv.ID,
			Type:       ledgerdomain.EntryDeposit,
			Account:    ledgerdomain.AccountCash,
			Amount:     50_000,
			SourceType: "deposit",
			SourceID:   env.node.Generate(),
		})
		return err
	})
	require.NoError(t, err)

	require.NoError(t, env.scheduler.ConsistencyCheckJob(context.Background()))
	assert.Empty(t, env.audit.records)
}

func TestExpireDepositsJobSweepsStale(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t)

	stale := env.deposit(t, inv.ID, 10_000, "dep-stale")
	env.clock.Advance(25 * time.Hour)
	fresh := env.deposit(t, inv.ID, 20_000, "dep-fresh")

	require.NoError(t, env.scheduler.ExpireDepositsJob(context.Background()))

	got, err := env.deposits.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, depositdomain.StatusExpired, got.Status)

	got, err = env.deposits.GetByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, depositdomain.StatusAwaitingPayment, got.Status)

	assert.Contains(t, env.audit.actions(), "deposit.expired_sweep")
}

func TestRunOnceRespectsEnabledJobs(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t)
	stale := env.deposit(t, inv.ID, 10_000, "dep-disabled")
	env.clock.Advance(25 * time.Hour)

	env.scheduler.cfg.EnabledJobs = []string{"consistency_check"}
	require.NoError(t, env.scheduler.RunOnce(context.Background()))

	// The expiry job was skipped.
	got, err := env.deposits.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, depositdomain.StatusAwaitingPayment, got.Status)

	env.scheduler.cfg.EnabledJobs = nil
	require.NoError(t, env.scheduler.RunOnce(context.Background()))

	got, err = env.deposits.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, depositdomain.StatusExpired, got.Status)
}
