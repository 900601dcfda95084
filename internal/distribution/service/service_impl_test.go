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

	allocationdomain "github.com/benangcapital/benang/internal/allocation/domain"
	allocationrepo "github.com/benangcapital/benang/internal/allocation/repository"
	"github.com/benangcapital/benang/internal/clock"
	"github.com/benangcapital/benang/internal/distribution/domain"
	"github.com/benangcapital/benang/internal/distribution/repository"
	equipmentdomain "github.com/benangcapital/benang/internal/equipment/domain"
	equipmentrepo "github.com/benangcapital/benang/internal/equipment/repository"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	investorrepo "github.com/benangcapital/benang/internal/investor/repository"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	ledgerrepo "github.com/benangcapital/benang/internal/ledger/repository"
	ledgerservice "github.com/benangcapital/benang/internal/ledger/service"
	"github.com/benangcapital/benang/internal/observability/metrics"
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
		&equipmentdomain.JobUsage{},
		&allocationdomain.EquipmentAllocation{},
		&domain.ProfitDistribution{},
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
		Equipment:   equipmentrepo.Provide(),
		Allocations: allocationrepo.Provide(),
		Projector:   projector,
		Metrics:     testMetrics,
	})
	return &testEnv{conn: conn, node: node, svc: svc}
}

func (e *testEnv) investor(t *testing.T, status investordomain.InvestorStatus) *investordomain.Investor {
	t.Helper()
	inv := &investordomain.Investor{
		ID:       e.node.Generate(),
		Name:     "Budi Santoso",
		Email:    fmt.Sprintf("budi+%d@benang.test", e.node.Generate().Int64()),
		Status:   status,
		Metadata: datatypes.JSONMap{},
	}
	require.NoError(t, e.conn.Create(inv).Error)
	return inv
}

func (e *testEnv) equipment(t *testing.T, poolShareBps int64) *equipmentdomain.Equipment {
	t.Helper()
	eq := &equipmentdomain.Equipment{
		ID:                   e.node.Generate(),
		Name:                 "Mesin Obras",
		PurchasePrice:        200_000,
		CurrentValue:         200_000,
		InvestorPoolShareBps: poolShareBps,
		ExitValuationBasis:   equipmentdomain.BasisCurrentValue,
		Status:               equipmentdomain.EquipmentActive,
	}
	require.NoError(t, e.conn.Create(eq).Error)
	return eq
}

func (e *testEnv) allocation(t *testing.T, investorID, equipmentID snowflake.ID, bps int64, exited bool) *allocationdomain.EquipmentAllocation {
	t.Helper()
	alloc := &allocationdomain.EquipmentAllocation{
		ID:              e.node.Generate(),
		InvestorID:      investorID,
		EquipmentID:     equipmentID,
		AmountAllocated: bps * 20, // of the 200_000 purchase price
		InvestmentBps:   bps,
		HasExited:       exited,
		IdempotencyKey:  fmt.Sprintf("alloc-%d", e.node.Generate().Int64()),
	}
	require.NoError(t, e.conn.Create(alloc).Error)
	return alloc
}

func (e *testEnv) jobUsage(t *testing.T, equipmentID snowflake.ID, revenue, netProfit int64) *equipmentdomain.JobUsage {
	t.Helper()
	job := &equipmentdomain.JobUsage{
		ID:          e.node.Generate(),
		EquipmentID: equipmentID,
		Reference:   fmt.Sprintf("JOB-%d", e.node.Generate().Int64()),
		Revenue:     revenue,
		NetProfit:   netProfit,
	}
	require.NoError(t, e.conn.Create(job).Error)
	return job
}

func TestDistributeJobProfitSplitsByBps(t *testing.T) {
	env := newTestEnv(t)
	first := env.investor(t, investordomain.StatusActive)
	second := env.investor(t, investordomain.StatusActive)
	exited := env.investor(t, investordomain.StatusActive)
	eq := env.equipment(t, 5000)

	allocFirst := env.allocation(t, first.ID, eq.ID, 5000, false)
	allocSecond := env.allocation(t, second.ID, eq.ID, 3000, false)
	env.allocation(t, exited.ID, eq.ID, 1000, true)

	job := env.jobUsage(t, eq.ID, 20_000, 17_000)

	results, err := env.svc.DistributeJobProfit(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// 50% pool share of 17_000 is 8_500; 5000 bps of that is 4_250,
	// 3000 bps is 2_550. The company keeps the rest: 10_200.
	shares := map[snowflake.ID]int64{}
	var total int64
	for _, dist := range results {
		shares[dist.InvestorID] = dist.InvestorShare
		total += dist.InvestorShare
		assert.Equal(t, int64(10_200), dist.CompanyShare)
		assert.Equal(t, int64(17_000), dist.GrossProfit)
	}
	assert.Equal(t, int64(4_250), shares[first.ID])
	assert.Equal(t, int64(2_550), shares[second.ID])
	assert.Equal(t, job.NetProfit, total+10_200)

	var firstInv investordomain.Investor
	require.NoError(t, env.conn.First(&firstInv, "id = ?", first.ID).Error)
	assert.Equal(t, int64(4_250), firstInv.ProfitBalance)
	assert.Equal(t, int64(4_250), firstInv.TotalProfit)

	var exitedInv investordomain.Investor
	require.NoError(t, env.conn.First(&exitedInv, "id = ?", exited.ID).Error)
	assert.Equal(t, int64(0), exitedInv.ProfitBalance)

	var gotJob equipmentdomain.JobUsage
	require.NoError(t, env.conn.First(&gotJob, "id = ?", job.ID).Error)
	assert.True(t, gotJob.ProfitDistributed)
	assert.Equal(t, int64(10_200), gotJob.CompanyProfit)
	assert.Equal(t, int64(6_800), gotJob.InvestorPoolProfit)
	require.NotNil(t, gotJob.DistributedAt)

	var gotAlloc allocationdomain.EquipmentAllocation
	require.NoError(t, env.conn.First(&gotAlloc, "id = ?", allocFirst.ID).Error)
	assert.Equal(t, int64(4_250), gotAlloc.TotalProfitReceived)
	var gotAllocSecond allocationdomain.EquipmentAllocation
	require.NoError(t, env.conn.First(&gotAllocSecond, "id = ?", allocSecond.ID).Error)
	assert.Equal(t, int64(2_550), gotAllocSecond.TotalProfitReceived)

	var gotEq equipmentdomain.Equipment
	require.NoError(t, env.conn.First(&gotEq, "id = ?", eq.ID).Error)
	assert.Equal(t, int64(20_000), gotEq.TotalRevenue)
	assert.Equal(t, int64(17_000), gotEq.TotalProfit)
}

func TestDistributeJobProfitAlreadyDistributed(t *testing.T) {
	env := newTestEnv(t)
	inv := env.investor(t, investordomain.StatusActive)
	eq := env.equipment(t, 5000)
	env.allocation(t, inv.ID, eq.ID, 5000, false)
	job := env.jobUsage(t, eq.ID, 20_000, 17_000)

	_, err := env.svc.DistributeJobProfit(context.Background(), job.ID)
	require.NoError(t, err)

	_, err = env.svc.DistributeJobProfit(context.Background(), job.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyDistributed)

	// Balances were credited exactly once.
	var got investordomain.Investor
	require.NoError(t, env.conn.First(&got, "id = ?", inv.ID).Error)
	assert.Equal(t, int64(4_250), got.ProfitBalance)
}

func TestDistributeJobProfitNothingToDistribute(t *testing.T) {
	env := newTestEnv(t)
	eq := env.equipment(t, 5000)
	job := env.jobUsage(t, eq.ID, 10_000, -2_000)

	_, err := env.svc.DistributeJobProfit(context.Background(), job.ID)
	assert.ErrorIs(t, err, domain.ErrNothingToDistribute)
}

func TestDistributeJobProfitSuspendedInvestorFailsWhole(t *testing.T) {
	env := newTestEnv(t)
	active := env.investor(t, investordomain.StatusActive)
	suspended := env.investor(t, investordomain.StatusSuspended)
	eq := env.equipment(t, 5000)
	env.allocation(t, active.ID, eq.ID, 5000, false)
	env.allocation(t, suspended.ID, eq.ID, 3000, false)
	job := env.jobUsage(t, eq.ID, 20_000, 17_000)

	_, err := env.svc.DistributeJobProfit(context.Background(), job.ID)
	assert.ErrorIs(t, err, investordomain.ErrInvestorNotActive)

	// The whole run rolls back; nobody got paid and the job stays
	// claimable.
	var got investordomain.Investor
	require.NoError(t, env.conn.First(&got, "id = ?", active.ID).Error)
	assert.Equal(t, int64(0), got.ProfitBalance)

	var gotJob equipmentdomain.JobUsage
	require.NoError(t, env.conn.First(&gotJob, "id = ?", job.ID).Error)
	assert.False(t, gotJob.ProfitDistributed)
}

func TestDistributeJobProfitUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.DistributeJobProfit(context.Background(), env.node.Generate())
	assert.ErrorIs(t, err, equipmentdomain.ErrJobUsageNotFound)
}
