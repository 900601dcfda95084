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
	"gorm.io/gorm"

	"github.com/benangcapital/benang/internal/clock"
	"github.com/benangcapital/benang/internal/config"
	"github.com/benangcapital/benang/internal/equipment/domain"
	"github.com/benangcapital/benang/internal/equipment/repository"
)

func newService(t *testing.T) (*gorm.DB, domain.Service) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Equipment{}, &domain.JobUsage{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:     conn,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clock.NewSystemClock(),
		Config: config.Config{DefaultInvestorPoolShareBps: 6000},
		Repo:   repository.Provide(),
	})
	return conn, svc
}

func TestCreateEquipmentDefaults(t *testing.T) {
	_, svc := newService(t)

	equipment, err := svc.Create(context.Background(), domain.CreateEquipmentRequest{
		Name:          "Mesin Jahit Industri",
		PurchasePrice: 15_000_000_00,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(15_000_000_00), equipment.CurrentValue)
	assert.Equal(t, int64(6000), equipment.InvestorPoolShareBps)
	assert.Equal(t, domain.BasisCurrentValue, equipment.ExitValuationBasis)
	assert.Equal(t, domain.EquipmentActive, equipment.Status)
}

func TestCreateEquipmentValidation(t *testing.T) {
	_, svc := newService(t)

	_, err := svc.Create(context.Background(), domain.CreateEquipmentRequest{
		Name:          "Mesin Potong",
		PurchasePrice: 100_000,
		// Over 100%.
		InvestorPoolShareBps: 10_500,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPoolShare)

	_, err = svc.Create(context.Background(), domain.CreateEquipmentRequest{
		Name:               "Mesin Potong",
		PurchasePrice:      100_000,
		ExitValuationBasis: "book_value",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidBasis)

	_, err = svc.Create(context.Background(), domain.CreateEquipmentRequest{
		Name:          "   ",
		PurchasePrice: 100_000,
	})
	assert.ErrorIs(t, err, domain.ErrNameRequired)
}

func TestRecordJobUsageComputesNetProfit(t *testing.T) {
	conn, svc := newService(t)

	equipment, err := svc.Create(context.Background(), domain.CreateEquipmentRequest{
		Name:          "Mesin Obras",
		PurchasePrice: 200_000,
	})
	require.NoError(t, err)

	job, err := svc.RecordJobUsage(context.Background(), domain.RecordJobUsageRequest{
		EquipmentID:     equipment.ID,
		Revenue:         50_000,
		MaterialCost:    20_000,
		LaborCost:       10_000,
		MaintenanceCost: 3_000,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(17_000), job.NetProfit)
	assert.False(t, job.ProfitDistributed)
	assert.True(t, strings.HasPrefix(job.Reference, "JOB-"))

	// Maintenance accrues on the equipment immediately; revenue and
	// profit wait for distribution.
	var got domain.Equipment
	require.NoError(t, conn.First(&got, "id = ?", equipment.ID).Error)
	assert.Equal(t, int64(3_000), got.MaintenanceCost)
	assert.Equal(t, int64(0), got.TotalRevenue)
	assert.Equal(t, int64(0), got.TotalProfit)
}

func TestRecordJobUsageLossMakingJob(t *testing.T) {
	_, svc := newService(t)

	equipment, err := svc.Create(context.Background(), domain.CreateEquipmentRequest{
		Name:          "Mesin Press",
		PurchasePrice: 200_000,
	})
	require.NoError(t, err)

	job, err := svc.RecordJobUsage(context.Background(), domain.RecordJobUsageRequest{
		EquipmentID:  equipment.ID,
		Revenue:      10_000,
		MaterialCost: 15_000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-5_000), job.NetProfit)
}

func TestRecordJobUsageDuplicateReference(t *testing.T) {
	_, svc := newService(t)

	equipment, err := svc.Create(context.Background(), domain.CreateEquipmentRequest{
		Name:          "Mesin Bordir",
		PurchasePrice: 200_000,
	})
	require.NoError(t, err)

	_, err = svc.RecordJobUsage(context.Background(), domain.RecordJobUsageRequest{
		EquipmentID: equipment.ID,
		Reference:   "JOB-SERAGAM-01",
		Revenue:     10_000,
	})
	require.NoError(t, err)

	_, err = svc.RecordJobUsage(context.Background(), domain.RecordJobUsageRequest{
		EquipmentID: equipment.ID,
		Reference:   "JOB-SERAGAM-01",
		Revenue:     12_000,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateReference)
}

func TestRecordJobUsageOnRetiredEquipment(t *testing.T) {
	_, svc := newService(t)

	equipment, err := svc.Create(context.Background(), domain.CreateEquipmentRequest{
		Name:          "Mesin Lama",
		PurchasePrice: 200_000,
	})
	require.NoError(t, err)

	retired, err := svc.Retire(context.Background(), equipment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EquipmentRetired, retired.Status)

	// Retiring again is a no-op.
	retired, err = svc.Retire(context.Background(), equipment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EquipmentRetired, retired.Status)

	_, err = svc.RecordJobUsage(context.Background(), domain.RecordJobUsageRequest{
		EquipmentID: equipment.ID,
		Revenue:     10_000,
	})
	assert.ErrorIs(t, err, domain.ErrEquipmentRetired)
}

func TestUpdateCurrentValue(t *testing.T) {
	_, svc := newService(t)

	equipment, err := svc.Create(context.Background(), domain.CreateEquipmentRequest{
		Name:          "Mesin Jahit",
		PurchasePrice: 200_000,
	})
	require.NoError(t, err)

	got, err := svc.UpdateCurrentValue(context.Background(), equipment.ID, 240_000)
	require.NoError(t, err)
	assert.Equal(t, int64(240_000), got.CurrentValue)

	_, err = svc.UpdateCurrentValue(context.Background(), equipment.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}
