package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	allocationdomain "github.com/benangcapital/benang/internal/allocation/domain"
	"github.com/benangcapital/benang/internal/clock"
	"github.com/benangcapital/benang/internal/distribution/domain"
	equipmentdomain "github.com/benangcapital/benang/internal/equipment/domain"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	"github.com/benangcapital/benang/internal/observability/metrics"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

// sourceType tags the profit_credit ledger entries. source_id is the job
// usage, so one job can never credit the same investor twice.
const sourceType = "profit_distribution"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Equipment   equipmentdomain.Repository
	Allocations allocationdomain.Repository
	Projector   ledgerdomain.Projector
	Metrics     *metrics.LedgerMetrics
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	equipment   equipmentdomain.Repository
	allocations allocationdomain.Repository
	projector   ledgerdomain.Projector
	metrics     *metrics.LedgerMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("distribution.engine"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		equipment:   p.Equipment,
		allocations: p.Allocations,
		projector:   p.Projector,
		metrics:     p.Metrics,
	}
}

// shareOf applies a basis-point split, round half up.
func shareOf(amount, bps int64) int64 {
	return (amount*bps + 5000) / 10000
}

func (s *Service) DistributeJobProfit(ctx context.Context, jobUsageID snowflake.ID) ([]domain.ProfitDistribution, error) {
	var results []domain.ProfitDistribution
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := s.equipment.FindJobUsageByID(ctx, tx, jobUsageID)
		if err != nil {
			return err
		}
		if job == nil {
			return equipmentdomain.ErrJobUsageNotFound
		}
		if job.NetProfit <= 0 {
			return domain.ErrNothingToDistribute
		}

		// Lock before the claim so the pool membership read below is
		// stable against concurrent allocations and exits.
		equipment, err := s.equipment.FindByIDForUpdate(ctx, tx, job.EquipmentID)
		if err != nil {
			return err
		}
		if equipment == nil {
			return equipmentdomain.ErrEquipmentNotFound
		}

		claimed, err := s.equipment.ClaimJobForDistribution(ctx, tx, jobUsageID)
		if err != nil {
			return err
		}
		if !claimed {
			return domain.ErrAlreadyDistributed
		}

		allocations, err := s.allocations.ListEquipmentAllocations(ctx, tx, allocationdomain.EquipmentAllocationFilter{
			EquipmentID: job.EquipmentID,
			ActiveOnly:  true,
		})
		if err != nil {
			return err
		}

		pool := shareOf(job.NetProfit, equipment.InvestorPoolShareBps)
		now := s.clock.Now().UTC()

		var investorTotal int64
		for _, alloc := range allocations {
			share := shareOf(pool, alloc.InvestmentBps)
			if share <= 0 {
				continue
			}
			investorTotal += share
		}
		// The company keeps its split plus every rounding residue, so
		// the job total always reconciles exactly.
		companyShare := job.NetProfit - investorTotal

		for _, alloc := range allocations {
			share := shareOf(pool, alloc.InvestmentBps)
			if share <= 0 {
				continue
			}

			dist := domain.ProfitDistribution{
				ID:            s.genID.Generate(),
				JobUsageID:    jobUsageID,
				EquipmentID:   job.EquipmentID,
				InvestorID:    alloc.InvestorID,
				AllocationID:  alloc.ID,
				GrossProfit:   job.NetProfit,
				CompanyShare:  companyShare,
				InvestorShare: share,
				CreatedAt:     now,
			}
			if err := s.repo.Insert(ctx, tx, &dist); err != nil {
				return err
			}
			if _, err := s.projector.Apply(ctx, tx, ledgerdomain.EntryDraft{
				InvestorID: alloc.InvestorID,
				Type:       ledgerdomain.EntryProfitCredit,
				Account:    ledgerdomain.AccountProfit,
				Amount:     share,
				SourceType: sourceType,
				SourceID:   jobUsageID,
				Note:       job.Reference,
			}); err != nil {
				return err
			}
			if err := s.allocations.AddProfitReceived(ctx, tx, alloc.ID, share); err != nil {
				return err
			}
			results = append(results, dist)
		}

		if err := s.equipment.SetJobTotals(ctx, tx, jobUsageID, equipmentdomain.JobTotals{
			CompanyProfit:      companyShare,
			InvestorPoolProfit: investorTotal,
			DistributedAt:      now,
		}); err != nil {
			return err
		}
		return s.equipment.AddJobTotals(ctx, tx, job.EquipmentID, job.Revenue, job.NetProfit, 0)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordDistribution()
	s.log.Info("job profit distributed",
		zap.Int64("job_usage_id", jobUsageID.Int64()),
		zap.Int("investors", len(results)),
	)
	return results, nil
}

func (s *Service) List(ctx context.Context, req domain.ListDistributionRequest) (domain.ListDistributionResponse, error) {
	var afterID snowflake.ID
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListDistributionResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListDistributionResponse{}, domain.ErrInvalidPageToken
		}
		afterID = id
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		InvestorID:  req.InvestorID,
		EquipmentID: req.EquipmentID,
		JobUsageID:  req.JobUsageID,
		AfterID:     afterID,
		Limit:       pageSize + 1,
	})
	if err != nil {
		return domain.ListDistributionResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.ProfitDistribution) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	dists := make([]domain.ProfitDistribution, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		dists = append(dists, *item)
	}

	resp := domain.ListDistributionResponse{Distributions: dists}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
