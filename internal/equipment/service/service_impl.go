package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/benangcapital/benang/internal/clock"
	"github.com/benangcapital/benang/internal/config"
	"github.com/benangcapital/benang/internal/equipment/domain"
	"github.com/benangcapital/benang/pkg/db"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
	Repo   domain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	defaultShare int64
	repo         domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("equipment.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		defaultShare: p.Config.DefaultInvestorPoolShareBps,
		repo:         p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateEquipmentRequest) (*domain.Equipment, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrNameRequired
	}
	if req.PurchasePrice <= 0 {
		return nil, domain.ErrInvalidPrice
	}

	shareBps := req.InvestorPoolShareBps
	if shareBps == 0 {
		shareBps = s.defaultShare
	}
	if shareBps < 0 || shareBps > 10000 {
		return nil, domain.ErrInvalidPoolShare
	}

	basis := req.ExitValuationBasis
	if basis == "" {
		basis = domain.BasisCurrentValue
	}
	if !basis.Valid() {
		return nil, domain.ErrInvalidBasis
	}

	currentValue := req.CurrentValue
	if currentValue == 0 {
		currentValue = req.PurchasePrice
	}
	if currentValue < 0 {
		return nil, domain.ErrInvalidPrice
	}

	now := s.clock.Now().UTC()
	equipment := domain.Equipment{
		ID:                   s.genID.Generate(),
		Name:                 name,
		PurchasePrice:        req.PurchasePrice,
		CurrentValue:         currentValue,
		InvestorPoolShareBps: shareBps,
		ExitValuationBasis:   basis,
		Status:               domain.EquipmentActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Insert(ctx, s.db, &equipment); err != nil {
		s.log.Error("failed to insert equipment", zap.Error(err))
		return nil, err
	}
	return &equipment, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Equipment, error) {
	equipment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if equipment == nil {
		return nil, domain.ErrEquipmentNotFound
	}
	return equipment, nil
}

func (s *Service) List(ctx context.Context, req domain.ListEquipmentRequest) (domain.ListEquipmentResponse, error) {
	var afterID snowflake.ID
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListEquipmentResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListEquipmentResponse{}, domain.ErrInvalidPageToken
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
		Status:  req.Status,
		AfterID: afterID,
		Limit:   pageSize + 1,
	})
	if err != nil {
		return domain.ListEquipmentResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Equipment) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	equipment := make([]domain.Equipment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		equipment = append(equipment, *item)
	}

	resp := domain.ListEquipmentResponse{Equipment: equipment}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) UpdateCurrentValue(ctx context.Context, id snowflake.ID, value int64) (*domain.Equipment, error) {
	if value <= 0 {
		return nil, domain.ErrInvalidPrice
	}
	equipment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if equipment == nil {
		return nil, domain.ErrEquipmentNotFound
	}
	if err := s.repo.UpdateCurrentValue(ctx, s.db, id, value); err != nil {
		return nil, err
	}
	equipment.CurrentValue = value
	return equipment, nil
}

func (s *Service) Retire(ctx context.Context, id snowflake.ID) (*domain.Equipment, error) {
	equipment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if equipment == nil {
		return nil, domain.ErrEquipmentNotFound
	}
	if equipment.Status == domain.EquipmentRetired {
		return equipment, nil
	}
	if err := s.repo.UpdateStatus(ctx, s.db, id, domain.EquipmentRetired); err != nil {
		return nil, err
	}
	equipment.Status = domain.EquipmentRetired
	return equipment, nil
}

func (s *Service) RecordJobUsage(ctx context.Context, req domain.RecordJobUsageRequest) (*domain.JobUsage, error) {
	if req.Revenue <= 0 {
		return nil, domain.ErrInvalidRevenue
	}
	if req.MaterialCost < 0 || req.LaborCost < 0 || req.MaintenanceCost < 0 {
		return nil, domain.ErrInvalidCost
	}

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = fmt.Sprintf("JOB-%s", ulid.Make().String())
	}

	var created *domain.JobUsage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		equipment, err := s.repo.FindByIDForUpdate(ctx, tx, req.EquipmentID)
		if err != nil {
			return err
		}
		if equipment == nil {
			return domain.ErrEquipmentNotFound
		}
		if equipment.Status != domain.EquipmentActive {
			return domain.ErrEquipmentRetired
		}

		job := domain.JobUsage{
			ID:              s.genID.Generate(),
			EquipmentID:     req.EquipmentID,
			Reference:       reference,
			Revenue:         req.Revenue,
			MaterialCost:    req.MaterialCost,
			LaborCost:       req.LaborCost,
			MaintenanceCost: req.MaintenanceCost,
			NetProfit:       req.Revenue - req.MaterialCost - req.LaborCost - req.MaintenanceCost,
			CreatedAt:       s.clock.Now().UTC(),
		}
		if err := s.repo.InsertJobUsage(ctx, tx, &job); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateReference
			}
			return err
		}
		// Revenue and profit accumulate on the equipment at
		// distribution time; maintenance accrues immediately.
		if req.MaintenanceCost > 0 {
			if err := s.repo.AddJobTotals(ctx, tx, req.EquipmentID, 0, 0, req.MaintenanceCost); err != nil {
				return err
			}
		}
		created = &job
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("job usage recorded",
		zap.Int64("equipment_id", req.EquipmentID.Int64()),
		zap.String("reference", reference),
		zap.Int64("net_profit", created.NetProfit),
	)
	return created, nil
}

func (s *Service) GetJobUsage(ctx context.Context, id snowflake.ID) (*domain.JobUsage, error) {
	job, err := s.repo.FindJobUsageByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, domain.ErrJobUsageNotFound
	}
	return job, nil
}

func (s *Service) ListJobUsages(ctx context.Context, req domain.ListJobUsageRequest) (domain.ListJobUsageResponse, error) {
	var afterID snowflake.ID
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListJobUsageResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListJobUsageResponse{}, domain.ErrInvalidPageToken
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

	items, err := s.repo.ListJobUsages(ctx, s.db, domain.JobUsageFilter{
		EquipmentID: req.EquipmentID,
		Distributed: req.Distributed,
		AfterID:     afterID,
		Limit:       pageSize + 1,
	})
	if err != nil {
		return domain.ListJobUsageResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.JobUsage) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	jobs := make([]domain.JobUsage, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		jobs = append(jobs, *item)
	}

	resp := domain.ListJobUsageResponse{JobUsages: jobs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
