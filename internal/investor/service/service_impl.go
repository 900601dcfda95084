package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/benangcapital/benang/internal/clock"
	"github.com/benangcapital/benang/internal/investor/domain"
	"github.com/benangcapital/benang/pkg/db"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("investor.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvestorRequest) (*domain.Investor, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrNameRequired
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrEmailRequired
	}

	now := s.clock.Now().UTC()
	investor := domain.Investor{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Status:    domain.StatusPendingVerification,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &investor); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrEmailTaken
		}
		s.log.Error("failed to insert investor", zap.Error(err))
		return nil, err
	}

	return &investor, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Investor, error) {
	investor, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if investor == nil {
		return nil, domain.ErrInvestorNotFound
	}
	return investor, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvestorRequest) (domain.ListInvestorResponse, error) {
	if req.Status != "" && !req.Status.Valid() {
		return domain.ListInvestorResponse{}, domain.ErrInvalidStatus
	}

	var afterID snowflake.ID
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListInvestorResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListInvestorResponse{}, domain.ErrInvalidPageToken
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
		return domain.ListInvestorResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Investor) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	investors := make([]domain.Investor, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		investors = append(investors, *item)
	}

	resp := domain.ListInvestorResponse{Investors: investors}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id snowflake.ID, next domain.InvestorStatus) (*domain.Investor, error) {
	if !next.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	var updated *domain.Investor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		investor, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if investor == nil {
			return domain.ErrInvestorNotFound
		}
		if !investor.Status.CanTransitionTo(next) {
			return domain.ErrInvalidTransition
		}
		if err := s.repo.UpdateStatus(ctx, tx, id, next); err != nil {
			return err
		}
		investor.Status = next
		updated = investor
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("investor status changed",
		zap.Int64("investor_id", id.Int64()),
		zap.String("status", string(next)),
	)
	return updated, nil
}
