package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/benangcapital/benang/internal/clock"
	"github.com/benangcapital/benang/internal/deposit/domain"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	"github.com/benangcapital/benang/pkg/db"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

// sourceType tags the ledger entries this workflow emits.
const sourceType = "deposit"

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Investors investordomain.Repository
	Projector ledgerdomain.Projector
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	investors investordomain.Repository
	projector ledgerdomain.Projector
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("deposit.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		investors: p.Investors,
		projector: p.Projector,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateDepositRequest) (*domain.Deposit, error) {
	if req.GrossAmount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if req.Charges < 0 || req.Charges >= req.GrossAmount {
		return nil, domain.ErrInvalidCharges
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, domain.ErrIdempotencyKeyMiss
	}

	investor, err := s.investors.FindByID(ctx, s.db, req.InvestorID)
	if err != nil {
		return nil, err
	}
	if investor == nil {
		return nil, investordomain.ErrInvestorNotFound
	}
	if investor.Status != investordomain.StatusActive {
		return nil, investordomain.ErrInvestorNotActive
	}

	now := s.clock.Now().UTC()
	deposit := domain.Deposit{
		ID:             s.genID.Generate(),
		InvestorID:     req.InvestorID,
		Reference:      fmt.Sprintf("DEP-%s", ulid.Make().String()),
		GrossAmount:    req.GrossAmount,
		Charges:        req.Charges,
		Amount:         req.GrossAmount - req.Charges,
		PaymentMethod:  strings.TrimSpace(req.PaymentMethod),
		Status:         domain.StatusAwaitingPayment,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &deposit); err != nil {
		if db.IsDuplicateKeyErr(err) {
			existing, findErr := s.repo.FindByIdempotencyKey(ctx, s.db, req.InvestorID, key)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		s.log.Error("failed to insert deposit", zap.Error(err))
		return nil, err
	}
	return &deposit, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Deposit, error) {
	deposit, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if deposit == nil {
		return nil, domain.ErrDepositNotFound
	}
	return deposit, nil
}

func (s *Service) List(ctx context.Context, req domain.ListDepositRequest) (domain.ListDepositResponse, error) {
	var afterID snowflake.ID
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListDepositResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListDepositResponse{}, domain.ErrInvalidPageToken
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
		InvestorID: req.InvestorID,
		Status:     req.Status,
		AfterID:    afterID,
		Limit:      pageSize + 1,
	})
	if err != nil {
		return domain.ListDepositResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Deposit) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	deposits := make([]domain.Deposit, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		deposits = append(deposits, *item)
	}

	resp := domain.ListDepositResponse{Deposits: deposits}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) MarkPaid(ctx context.Context, id snowflake.ID) (*domain.Deposit, error) {
	return s.transition(ctx, id, domain.StatusAwaitingReceipt, func(tx *gorm.DB, deposit *domain.Deposit) error {
		return s.repo.UpdateStatus(ctx, tx, id, domain.StatusAwaitingReceipt)
	})
}

func (s *Service) UploadReceipt(ctx context.Context, id snowflake.ID, receiptURL string) (*domain.Deposit, error) {
	deposit, err := s.transition(ctx, id, domain.StatusPendingConfirmation, func(tx *gorm.DB, deposit *domain.Deposit) error {
		return s.repo.SetReceipt(ctx, tx, id, receiptURL)
	})
	if err != nil {
		return nil, err
	}
	deposit.ReceiptURL = receiptURL
	return deposit, nil
}

func (s *Service) Confirm(ctx context.Context, id snowflake.ID) (*domain.Deposit, error) {
	var confirmed *domain.Deposit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deposit, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if deposit == nil {
			return domain.ErrDepositNotFound
		}
		if deposit.Status == domain.StatusConfirmed {
			confirmed = deposit
			return nil
		}
		if !deposit.Status.CanTransitionTo(domain.StatusConfirmed) {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now().UTC()
		if err := s.repo.SetConfirmed(ctx, tx, id, now); err != nil {
			return err
		}
		if _, err := s.projector.Apply(ctx, tx, ledgerdomain.EntryDraft{
			InvestorID: deposit.InvestorID,
			Type:       ledgerdomain.EntryDeposit,
			Account:    ledgerdomain.AccountCash,
			Amount:     deposit.Amount,
			SourceType: sourceType,
			SourceID:   deposit.ID,
			Note:       deposit.Reference,
		}); err != nil {
			return err
		}
		deposit.Status = domain.StatusConfirmed
		deposit.ConfirmedAt = &now
		confirmed = deposit
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deposit confirmed",
		zap.Int64("deposit_id", id.Int64()),
		zap.Int64("investor_id", confirmed.InvestorID.Int64()),
		zap.Int64("amount", confirmed.Amount),
	)
	return confirmed, nil
}

func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (*domain.Deposit, error) {
	return s.transition(ctx, id, domain.StatusCancelled, func(tx *gorm.DB, deposit *domain.Deposit) error {
		return s.repo.UpdateStatus(ctx, tx, id, domain.StatusCancelled)
	})
}

func (s *Service) ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	expired := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := s.repo.ClaimExpirable(ctx, tx, cutoff, limit)
		if err != nil {
			return err
		}
		for _, deposit := range claimed {
			if err := s.repo.UpdateStatus(ctx, tx, deposit.ID, domain.StatusExpired); err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.log.Info("expired stale deposits", zap.Int("count", expired))
	}
	return expired, nil
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, next domain.DepositStatus, apply func(tx *gorm.DB, deposit *domain.Deposit) error) (*domain.Deposit, error) {
	var updated *domain.Deposit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deposit, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if deposit == nil {
			return domain.ErrDepositNotFound
		}
		if !deposit.Status.CanTransitionTo(next) {
			return domain.ErrInvalidTransition
		}
		if err := apply(tx, deposit); err != nil {
			return err
		}
		deposit.Status = next
		updated = deposit
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
