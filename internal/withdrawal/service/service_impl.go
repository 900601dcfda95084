package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	allocationdomain "github.com/benangcapital/benang/internal/allocation/domain"
	"github.com/benangcapital/benang/internal/clock"
	equipmentdomain "github.com/benangcapital/benang/internal/equipment/domain"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	"github.com/benangcapital/benang/internal/withdrawal/domain"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

// sourceType tags the ledger entries settled withdrawals emit; the
// request ID is the source_id, so a request can never settle twice.
const sourceType = "withdrawal"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Investors   investordomain.Repository
	Allocations allocationdomain.Repository
	Equipment   equipmentdomain.Repository
	Projector   ledgerdomain.Projector
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	investors   investordomain.Repository
	allocations allocationdomain.Repository
	equipment   equipmentdomain.Repository
	projector   ledgerdomain.Projector
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("withdrawal.gate"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		investors:   p.Investors,
		allocations: p.Allocations,
		equipment:   p.Equipment,
		projector:   p.Projector,
	}
}

// capitalReturn prices a partial product exit, round half up.
func capitalReturn(totalInvestment, quantity, totalQuantity int64) int64 {
	return (totalInvestment*quantity + totalQuantity/2) / totalQuantity
}

// exitPayout prices a full equipment-share exit against the basis value,
// round half up.
func exitPayout(basisValue, investmentBps int64) int64 {
	return (basisValue*investmentBps + 5000) / 10000
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.WithdrawalRequest, error) {
	if !req.Type.Valid() {
		return nil, domain.ErrInvalidType
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

	request := domain.WithdrawalRequest{
		ID:             s.genID.Generate(),
		InvestorID:     req.InvestorID,
		Reference:      fmt.Sprintf("WDR-%s", ulid.Make().String()),
		Type:           req.Type,
		Status:         domain.StatusPending,
		IdempotencyKey: key,
	}

	switch req.Type {
	case domain.TypeCash:
		if req.Amount <= 0 {
			return nil, domain.ErrInvalidAmount
		}
		if req.Amount > investor.CashBalance {
			return nil, ledgerdomain.ErrInsufficientBalance
		}
		request.Amount = req.Amount

	case domain.TypeProfit:
		if req.Amount <= 0 {
			return nil, domain.ErrInvalidAmount
		}
		if req.Amount > investor.ProfitBalance {
			return nil, ledgerdomain.ErrInsufficientBalance
		}
		request.Amount = req.Amount

	case domain.TypeProduct:
		if req.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		alloc, err := s.allocations.FindProductAllocationByID(ctx, s.db, req.ProductAllocationID)
		if err != nil {
			return nil, err
		}
		if alloc == nil {
			return nil, allocationdomain.ErrAllocationNotFound
		}
		if alloc.InvestorID != req.InvestorID {
			return nil, domain.ErrNotAllocationOwner
		}
		if req.Quantity > alloc.QuantityRemaining {
			return nil, domain.ErrInsufficientQuantity
		}
		request.ProductAllocationID = alloc.ID
		request.Quantity = req.Quantity
		request.Amount = capitalReturn(alloc.TotalInvestment, req.Quantity, alloc.Quantity)

	case domain.TypeEquipmentShare:
		alloc, err := s.allocations.FindEquipmentAllocationByID(ctx, s.db, req.EquipmentAllocationID)
		if err != nil {
			return nil, err
		}
		if alloc == nil {
			return nil, allocationdomain.ErrAllocationNotFound
		}
		if alloc.InvestorID != req.InvestorID {
			return nil, domain.ErrNotAllocationOwner
		}
		if alloc.HasExited {
			return nil, domain.ErrAllocationExited
		}
		equipment, err := s.equipment.FindByID(ctx, s.db, alloc.EquipmentID)
		if err != nil {
			return nil, err
		}
		if equipment == nil {
			return nil, equipmentdomain.ErrEquipmentNotFound
		}
		request.EquipmentAllocationID = alloc.ID
		request.Amount = exitPayout(s.basisValue(equipment), alloc.InvestmentBps)
	}

	now := s.clock.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now

	inserted, err := s.repo.Insert(ctx, s.db, &request)
	if err != nil {
		return nil, err
	}
	if !inserted {
		existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, req.InvestorID, key)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, domain.ErrWithdrawalNotFound
		}
		return existing, nil
	}

	s.log.Info("withdrawal submitted",
		zap.Int64("request_id", request.ID.Int64()),
		zap.Int64("investor_id", req.InvestorID.Int64()),
		zap.String("type", string(req.Type)),
		zap.Int64("amount", request.Amount),
	)
	return &request, nil
}

func (s *Service) Approve(ctx context.Context, id snowflake.ID, approvedAmount int64, decidedBy string) (*domain.WithdrawalRequest, error) {
	var approved *domain.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if request == nil {
			return domain.ErrWithdrawalNotFound
		}
		if request.Status != domain.StatusPending {
			return domain.ErrInvalidTransition
		}

		settled, err := s.settle(ctx, tx, request, approvedAmount)
		if err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		if err := s.repo.Decide(ctx, tx, id, domain.Decision{
			Status:         domain.StatusApproved,
			ApprovedAmount: settled,
			DecidedAt:      now,
			DecidedBy:      decidedBy,
		}); err != nil {
			return err
		}
		request.Status = domain.StatusApproved
		request.ApprovedAmount = settled
		request.DecidedAt = &now
		request.DecidedBy = decidedBy
		approved = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("withdrawal approved",
		zap.Int64("request_id", id.Int64()),
		zap.Int64("investor_id", approved.InvestorID.Int64()),
		zap.String("type", string(approved.Type)),
		zap.Int64("approved_amount", approved.ApprovedAmount),
	)
	return approved, nil
}

// settle re-validates the request against current state and moves the
// money. Returns the settled amount.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, request *domain.WithdrawalRequest, approvedAmount int64) (int64, error) {
	switch request.Type {
	case domain.TypeCash, domain.TypeProfit:
		amount := request.Amount
		if approvedAmount > 0 {
			if approvedAmount > request.Amount {
				return 0, domain.ErrInvalidAmount
			}
			amount = approvedAmount
		}
		account := ledgerdomain.AccountCash
		if request.Type == domain.TypeProfit {
			account = ledgerdomain.AccountProfit
		}
		_, err := s.projector.Apply(ctx, tx, ledgerdomain.EntryDraft{
			InvestorID: request.InvestorID,
			Type:       ledgerdomain.EntryWithdrawal,
			Account:    account,
			Amount:     amount,
			SourceType: sourceType,
			SourceID:   request.ID,
			Note:       request.Reference,
		})
		if err != nil {
			// The submission-time balance no longer covers the request.
			if errors.Is(err, ledgerdomain.ErrInsufficientBalance) {
				return 0, domain.ErrStaleBalance
			}
			return 0, err
		}
		return amount, nil

	case domain.TypeProduct:
		alloc, err := s.allocations.FindProductAllocationByIDForUpdate(ctx, tx, request.ProductAllocationID)
		if err != nil {
			return 0, err
		}
		if alloc == nil {
			return 0, allocationdomain.ErrAllocationNotFound
		}
		if request.Quantity > alloc.QuantityRemaining {
			return 0, domain.ErrInsufficientQuantity
		}
		amount := capitalReturn(alloc.TotalInvestment, request.Quantity, alloc.Quantity)
		if err := s.allocations.ReturnCapital(ctx, tx, alloc.ID, request.Quantity, amount); err != nil {
			return 0, err
		}
		if _, err := s.projector.Apply(ctx, tx, ledgerdomain.EntryDraft{
			InvestorID: request.InvestorID,
			Type:       ledgerdomain.EntryRefund,
			Account:    ledgerdomain.AccountCash,
			Amount:     amount,
			SourceType: sourceType,
			SourceID:   request.ID,
			Note:       request.Reference,
		}); err != nil {
			return 0, err
		}
		return amount, nil

	case domain.TypeEquipmentShare:
		alloc, err := s.allocations.FindEquipmentAllocationByIDForUpdate(ctx, tx, request.EquipmentAllocationID)
		if err != nil {
			return 0, err
		}
		if alloc == nil {
			return 0, allocationdomain.ErrAllocationNotFound
		}
		if alloc.HasExited {
			return 0, domain.ErrAllocationExited
		}
		equipment, err := s.equipment.FindByIDForUpdate(ctx, tx, alloc.EquipmentID)
		if err != nil {
			return 0, err
		}
		if equipment == nil {
			return 0, equipmentdomain.ErrEquipmentNotFound
		}
		amount := exitPayout(s.basisValue(equipment), alloc.InvestmentBps)
		if err := s.allocations.MarkExited(ctx, tx, alloc.ID, s.clock.Now().UTC()); err != nil {
			return 0, err
		}
		if _, err := s.projector.Apply(ctx, tx, ledgerdomain.EntryDraft{
			InvestorID: request.InvestorID,
			Type:       ledgerdomain.EntryRefund,
			Account:    ledgerdomain.AccountCash,
			Amount:     amount,
			SourceType: sourceType,
			SourceID:   request.ID,
			Note:       request.Reference,
		}); err != nil {
			return 0, err
		}
		return amount, nil
	}
	return 0, domain.ErrInvalidType
}

func (s *Service) basisValue(equipment *equipmentdomain.Equipment) int64 {
	if equipment.ExitValuationBasis == equipmentdomain.BasisPurchasePrice {
		return equipment.PurchasePrice
	}
	return equipment.CurrentValue
}

func (s *Service) Reject(ctx context.Context, id snowflake.ID, reason, decidedBy string) (*domain.WithdrawalRequest, error) {
	var rejected *domain.WithdrawalRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		request, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if request == nil {
			return domain.ErrWithdrawalNotFound
		}
		if request.Status != domain.StatusPending {
			return domain.ErrInvalidTransition
		}

		now := s.clock.Now().UTC()
		if err := s.repo.Decide(ctx, tx, id, domain.Decision{
			Status:    domain.StatusRejected,
			Reason:    reason,
			DecidedAt: now,
			DecidedBy: decidedBy,
		}); err != nil {
			return err
		}
		request.Status = domain.StatusRejected
		request.Reason = reason
		request.DecidedAt = &now
		request.DecidedBy = decidedBy
		rejected = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.WithdrawalRequest, error) {
	request, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, domain.ErrWithdrawalNotFound
	}
	return request, nil
}

func (s *Service) List(ctx context.Context, req domain.ListWithdrawalRequest) (domain.ListWithdrawalResponse, error) {
	var afterID snowflake.ID
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListWithdrawalResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListWithdrawalResponse{}, domain.ErrInvalidPageToken
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
		Type:       req.Type,
		AfterID:    afterID,
		Limit:      pageSize + 1,
	})
	if err != nil {
		return domain.ListWithdrawalResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.WithdrawalRequest) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	withdrawals := make([]domain.WithdrawalRequest, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		withdrawals = append(withdrawals, *item)
	}

	resp := domain.ListWithdrawalResponse{Withdrawals: withdrawals}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
