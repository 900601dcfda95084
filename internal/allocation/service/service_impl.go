package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/benangcapital/benang/internal/allocation/domain"
	"github.com/benangcapital/benang/internal/clock"
	equipmentdomain "github.com/benangcapital/benang/internal/equipment/domain"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	productdomain "github.com/benangcapital/benang/internal/product/domain"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

const (
	sourceProductAllocation   = "product_allocation"
	sourceEquipmentAllocation = "equipment_allocation"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Products  productdomain.Repository
	Equipment equipmentdomain.Repository
	Projector ledgerdomain.Projector
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	products  productdomain.Repository
	equipment equipmentdomain.Repository
	projector ledgerdomain.Projector
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("allocation.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		products:  p.Products,
		equipment: p.Equipment,
		projector: p.Projector,
	}
}

// ownershipBps converts an allocated amount into basis points of the
// purchase price, round half up.
func ownershipBps(amount, purchasePrice int64) int64 {
	return (amount*10000 + purchasePrice/2) / purchasePrice
}

func (s *Service) AllocateToProduct(ctx context.Context, req domain.AllocateProductRequest) (*domain.ProductAllocation, error) {
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	if req.UnitPrice < 0 {
		return nil, domain.ErrInvalidAmount
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, domain.ErrIdempotencyKeyMiss
	}

	var result *domain.ProductAllocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.products.FindByID(ctx, tx, req.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return productdomain.ErrProductNotFound
		}
		if product.Status != productdomain.ProductActive {
			return productdomain.ErrProductArchived
		}

		unitPrice := req.UnitPrice
		if unitPrice == 0 {
			unitPrice = product.UnitPrice
		}
		total := unitPrice * req.Quantity
		if total <= 0 {
			return domain.ErrInvalidAmount
		}

		now := s.clock.Now().UTC()
		alloc := domain.ProductAllocation{
			ID:                s.genID.Generate(),
			InvestorID:        req.InvestorID,
			ProductID:         req.ProductID,
			TotalInvestment:   total,
			UnitPrice:         unitPrice,
			Quantity:          req.Quantity,
			QuantityRemaining: req.Quantity,
			IdempotencyKey:    key,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		inserted, err := s.repo.InsertProductAllocation(ctx, tx, &alloc)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := s.repo.FindProductAllocationByKey(ctx, tx, req.InvestorID, key)
			if err != nil {
				return err
			}
			if existing == nil {
				return domain.ErrAllocationNotFound
			}
			result = existing
			return nil
		}

		if _, err := s.projector.Apply(ctx, tx, ledgerdomain.EntryDraft{
			InvestorID: req.InvestorID,
			Type:       ledgerdomain.EntryAllocationProduct,
			Account:    ledgerdomain.AccountCash,
			Amount:     total,
			SourceType: sourceProductAllocation,
			SourceID:   alloc.ID,
			Note:       product.Name,
		}); err != nil {
			return err
		}
		result = &alloc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("product allocation created",
		zap.Int64("investor_id", req.InvestorID.Int64()),
		zap.Int64("product_id", req.ProductID.Int64()),
		zap.Int64("amount", result.TotalInvestment),
		zap.Int64("quantity", result.Quantity),
	)
	return result, nil
}

func (s *Service) AllocateToEquipment(ctx context.Context, req domain.AllocateEquipmentRequest) (*domain.EquipmentAllocation, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, domain.ErrIdempotencyKeyMiss
	}

	var result *domain.EquipmentAllocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Equipment row lock serializes concurrent allocations so the
		// over-allocation check reads a stable sum.
		equipment, err := s.equipment.FindByIDForUpdate(ctx, tx, req.EquipmentID)
		if err != nil {
			return err
		}
		if equipment == nil {
			return equipmentdomain.ErrEquipmentNotFound
		}
		if equipment.Status != equipmentdomain.EquipmentActive {
			return equipmentdomain.ErrEquipmentRetired
		}

		allocated, err := s.repo.SumActiveAllocated(ctx, tx, req.EquipmentID)
		if err != nil {
			return err
		}
		if allocated+req.Amount > equipment.PurchasePrice {
			return domain.ErrOverAllocation
		}

		// Half-up rounding can overshoot on the last share; ownership
		// never totals more than 100%.
		bps := ownershipBps(req.Amount, equipment.PurchasePrice)
		usedBps, err := s.repo.SumActiveInvestmentBps(ctx, tx, req.EquipmentID)
		if err != nil {
			return err
		}
		if headroom := 10000 - usedBps; bps > headroom {
			bps = headroom
		}

		now := s.clock.Now().UTC()
		alloc := domain.EquipmentAllocation{
			ID:              s.genID.Generate(),
			InvestorID:      req.InvestorID,
			EquipmentID:     req.EquipmentID,
			AmountAllocated: req.Amount,
			InvestmentBps:   bps,
			IdempotencyKey:  key,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		inserted, err := s.repo.InsertEquipmentAllocation(ctx, tx, &alloc)
		if err != nil {
			return err
		}
		if !inserted {
			existing, err := s.repo.FindEquipmentAllocationByKey(ctx, tx, req.InvestorID, key)
			if err != nil {
				return err
			}
			if existing == nil {
				return domain.ErrAllocationNotFound
			}
			result = existing
			return nil
		}

		if _, err := s.projector.Apply(ctx, tx, ledgerdomain.EntryDraft{
			InvestorID: req.InvestorID,
			Type:       ledgerdomain.EntryAllocationEquipment,
			Account:    ledgerdomain.AccountCash,
			Amount:     req.Amount,
			SourceType: sourceEquipmentAllocation,
			SourceID:   alloc.ID,
			Note:       equipment.Name,
		}); err != nil {
			return err
		}
		result = &alloc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("equipment allocation created",
		zap.Int64("investor_id", req.InvestorID.Int64()),
		zap.Int64("equipment_id", req.EquipmentID.Int64()),
		zap.Int64("amount", result.AmountAllocated),
		zap.Int64("investment_bps", result.InvestmentBps),
	)
	return result, nil
}

func (s *Service) GetProductAllocation(ctx context.Context, id snowflake.ID) (*domain.ProductAllocation, error) {
	alloc, err := s.repo.FindProductAllocationByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, domain.ErrAllocationNotFound
	}
	return alloc, nil
}

func (s *Service) GetEquipmentAllocation(ctx context.Context, id snowflake.ID) (*domain.EquipmentAllocation, error) {
	alloc, err := s.repo.FindEquipmentAllocationByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, domain.ErrAllocationNotFound
	}
	return alloc, nil
}

func (s *Service) ListProductAllocations(ctx context.Context, req domain.ListProductAllocationRequest) (domain.ListProductAllocationResponse, error) {
	afterID, pageSize, err := decodePage(req.PageToken, req.PageSize)
	if err != nil {
		return domain.ListProductAllocationResponse{}, err
	}

	items, err := s.repo.ListProductAllocations(ctx, s.db, domain.ProductAllocationFilter{
		InvestorID: req.InvestorID,
		ProductID:  req.ProductID,
		AfterID:    afterID,
		Limit:      pageSize + 1,
	})
	if err != nil {
		return domain.ListProductAllocationResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.ProductAllocation) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	allocs := make([]domain.ProductAllocation, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		allocs = append(allocs, *item)
	}

	resp := domain.ListProductAllocationResponse{Allocations: allocs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) ListEquipmentAllocations(ctx context.Context, req domain.ListEquipmentAllocationRequest) (domain.ListEquipmentAllocationResponse, error) {
	afterID, pageSize, err := decodePage(req.PageToken, req.PageSize)
	if err != nil {
		return domain.ListEquipmentAllocationResponse{}, err
	}

	items, err := s.repo.ListEquipmentAllocations(ctx, s.db, domain.EquipmentAllocationFilter{
		InvestorID:  req.InvestorID,
		EquipmentID: req.EquipmentID,
		ActiveOnly:  req.ActiveOnly,
		AfterID:     afterID,
		Limit:       pageSize + 1,
	})
	if err != nil {
		return domain.ListEquipmentAllocationResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.EquipmentAllocation) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	allocs := make([]domain.EquipmentAllocation, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		allocs = append(allocs, *item)
	}

	resp := domain.ListEquipmentAllocationResponse{Allocations: allocs}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func decodePage(token string, pageSize int) (snowflake.ID, int, error) {
	var afterID snowflake.ID
	if strings.TrimSpace(token) != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return 0, 0, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return 0, 0, domain.ErrInvalidPageToken
		}
		afterID = id
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}
	return afterID, pageSize, nil
}
