package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/benangcapital/benang/internal/clock"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	"github.com/benangcapital/benang/internal/ledger/domain"
	"github.com/benangcapital/benang/internal/observability/metrics"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Investors investordomain.Repository
	Metrics   *metrics.LedgerMetrics
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	investors investordomain.Repository
	metrics   *metrics.LedgerMetrics
}

func New(p Params) domain.Projector {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("ledger.projector"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		investors: p.Investors,
		metrics:   p.Metrics,
	}
}

func (s *Service) Apply(ctx context.Context, tx *gorm.DB, draft domain.EntryDraft) (*domain.Entry, error) {
	if draft.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if !draft.Type.Valid() {
		return nil, domain.ErrInvalidEntryType
	}
	if !draft.Account.Valid() {
		return nil, domain.ErrInvalidAccount
	}
	if strings.TrimSpace(draft.SourceType) == "" || draft.SourceID == 0 {
		return nil, domain.ErrMissingSource
	}

	investor, err := s.investors.FindByIDForUpdate(ctx, tx, draft.InvestorID)
	if err != nil {
		return nil, err
	}
	if investor == nil {
		return nil, investordomain.ErrInvestorNotFound
	}
	if investor.Status != investordomain.StatusActive {
		return nil, investordomain.ErrInvestorNotActive
	}

	cash := investor.CashBalance
	profit := investor.ProfitBalance
	delta := draft.Amount
	if !draft.Type.IsCredit() {
		delta = -delta
	}
	switch draft.Account {
	case domain.AccountCash:
		cash += delta
		if cash < 0 {
			return nil, domain.ErrInsufficientBalance
		}
	case domain.AccountProfit:
		profit += delta
		if profit < 0 {
			return nil, domain.ErrInsufficientBalance
		}
	}

	entry := &domain.Entry{
		ID:           s.genID.Generate(),
		InvestorID:   draft.InvestorID,
		Type:         draft.Type,
		Account:      draft.Account,
		Amount:       draft.Amount,
		BalanceAfter: cash,
		ProfitAfter:  profit,
		SourceType:   draft.SourceType,
		SourceID:     draft.SourceID,
		Note:         draft.Note,
		CreatedAt:    s.clock.Now().UTC(),
	}

	inserted, err := s.repo.InsertIdempotent(ctx, tx, entry)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Same source already projected. Return the stored entry and
		// leave the balances alone.
		existing, err := s.repo.FindBySource(ctx, tx, draft.SourceType, draft.SourceID, draft.InvestorID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, gorm.ErrRecordNotFound
		}
		return existing, nil
	}

	projection := domain.InvestorProjection{
		CashBalance:    cash,
		ProfitBalance:  profit,
		TotalInvested:  investor.TotalInvested,
		TotalProfit:    investor.TotalProfit,
		TotalWithdrawn: investor.TotalWithdrawn,
	}
	switch draft.Type {
	case domain.EntryDeposit:
		projection.TotalInvested += draft.Amount
	case domain.EntryProfitCredit:
		projection.TotalProfit += draft.Amount
	case domain.EntryWithdrawal:
		projection.TotalWithdrawn += draft.Amount
	}

	if err := s.repo.UpdateInvestorProjection(ctx, tx, draft.InvestorID, projection); err != nil {
		return nil, err
	}

	s.metrics.RecordEntry(string(draft.Type))
	s.log.Debug("ledger entry applied",
		zap.Int64("investor_id", draft.InvestorID.Int64()),
		zap.String("type", string(draft.Type)),
		zap.String("account", string(draft.Account)),
		zap.Int64("amount", draft.Amount),
		zap.Int64("balance_after", cash),
		zap.Int64("profit_after", profit),
	)
	return entry, nil
}

func (s *Service) ListByInvestor(ctx context.Context, req domain.ListEntryRequest) (domain.ListEntryResponse, error) {
	var cursor *domain.EntryCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListEntryResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return domain.ListEntryResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListEntryResponse{}, domain.ErrInvalidPageToken
		}
		cursor = &domain.EntryCursor{ID: id, CreatedAt: createdAt}
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
		Type:       req.Type,
		Account:    req.Account,
		Cursor:     cursor,
		Limit:      pageSize,
	})
	if err != nil {
		return domain.ListEntryResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Entry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	entries := make([]domain.Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}

	resp := domain.ListEntryResponse{Entries: entries}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Replay(ctx context.Context, investorID snowflake.ID) (domain.Balances, error) {
	entries, err := s.repo.ListAllAsc(ctx, s.db, investorID)
	if err != nil {
		return domain.Balances{}, err
	}

	var folded domain.Balances
	for _, entry := range entries {
		delta := entry.Amount
		if !entry.Type.IsCredit() {
			delta = -delta
		}
		switch entry.Account {
		case domain.AccountCash:
			folded.Cash += delta
		case domain.AccountProfit:
			folded.Profit += delta
		}
	}
	return folded, nil
}
