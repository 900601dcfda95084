package statement

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/benangcapital/benang/internal/clock"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

// maxEntries caps how much history one statement renders.
const maxEntries = 1000

var ErrNoHistory = errors.New("no_transaction_history")

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Investors investordomain.Service
	Projector ledgerdomain.Projector
}

// Service renders the per-investor account statement PDF: balances
// header plus the full transaction table, newest first.
type Service struct {
	log       *zap.Logger
	clock     clock.Clock
	investors investordomain.Service
	projector ledgerdomain.Projector
}

func New(p Params) *Service {
	return &Service{
		log:       p.Log.Named("statement.service"),
		clock:     p.Clock,
		investors: p.Investors,
		projector: p.Projector,
	}
}

func (s *Service) Generate(ctx context.Context, investorID snowflake.ID) (io.Reader, error) {
	investor, err := s.investors.GetByID(ctx, investorID)
	if err != nil {
		return nil, err
	}

	entries, err := s.collectEntries(ctx, investorID)
	if err != nil {
		return nil, err
	}

	reader, err := render(investor, entries, s.clock.Now().UTC())
	if err != nil {
		s.log.Error("failed to render statement",
			zap.Int64("investor_id", investorID.Int64()),
			zap.Error(err),
		)
		return nil, err
	}
	return reader, nil
}

func (s *Service) collectEntries(ctx context.Context, investorID snowflake.ID) ([]ledgerdomain.Entry, error) {
	var (
		entries []ledgerdomain.Entry
		token   string
	)
	for len(entries) < maxEntries {
		resp, err := s.projector.ListByInvestor(ctx, ledgerdomain.ListEntryRequest{
			InvestorID: investorID,
			Pagination: pagination.Pagination{PageToken: token, PageSize: 250},
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, resp.Entries...)
		if !resp.PageInfo.HasMore {
			break
		}
		token = resp.PageInfo.NextPageToken
	}
	return entries, nil
}

// periodOf reports the statement coverage from oldest to newest entry.
func periodOf(entries []ledgerdomain.Entry, now time.Time) (time.Time, time.Time) {
	if len(entries) == 0 {
		return now, now
	}
	// Entries arrive newest first.
	return entries[len(entries)-1].CreatedAt, entries[0].CreatedAt
}
