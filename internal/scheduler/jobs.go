package scheduler

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	investordomain "github.com/benangcapital/benang/internal/investor/domain"
)

// ExpireDepositsJob sweeps deposits stuck in awaiting_payment past the
// configured TTL.
func (s *Scheduler) ExpireDepositsJob(ctx context.Context) error {
	cutoff := s.clock.Now().UTC().Add(-s.cfg.DepositTTL)
	expired, err := s.deposits.ExpireStale(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if expired > 0 {
		s.audit(ctx, "deposit.expired_sweep", map[string]any{"count": expired})
	}
	return nil
}

// ConsistencyCheckJob folds every investor's full ledger history and
// compares the result against the cached balance columns. Drift means a
// write bypassed the projector; it is reported, never auto-repaired.
func (s *Scheduler) ConsistencyCheckJob(ctx context.Context) error {
	var afterID snowflake.ID
	for {
		investors, err := s.investors.List(ctx, s.db, investordomain.ListFilter{
			AfterID: afterID,
			Limit:   s.cfg.BatchSize,
		})
		if err != nil {
			return err
		}
		if len(investors) == 0 {
			return nil
		}

		for _, inv := range investors {
			if err := ctx.Err(); err != nil {
				return err
			}
			replayed, err := s.projector.Replay(ctx, inv.ID)
			if err != nil {
				return err
			}
			if replayed.Cash == inv.CashBalance && replayed.Profit == inv.ProfitBalance {
				continue
			}

			s.metrics.RecordBalanceDrift()
			s.log.Error("balance drift detected",
				zap.Int64("investor_id", inv.ID.Int64()),
				zap.Int64("cached_cash", inv.CashBalance),
				zap.Int64("replayed_cash", replayed.Cash),
				zap.Int64("cached_profit", inv.ProfitBalance),
				zap.Int64("replayed_profit", replayed.Profit),
			)
			s.audit(ctx, "ledger.balance_drift", map[string]any{
				"investor_id":     inv.ID.String(),
				"cached_cash":     inv.CashBalance,
				"replayed_cash":   replayed.Cash,
				"cached_profit":   inv.ProfitBalance,
				"replayed_profit": replayed.Profit,
			})
		}

		afterID = investors[len(investors)-1].ID
	}
}

func (s *Scheduler) audit(ctx context.Context, action string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actorID := "scheduler"
	if err := s.auditSvc.AuditLog(ctx, "system", &actorID, action, "scheduler", nil, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}
