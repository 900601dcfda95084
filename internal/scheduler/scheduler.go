package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/benangcapital/benang/internal/audit/domain"
	auditcontext "github.com/benangcapital/benang/internal/auditcontext"
	"github.com/benangcapital/benang/internal/clock"
	depositdomain "github.com/benangcapital/benang/internal/deposit/domain"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	obsmetrics "github.com/benangcapital/benang/internal/observability/metrics"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Projector ledgerdomain.Projector
	Investors investordomain.Repository
	Deposits  depositdomain.Service
	Metrics   *obsmetrics.LedgerMetrics
	AuditSvc  auditdomain.Service `optional:"true"`
	Config    Config              `optional:"true"`
}

type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	projector ledgerdomain.Projector
	investors investordomain.Repository
	deposits  depositdomain.Service
	metrics   *obsmetrics.LedgerMetrics
	auditSvc  auditdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Projector == nil || p.Investors == nil || p.Deposits == nil || p.Metrics == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		clock:     p.Clock,
		projector: p.Projector,
		investors: p.Investors,
		deposits:  p.Deposits,
		metrics:   p.Metrics,
		auditSvc:  p.AuditSvc,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.metrics.IncJobError(name)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"expire_deposits", func(ctx context.Context) error {
			return s.runJob(ctx, "expire_deposits", 30*time.Second, s.ExpireDepositsJob)
		}},
		{"consistency_check", func(ctx context.Context) error {
			return s.runJob(ctx, "consistency_check", 5*time.Minute, s.ConsistencyCheckJob)
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
