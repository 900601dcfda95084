package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/benangcapital/benang/internal/allocation"
	allocationdomain "github.com/benangcapital/benang/internal/allocation/domain"
	"github.com/benangcapital/benang/internal/audit"
	auditdomain "github.com/benangcapital/benang/internal/audit/domain"
	"github.com/benangcapital/benang/internal/authorization"
	"github.com/benangcapital/benang/internal/config"
	"github.com/benangcapital/benang/internal/deposit"
	depositdomain "github.com/benangcapital/benang/internal/deposit/domain"
	"github.com/benangcapital/benang/internal/distribution"
	distributiondomain "github.com/benangcapital/benang/internal/distribution/domain"
	"github.com/benangcapital/benang/internal/equipment"
	equipmentdomain "github.com/benangcapital/benang/internal/equipment/domain"
	"github.com/benangcapital/benang/internal/investor"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	"github.com/benangcapital/benang/internal/ledger"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	"github.com/benangcapital/benang/internal/observability"
	obsmiddleware "github.com/benangcapital/benang/internal/observability/logger"
	obsmetrics "github.com/benangcapital/benang/internal/observability/metrics"
	obstracing "github.com/benangcapital/benang/internal/observability/tracing"
	"github.com/benangcapital/benang/internal/product"
	productdomain "github.com/benangcapital/benang/internal/product/domain"
	"github.com/benangcapital/benang/internal/ratelimit"
	"github.com/benangcapital/benang/internal/statement"
	"github.com/benangcapital/benang/internal/withdrawal"
	withdrawaldomain "github.com/benangcapital/benang/internal/withdrawal/domain"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	investor.Module,
	ledger.Module,
	product.Module,
	equipment.Module,
	deposit.Module,
	allocation.Module,
	distribution.Module,
	withdrawal.Module,
	statement.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	genID           *snowflake.Node
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	investorSvc     investordomain.Service
	depositSvc      depositdomain.Service
	productSvc      productdomain.Service
	equipmentSvc    equipmentdomain.Service
	allocationSvc   allocationdomain.Service
	distributionSvc distributiondomain.Service
	withdrawalSvc   withdrawaldomain.Service
	projector       ledgerdomain.Projector
	statementSvc    *statement.Service
	mutationGuard   mutationLimiter
}

// mutationLimiter is the slice of the redis mutation guard the router
// consumes.
type mutationLimiter interface {
	Enabled() bool
	AllowInvestor(ctx context.Context, actor string) (*ratelimit.Result, error)
	TryLockInvestor(ctx context.Context, actor string) (string, bool, error)
	ReleaseInvestor(ctx context.Context, actor, token string) error
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	GenID           *snowflake.Node
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	InvestorSvc     investordomain.Service
	DepositSvc      depositdomain.Service
	ProductSvc      productdomain.Service
	EquipmentSvc    equipmentdomain.Service
	AllocationSvc   allocationdomain.Service
	DistributionSvc distributiondomain.Service
	WithdrawalSvc   withdrawaldomain.Service
	Projector       ledgerdomain.Projector
	StatementSvc    *statement.Service
	MutationGuard   *ratelimit.MutationGuard `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		genID:           p.GenID,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		investorSvc:     p.InvestorSvc,
		depositSvc:      p.DepositSvc,
		productSvc:      p.ProductSvc,
		equipmentSvc:    p.EquipmentSvc,
		allocationSvc:   p.AllocationSvc,
		distributionSvc: p.DistributionSvc,
		withdrawalSvc:   p.WithdrawalSvc,
		projector:       p.Projector,
		statementSvc:    p.StatementSvc,
	}
	if p.MutationGuard != nil {
		svc.mutationGuard = p.MutationGuard
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1", s.ActorRequired())

	// -------- Investors --------
	api.POST("/investors", s.authorize(authorization.ObjectInvestor, authorization.ActionCreate), s.CreateInvestor)
	api.GET("/investors", s.authorize(authorization.ObjectInvestor, authorization.ActionView), s.ListInvestors)
	api.GET("/investors/:id", s.authorize(authorization.ObjectInvestor, authorization.ActionView), s.GetInvestorByID)
	api.POST("/investors/:id/status", s.authorize(authorization.ObjectInvestor, authorization.ActionInvestorActivate), s.UpdateInvestorStatus)
	api.GET("/investors/:id/transactions", s.authorize(authorization.ObjectLedger, authorization.ActionView), s.ListInvestorTransactions)
	api.GET("/investors/:id/balances", s.authorize(authorization.ObjectLedger, authorization.ActionView), s.GetInvestorBalances)
	api.GET("/investors/:id/statement", s.authorize(authorization.ObjectStatement, authorization.ActionView), s.DownloadStatement)

	// -------- Deposits --------
	api.POST("/deposits", s.authorize(authorization.ObjectDeposit, authorization.ActionCreate), s.MutationRateLimit(), s.CreateDeposit)
	api.GET("/deposits", s.authorize(authorization.ObjectDeposit, authorization.ActionView), s.ListDeposits)
	api.GET("/deposits/:id", s.authorize(authorization.ObjectDeposit, authorization.ActionView), s.GetDepositByID)
	api.POST("/deposits/:id/paid", s.authorize(authorization.ObjectDeposit, authorization.ActionUpdate), s.MarkDepositPaid)
	api.POST("/deposits/:id/receipt", s.authorize(authorization.ObjectDeposit, authorization.ActionUpdate), s.UploadDepositReceipt)
	api.POST("/deposits/:id/confirm", s.authorize(authorization.ObjectDeposit, authorization.ActionDepositConfirm), s.ConfirmDeposit)
	api.POST("/deposits/:id/cancel", s.authorize(authorization.ObjectDeposit, authorization.ActionDepositCancel), s.CancelDeposit)

	// -------- Products --------
	api.POST("/products", s.authorize(authorization.ObjectProduct, authorization.ActionCreate), s.CreateProduct)
	api.GET("/products", s.authorize(authorization.ObjectProduct, authorization.ActionView), s.ListProducts)
	api.GET("/products/:id", s.authorize(authorization.ObjectProduct, authorization.ActionView), s.GetProductByID)
	api.POST("/products/:id/archive", s.authorize(authorization.ObjectProduct, authorization.ActionUpdate), s.ArchiveProduct)

	// -------- Equipment --------
	api.POST("/equipment", s.authorize(authorization.ObjectEquipment, authorization.ActionCreate), s.CreateEquipment)
	api.GET("/equipment", s.authorize(authorization.ObjectEquipment, authorization.ActionView), s.ListEquipment)
	api.GET("/equipment/:id", s.authorize(authorization.ObjectEquipment, authorization.ActionView), s.GetEquipmentByID)
	api.PUT("/equipment/:id/value", s.authorize(authorization.ObjectEquipment, authorization.ActionUpdate), s.UpdateEquipmentValue)
	api.POST("/equipment/:id/retire", s.authorize(authorization.ObjectEquipment, authorization.ActionEquipmentRetire), s.RetireEquipment)
	api.POST("/equipment/:id/jobs", s.authorize(authorization.ObjectEquipment, authorization.ActionUpdate), s.RecordJobUsage)
	api.GET("/equipment/:id/jobs", s.authorize(authorization.ObjectEquipment, authorization.ActionView), s.ListJobUsages)
	api.GET("/job_usages/:id", s.authorize(authorization.ObjectEquipment, authorization.ActionView), s.GetJobUsageByID)

	// -------- Allocations --------
	api.POST("/allocations/products", s.authorize(authorization.ObjectAllocation, authorization.ActionCreate), s.MutationRateLimit(), s.AllocateToProduct)
	api.POST("/allocations/equipment", s.authorize(authorization.ObjectAllocation, authorization.ActionCreate), s.MutationRateLimit(), s.AllocateToEquipment)
	api.GET("/allocations/products", s.authorize(authorization.ObjectAllocation, authorization.ActionView), s.ListProductAllocations)
	api.GET("/allocations/products/:id", s.authorize(authorization.ObjectAllocation, authorization.ActionView), s.GetProductAllocationByID)
	api.GET("/allocations/equipment", s.authorize(authorization.ObjectAllocation, authorization.ActionView), s.ListEquipmentAllocations)
	api.GET("/allocations/equipment/:id", s.authorize(authorization.ObjectAllocation, authorization.ActionView), s.GetEquipmentAllocationByID)

	// -------- Distributions --------
	api.POST("/job_usages/:id/distribute", s.authorize(authorization.ObjectDistribution, authorization.ActionDistributionRun), s.DistributeJobProfit)
	api.GET("/distributions", s.authorize(authorization.ObjectDistribution, authorization.ActionView), s.ListDistributions)

	// -------- Withdrawals --------
	api.POST("/withdrawals", s.authorize(authorization.ObjectWithdrawal, authorization.ActionCreate), s.MutationRateLimit(), s.SubmitWithdrawal)
	api.GET("/withdrawals", s.authorize(authorization.ObjectWithdrawal, authorization.ActionView), s.ListWithdrawals)
	api.GET("/withdrawals/:id", s.authorize(authorization.ObjectWithdrawal, authorization.ActionView), s.GetWithdrawalByID)
	api.POST("/withdrawals/:id/approve", s.authorize(authorization.ObjectWithdrawal, authorization.ActionWithdrawalApprove), s.ApproveWithdrawal)
	api.POST("/withdrawals/:id/reject", s.authorize(authorization.ObjectWithdrawal, authorization.ActionWithdrawalReject), s.RejectWithdrawal)

	// -------- Audit trail --------
	api.GET("/audit_logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)
}
