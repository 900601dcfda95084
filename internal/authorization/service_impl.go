package authorization

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/benangcapital/benang/internal/audit/domain"
)

//go:embed model.conf
var modelText string

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

const (
	ObjectInvestor     = "investor"
	ObjectDeposit      = "deposit"
	ObjectProduct      = "product"
	ObjectEquipment    = "equipment"
	ObjectAllocation   = "allocation"
	ObjectDistribution = "distribution"
	ObjectWithdrawal   = "withdrawal"
	ObjectLedger       = "ledger"
	ObjectStatement    = "statement"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"

	ActionDepositConfirm    = "deposit.confirm"
	ActionDepositCancel     = "deposit.cancel"
	ActionWithdrawalApprove = "withdrawal.approve"
	ActionWithdrawalReject  = "withdrawal.reject"
	ActionDistributionRun   = "distribution.run"
	ActionInvestorActivate  = "investor.activate"
	ActionEquipmentRetire   = "equipment.retire"
)

// Service gates every admin-facing operation. Subjects are
// "admin:<id>", "investor:<id>" or "system"; roles are fixed by the
// subject prefix.
type Service interface {
	Authorize(ctx context.Context, actor, object, action string) error
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor, object, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := resolveActor(actor)
	if err != nil {
		s.auditDecision(ctx, "authorization.denied", actorType, actorID, object, action)
		return err
	}

	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDecision(ctx, "authorization.denied", actorType, actorID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.auditDecision(ctx, "authorization.granted", actorType, actorID, object, action)
	}
	return nil
}

func resolveActor(actor string) (subject, roleName, actorType, actorID string, err error) {
	if actor == "system" {
		return actor, "role:system", "system", "", nil
	}
	if raw, ok := strings.CutPrefix(actor, "admin:"); ok {
		id, parseErr := snowflake.ParseString(raw)
		if parseErr != nil || id == 0 {
			return "", "", "admin", "", ErrInvalidActor
		}
		return actor, "role:admin", "admin", id.String(), nil
	}
	if raw, ok := strings.CutPrefix(actor, "investor:"); ok {
		id, parseErr := snowflake.ParseString(raw)
		if parseErr != nil || id == 0 {
			return "", "", "investor", "", ErrInvalidActor
		}
		return actor, "role:investor", "investor", id.String(), nil
	}
	return "", "", "", "", ErrInvalidActor
}

func (s *ServiceImpl) ensureGrouping(subject, roleName string) error {
	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) auditDecision(ctx context.Context, decision, actorType, actorID, object, action string) {
	if s.auditSvc == nil {
		return
	}
	var actorRef *string
	if actorID != "" {
		actorRef = &actorID
	}
	target := fmt.Sprintf("%s/%s", object, action)
	_ = s.auditSvc.AuditLog(ctx, actorType, actorRef, decision, "authorization", &target, map[string]any{
		"object": object,
		"action": action,
	})
}

// Money-moving approvals leave a positive audit trail too.
func shouldAuditGrant(action string) bool {
	switch action {
	case ActionWithdrawalApprove, ActionDepositConfirm, ActionDistributionRun:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Investors operate on their own money; ownership is checked by
		// the handlers, capability here.
		{"role:investor", ObjectInvestor, ActionView},
		{"role:investor", ObjectDeposit, ActionView},
		{"role:investor", ObjectDeposit, ActionCreate},
		{"role:investor", ObjectProduct, ActionView},
		{"role:investor", ObjectEquipment, ActionView},
		{"role:investor", ObjectAllocation, ActionView},
		{"role:investor", ObjectAllocation, ActionCreate},
		{"role:investor", ObjectDistribution, ActionView},
		{"role:investor", ObjectWithdrawal, ActionView},
		{"role:investor", ObjectWithdrawal, ActionCreate},
		{"role:investor", ObjectLedger, ActionView},
		{"role:investor", ObjectStatement, ActionView},

		// Back-office staff.
		{"role:admin", ObjectInvestor, ActionView},
		{"role:admin", ObjectInvestor, ActionCreate},
		{"role:admin", ObjectInvestor, ActionUpdate},
		{"role:admin", ObjectInvestor, ActionInvestorActivate},
		{"role:admin", ObjectDeposit, ActionView},
		{"role:admin", ObjectDeposit, ActionDepositConfirm},
		{"role:admin", ObjectDeposit, ActionDepositCancel},
		{"role:admin", ObjectProduct, ActionView},
		{"role:admin", ObjectProduct, ActionCreate},
		{"role:admin", ObjectProduct, ActionUpdate},
		{"role:admin", ObjectEquipment, ActionView},
		{"role:admin", ObjectEquipment, ActionCreate},
		{"role:admin", ObjectEquipment, ActionUpdate},
		{"role:admin", ObjectEquipment, ActionEquipmentRetire},
		{"role:admin", ObjectAllocation, ActionView},
		{"role:admin", ObjectDistribution, ActionView},
		{"role:admin", ObjectDistribution, ActionDistributionRun},
		{"role:admin", ObjectWithdrawal, ActionView},
		{"role:admin", ObjectWithdrawal, ActionWithdrawalApprove},
		{"role:admin", ObjectWithdrawal, ActionWithdrawalReject},
		{"role:admin", ObjectLedger, ActionView},
		{"role:admin", ObjectStatement, ActionView},
		{"role:admin", ObjectAuditLog, ActionView},

		// Scheduler and maintenance jobs.
		{"role:system", ObjectDeposit, ActionDepositCancel},
		{"role:system", ObjectDistribution, ActionDistributionRun},
		{"role:system", ObjectLedger, ActionView},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
