package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	allocationdomain "github.com/benangcapital/benang/internal/allocation/domain"
	auditdomain "github.com/benangcapital/benang/internal/audit/domain"
	"github.com/benangcapital/benang/internal/authorization"
	depositdomain "github.com/benangcapital/benang/internal/deposit/domain"
	distributiondomain "github.com/benangcapital/benang/internal/distribution/domain"
	equipmentdomain "github.com/benangcapital/benang/internal/equipment/domain"
	investordomain "github.com/benangcapital/benang/internal/investor/domain"
	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	productdomain "github.com/benangcapital/benang/internal/product/domain"
	"github.com/benangcapital/benang/internal/statement"
	withdrawaldomain "github.com/benangcapital/benang/internal/withdrawal/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

// mapError translates domain sentinels into the wire taxonomy. Balance
// and state conflicts are 409s so clients can distinguish retryable
// validation mistakes from money-state races.
func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, payload("internal_error", "internal_error", "internal server error")

	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, payload("unauthorized", "unauthorized", "unauthorized")

	case errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, payload("forbidden", "forbidden", "forbidden")

	case isNotFoundError(err):
		return http.StatusNotFound, payload("not_found", "not_found", "not found")

	// Money-state conflicts.
	case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
		return http.StatusConflict, payload("conflict", "insufficient_balance", "balance is lower than the requested amount")
	case errors.Is(err, allocationdomain.ErrOverAllocation):
		return http.StatusConflict, payload("conflict", "over_allocation", "allocation exceeds the equipment purchase price")
	case errors.Is(err, distributiondomain.ErrAlreadyDistributed):
		return http.StatusConflict, payload("conflict", "already_distributed", "job profit has already been distributed")
	case errors.Is(err, withdrawaldomain.ErrStaleBalance):
		return http.StatusConflict, payload("conflict", "stale_balance", "balance changed since the request was submitted")
	case isInvalidTransition(err):
		return http.StatusConflict, payload("conflict", "invalid_transition", "invalid state transition")
	case errors.Is(err, investordomain.ErrEmailTaken),
		errors.Is(err, productdomain.ErrSKUTaken),
		errors.Is(err, equipmentdomain.ErrDuplicateReference):
		return http.StatusConflict, payload("conflict", "duplicate", "resource already exists")
	case errors.Is(err, withdrawaldomain.ErrInsufficientQuantity),
		errors.Is(err, withdrawaldomain.ErrAllocationExited),
		errors.Is(err, equipmentdomain.ErrEquipmentRetired),
		errors.Is(err, productdomain.ErrProductArchived),
		errors.Is(err, investordomain.ErrInvestorNotActive),
		errors.Is(err, distributiondomain.ErrNothingToDistribute):
		return http.StatusConflict, payload("conflict", err.Error(), "operation conflicts with current state")

	case isValidationError(err):
		return http.StatusBadRequest, payload("validation_error", err.Error(), "invalid request")

	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, payload("rate_limited", "rate_limited", "too many mutations, slow down")

	default:
		return http.StatusInternalServerError, payload("internal_error", "internal_error", "internal server error")
	}
}

func payload(errType, code, message string) errorPayload {
	return errorPayload{Type: errType, Code: code, Message: message}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, investordomain.ErrInvestorNotFound),
		errors.Is(err, depositdomain.ErrDepositNotFound),
		errors.Is(err, productdomain.ErrProductNotFound),
		errors.Is(err, equipmentdomain.ErrEquipmentNotFound),
		errors.Is(err, equipmentdomain.ErrJobUsageNotFound),
		errors.Is(err, allocationdomain.ErrAllocationNotFound),
		errors.Is(err, withdrawaldomain.ErrWithdrawalNotFound),
		errors.Is(err, statement.ErrNoHistory),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isInvalidTransition(err error) bool {
	switch {
	case errors.Is(err, investordomain.ErrInvalidTransition),
		errors.Is(err, depositdomain.ErrInvalidTransition),
		errors.Is(err, withdrawaldomain.ErrInvalidTransition):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, investordomain.ErrNameRequired),
		errors.Is(err, investordomain.ErrEmailRequired),
		errors.Is(err, investordomain.ErrInvalidStatus),
		errors.Is(err, investordomain.ErrInvalidPageToken),
		errors.Is(err, depositdomain.ErrInvalidAmount),
		errors.Is(err, depositdomain.ErrInvalidCharges),
		errors.Is(err, depositdomain.ErrIdempotencyKeyMiss),
		errors.Is(err, depositdomain.ErrInvalidPageToken),
		errors.Is(err, productdomain.ErrNameRequired),
		errors.Is(err, productdomain.ErrInvalidUnitPrice),
		errors.Is(err, productdomain.ErrInvalidPageToken),
		errors.Is(err, equipmentdomain.ErrNameRequired),
		errors.Is(err, equipmentdomain.ErrInvalidPrice),
		errors.Is(err, equipmentdomain.ErrInvalidPoolShare),
		errors.Is(err, equipmentdomain.ErrInvalidBasis),
		errors.Is(err, equipmentdomain.ErrInvalidRevenue),
		errors.Is(err, equipmentdomain.ErrInvalidCost),
		errors.Is(err, equipmentdomain.ErrInvalidPageToken),
		errors.Is(err, allocationdomain.ErrInvalidAmount),
		errors.Is(err, allocationdomain.ErrInvalidQuantity),
		errors.Is(err, allocationdomain.ErrIdempotencyKeyMiss),
		errors.Is(err, allocationdomain.ErrInvalidPageToken),
		errors.Is(err, withdrawaldomain.ErrInvalidType),
		errors.Is(err, withdrawaldomain.ErrInvalidAmount),
		errors.Is(err, withdrawaldomain.ErrInvalidQuantity),
		errors.Is(err, withdrawaldomain.ErrNotAllocationOwner),
		errors.Is(err, withdrawaldomain.ErrIdempotencyKeyMiss),
		errors.Is(err, withdrawaldomain.ErrInvalidPageToken),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidAccount),
		errors.Is(err, ledgerdomain.ErrInvalidEntryType),
		errors.Is(err, ledgerdomain.ErrInvalidPageToken),
		errors.Is(err, distributiondomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

// classifyErrorForLog tags the request log with a coarse type and the
// sentinel code without rendering a response.
func classifyErrorForLog(err error) (string, string) {
	status, p := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "internal", p.Code
	case status == http.StatusConflict:
		return "conflict", p.Code
	case status == http.StatusNotFound:
		return "not_found", p.Code
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "auth", p.Code
	default:
		return "validation", p.Code
	}
}
