package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	depositdomain "github.com/benangcapital/benang/internal/deposit/domain"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

func (s *Server) CreateDeposit(c *gin.Context) {
	var req depositdomain.CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.depositSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDepositByID(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.depositSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDeposits(c *gin.Context) {
	var query struct {
		InvestorID string `form:"investor_id"`
		Status     string `form:"status"`
		PageToken  string `form:"page_token"`
		PageSize   int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	investorID, err := parseOptionalID(query.InvestorID)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.depositSvc.List(c.Request.Context(), depositdomain.ListDepositRequest{
		InvestorID: investorID,
		Status:     depositdomain.DepositStatus(strings.TrimSpace(query.Status)),
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) MarkDepositPaid(c *gin.Context) {
	s.transitionDeposit(c, s.depositSvc.MarkPaid)
}

func (s *Server) ConfirmDeposit(c *gin.Context) {
	s.transitionDeposit(c, s.depositSvc.Confirm)
}

func (s *Server) CancelDeposit(c *gin.Context) {
	s.transitionDeposit(c, s.depositSvc.Cancel)
}

func (s *Server) UploadDepositReceipt(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req depositdomain.UploadReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.depositSvc.UploadReceipt(c.Request.Context(), id, strings.TrimSpace(req.ReceiptURL))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) transitionDeposit(c *gin.Context, op func(ctx context.Context, id snowflake.ID) (*depositdomain.Deposit, error)) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := op(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
