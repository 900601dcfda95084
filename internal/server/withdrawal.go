package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	withdrawaldomain "github.com/benangcapital/benang/internal/withdrawal/domain"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

func (s *Server) SubmitWithdrawal(c *gin.Context) {
	var req withdrawaldomain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.withdrawalSvc.Submit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetWithdrawalByID(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.withdrawalSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListWithdrawals(c *gin.Context) {
	var query struct {
		InvestorID string `form:"investor_id"`
		Status     string `form:"status"`
		Type       string `form:"type"`
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

	resp, err := s.withdrawalSvc.List(c.Request.Context(), withdrawaldomain.ListWithdrawalRequest{
		InvestorID: investorID,
		Status:     withdrawaldomain.WithdrawalStatus(strings.TrimSpace(query.Status)),
		Type:       withdrawaldomain.WithdrawalType(strings.TrimSpace(query.Type)),
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

func (s *Server) ApproveWithdrawal(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	// Body is optional; an empty body approves the requested amount.
	var req struct {
		ApprovedAmount int64 `json:"approved_amount"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.withdrawalSvc.Approve(c.Request.Context(), id, req.ApprovedAmount, c.GetString(contextActorKey))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RejectWithdrawal(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req withdrawaldomain.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.withdrawalSvc.Reject(c.Request.Context(), id, strings.TrimSpace(req.Reason), c.GetString(contextActorKey))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
