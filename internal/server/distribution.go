package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	distributiondomain "github.com/benangcapital/benang/internal/distribution/domain"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

func (s *Server) DistributeJobProfit(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.distributionSvc.DistributeJobProfit(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"distributions": resp}})
}

func (s *Server) ListDistributions(c *gin.Context) {
	var query struct {
		InvestorID  string `form:"investor_id"`
		EquipmentID string `form:"equipment_id"`
		JobUsageID  string `form:"job_usage_id"`
		PageToken   string `form:"page_token"`
		PageSize    int    `form:"page_size"`
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
	equipmentID, err := parseOptionalID(query.EquipmentID)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	jobUsageID, err := parseOptionalID(query.JobUsageID)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.distributionSvc.List(c.Request.Context(), distributiondomain.ListDistributionRequest{
		InvestorID:  investorID,
		EquipmentID: equipmentID,
		JobUsageID:  jobUsageID,
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
