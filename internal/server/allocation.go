package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	allocationdomain "github.com/benangcapital/benang/internal/allocation/domain"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

func (s *Server) AllocateToProduct(c *gin.Context) {
	var req allocationdomain.AllocateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.allocationSvc.AllocateToProduct(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AllocateToEquipment(c *gin.Context) {
	var req allocationdomain.AllocateEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.allocationSvc.AllocateToEquipment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProductAllocationByID(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.allocationSvc.GetProductAllocation(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetEquipmentAllocationByID(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.allocationSvc.GetEquipmentAllocation(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListProductAllocations(c *gin.Context) {
	var query struct {
		InvestorID string `form:"investor_id"`
		ProductID  string `form:"product_id"`
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
	productID, err := parseOptionalID(query.ProductID)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.allocationSvc.ListProductAllocations(c.Request.Context(), allocationdomain.ListProductAllocationRequest{
		InvestorID: investorID,
		ProductID:  productID,
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

func (s *Server) ListEquipmentAllocations(c *gin.Context) {
	var query struct {
		InvestorID  string `form:"investor_id"`
		EquipmentID string `form:"equipment_id"`
		ActiveOnly  string `form:"active_only"`
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
	activeOnly, err := parseOptionalBool(query.ActiveOnly)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.allocationSvc.ListEquipmentAllocations(c.Request.Context(), allocationdomain.ListEquipmentAllocationRequest{
		InvestorID:  investorID,
		EquipmentID: equipmentID,
		ActiveOnly:  activeOnly != nil && *activeOnly,
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
