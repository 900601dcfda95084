package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	ledgerdomain "github.com/benangcapital/benang/internal/ledger/domain"
	"github.com/benangcapital/benang/pkg/db/pagination"
)

func (s *Server) ListInvestorTransactions(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var query struct {
		Type      string `form:"type"`
		Account   string `form:"account"`
		PageToken string `form:"page_token"`
		PageSize  int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.projector.ListByInvestor(c.Request.Context(), ledgerdomain.ListEntryRequest{
		InvestorID: id,
		Type:       ledgerdomain.EntryType(strings.TrimSpace(query.Type)),
		Account:    ledgerdomain.Account(strings.TrimSpace(query.Account)),
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

// GetInvestorBalances serves the cached projection. With ?verify=true
// it also folds the full history so an operator can spot drift.
func (s *Server) GetInvestorBalances(c *gin.Context) {
	id, err := parseIDParam(c.Param("id"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inv, err := s.investorSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body := gin.H{
		"investor_id":     inv.ID.String(),
		"cash_balance":    inv.CashBalance,
		"profit_balance":  inv.ProfitBalance,
		"total_invested":  inv.TotalInvested,
		"total_profit":    inv.TotalProfit,
		"total_withdrawn": inv.TotalWithdrawn,
	}

	verify, err := parseOptionalBool(c.Query("verify"))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if verify != nil && *verify {
		replayed, err := s.projector.Replay(c.Request.Context(), id)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		body["replayed"] = gin.H{
			"cash_balance":   replayed.Cash,
			"profit_balance": replayed.Profit,
		}
		body["consistent"] = replayed.Cash == inv.CashBalance && replayed.Profit == inv.ProfitBalance
	}

	c.JSON(http.StatusOK, gin.H{"data": body})
}
