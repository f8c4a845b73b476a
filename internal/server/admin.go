package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	auditdomain "github.com/smallbiznis/toolvault/internal/audit/domain"
	pooldomain "github.com/smallbiznis/toolvault/internal/licensepool/domain"
	renewaldomain "github.com/smallbiznis/toolvault/internal/renewal/domain"
)

func (s *Server) ProvisionAccount(c *gin.Context) {
	var req pooldomain.ProvisionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	account, err := s.poolSvc.Provision(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": account})
}

func (s *Server) ListAccounts(c *gin.Context) {
	var query struct {
		LicenseID string `form:"license_id"`
		Status    string `form:"status"`
		Limit     int    `form:"limit,default=100"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	licenseID, err := parseOptionalSnowflake(query.LicenseID)
	if err != nil {
		AbortWithError(c, newValidationError("license_id", "invalid_id", "invalid license id"))
		return
	}

	accounts, err := s.poolSvc.List(
		c.Request.Context(),
		licenseID,
		pooldomain.AccountStatus(strings.ToUpper(strings.TrimSpace(query.Status))),
		query.Limit,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": accounts})
}

func (s *Server) AccountAvailability(c *gin.Context) {
	licenseID, err := parseOptionalSnowflake(c.Query("license_id"))
	if err != nil || licenseID == 0 {
		AbortWithError(c, newValidationError("license_id", "invalid_id", "invalid license id"))
		return
	}

	available, err := s.poolSvc.CountAvailable(c.Request.Context(), licenseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"license_id": licenseID.String(),
		"available":  available,
	}})
}

func (s *Server) ReleaseAccount(c *gin.Context) {
	accountID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid account id"))
		return
	}

	if err := s.poolSvc.Release(c.Request.Context(), nil, accountID, pooldomain.AccountStatusPending); err != nil {
		AbortWithError(c, err)
		return
	}

	account, err := s.poolSvc.Get(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) ListAccountRenewals(c *gin.Context) {
	accountID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid account id"))
		return
	}

	renewals, err := s.renewalSvc.ListByAccount(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": renewals})
}

func (s *Server) RenewAccount(c *gin.Context) {
	var req renewaldomain.RenewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	renewal, err := s.renewalSvc.Renew(c.Request.Context(), "admin", req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": renewal})
}

func (s *Server) GetOrderByReference(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))
	detail, err := s.orderSvc.GetByReference(c.Request.Context(), reference)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

// RetryAllocation re-runs fulfillment for an order left PAID by a crash
// between payment confirmation and allocation.
func (s *Server) RetryAllocation(c *gin.Context) {
	orderID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid order id"))
		return
	}

	if err := s.orderSvc.Allocate(c.Request.Context(), orderID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query struct {
		Action     string `form:"action"`
		TargetType string `form:"target_type"`
		TargetID   string `form:"target_id"`
		Limit      int    `form:"limit,default=100"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	logs, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListFilter{
		Action:     strings.TrimSpace(query.Action),
		TargetType: strings.TrimSpace(query.TargetType),
		TargetID:   strings.TrimSpace(query.TargetID),
		Limit:      query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}
