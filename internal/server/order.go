package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/toolvault/internal/accountctx"
	orderdomain "github.com/smallbiznis/toolvault/internal/order/domain"
	"github.com/smallbiznis/toolvault/pkg/db/pagination"
)

func (s *Server) Checkout(c *gin.Context) {
	accountID, ok := accountctx.AccountIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	detail, err := s.orderSvc.Checkout(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": detail})
}

func (s *Server) ListOrders(c *gin.Context) {
	accountID, ok := accountctx.AccountIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var query struct {
		pagination.Pagination
		Status        string `form:"status"`
		CreatedAfter  string `form:"created_after"`
		CreatedBefore string `form:"created_before"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	createdAfter, err := parseOptionalTime(query.CreatedAfter)
	if err != nil {
		AbortWithError(c, newValidationError("created_after", "invalid_time", "invalid created_after"))
		return
	}
	createdBefore, err := parseOptionalTime(query.CreatedBefore)
	if err != nil {
		AbortWithError(c, newValidationError("created_before", "invalid_time", "invalid created_before"))
		return
	}

	filter := orderdomain.ListFilter{
		AccountID:     accountID,
		Status:        orderdomain.OrderStatus(strings.ToUpper(strings.TrimSpace(query.Status))),
		CreatedAfter:  createdAfter,
		CreatedBefore: createdBefore,
	}

	orders, pageInfo, err := s.orderSvc.List(c.Request.Context(), filter, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders, "page_info": pageInfo})
}

func (s *Server) GetOrder(c *gin.Context) {
	accountID, ok := accountctx.AccountIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orderID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid order id"))
		return
	}

	detail, err := s.orderSvc.GetByID(c.Request.Context(), accountID, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) CancelOrder(c *gin.Context) {
	accountID, ok := accountctx.AccountIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orderID, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid order id"))
		return
	}

	order, err := s.orderSvc.Cancel(c.Request.Context(), accountID, orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func parseSnowflakeParam(c *gin.Context, name string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(c.Param(name)))
}

func parseOptionalSnowflake(value string) (snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return snowflake.ParseString(value)
}

func parseOptionalTime(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
