package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	catalogdomain "github.com/smallbiznis/toolvault/internal/catalog/domain"
)

func (s *Server) ListTools(c *gin.Context) {
	tools, err := s.catalogSvc.ListTools(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tools})
}

func (s *Server) GetToolBySlug(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	tool, err := s.catalogSvc.GetToolBySlug(c.Request.Context(), slug)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tool})
}

func (s *Server) CreateTool(c *gin.Context) {
	var req catalogdomain.CreateToolInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	tool, err := s.catalogSvc.CreateTool(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tool})
}

func (s *Server) CreateLicense(c *gin.Context) {
	var req catalogdomain.CreateLicenseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	license, err := s.catalogSvc.CreateLicense(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": license})
}

func (s *Server) UpdateLicense(c *gin.Context) {
	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid license id"))
		return
	}

	var req catalogdomain.UpdateLicenseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	license, err := s.catalogSvc.UpdateLicense(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": license})
}
