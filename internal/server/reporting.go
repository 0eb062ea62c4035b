package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetDashboard(c *gin.Context) {
	resp, err := s.reportSvc.Dashboard(c.Request.Context(), roleContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetKPIs(c *gin.Context) {
	resp, err := s.reportSvc.KPIs(c.Request.Context(), roleContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetKPISheet(c *gin.Context) {
	pdf, err := s.reportSvc.KPISheet(c.Request.Context(), roleContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="yard-kpis.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) Search(c *gin.Context) {
	resp, err := s.searchSvc.Search(c.Request.Context(), roleContext(c), c.Query("q"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
