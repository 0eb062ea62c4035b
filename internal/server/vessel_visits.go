package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	vesseldomain "github.com/smallbiznis/portyard/internal/vessel/domain"
)

func (s *Server) ListVisits(c *gin.Context) {
	var req vesseldomain.ListVisitsRequest
	if !bindQuery(c, &req) {
		return
	}
	resp, err := s.visitSvc.ListVisits(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateVisit(c *gin.Context) {
	var req vesseldomain.CreateVisitRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.visitSvc.CreateVisit(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetVisit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.visitSvc.GetVisit(c.Request.Context(), roleContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateVisit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req vesseldomain.UpdateVisitRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.visitSvc.UpdateVisit(c.Request.Context(), roleContext(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
