package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	yarddomain "github.com/smallbiznis/portyard/internal/yard/domain"
)

func (s *Server) ListBlocks(c *gin.Context) {
	resp, err := s.yardSvc.ListBlocks(c.Request.Context(), roleContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateBlock(c *gin.Context) {
	var req yarddomain.CreateBlockRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.yardSvc.CreateBlock(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) CreateStack(c *gin.Context) {
	var req yarddomain.CreateStackRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.yardSvc.CreateStack(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListSlots(c *gin.Context) {
	var req yarddomain.ListSlotsRequest
	if !bindQuery(c, &req) {
		return
	}
	resp, err := s.yardSvc.ListSlots(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateSlot(c *gin.Context) {
	var req yarddomain.CreateSlotRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.yardSvc.CreateSlot(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetSlot(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.yardSvc.GetSlot(c.Request.Context(), roleContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetSlotMaintenance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.yardSvc.SetSlotMaintenance(c.Request.Context(), roleContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ClearSlotMaintenance(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.yardSvc.ClearSlotMaintenance(c.Request.Context(), roleContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CheckInvariants(c *gin.Context) {
	resp, err := s.yardSvc.CheckInvariants(c.Request.Context(), roleContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
