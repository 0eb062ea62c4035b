package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	taskdomain "github.com/smallbiznis/portyard/internal/task/domain"
)

func (s *Server) CreateTask(c *gin.Context) {
	var req taskdomain.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.taskSvc.CreateTask(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListTasks(c *gin.Context) {
	var req taskdomain.ListTasksRequest
	if !bindQuery(c, &req) {
		return
	}
	resp, err := s.taskSvc.ListTasks(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Tasks, "page_info": resp.PageInfo})
}

func (s *Server) ListPendingTasks(c *gin.Context) {
	var req taskdomain.ListPendingRequest
	if !bindQuery(c, &req) {
		return
	}
	resp, err := s.taskSvc.ListPending(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.taskSvc.GetTask(c.Request.Context(), roleContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdvanceTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req taskdomain.AdvanceTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.taskSvc.AdvanceTask(c.Request.Context(), roleContext(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AssignTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req taskdomain.AssignTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.taskSvc.AssignTask(c.Request.Context(), roleContext(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
