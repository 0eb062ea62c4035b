package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	userdomain "github.com/smallbiznis/portyard/internal/user/domain"
)

type grantPermissionRequest struct {
	Permission string `json:"permission"`
}

func (s *Server) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": roleContext(c)})
}

func (s *Server) ListUsers(c *gin.Context) {
	var req userdomain.ListUsersRequest
	if !bindQuery(c, &req) {
		return
	}
	resp, err := s.userSvc.ListUsers(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateUser(c *gin.Context) {
	var req userdomain.CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.userSvc.CreateUser(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.userSvc.GetUser(c.Request.Context(), roleContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPermissions(c *gin.Context) {
	resp, err := s.userSvc.ListPermissions(c.Request.Context(), roleContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GrantPermission(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req grantPermissionRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.userSvc.Grant(c.Request.Context(), roleContext(c), id, req.Permission)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RevokePermission(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.userSvc.Revoke(c.Request.Context(), roleContext(c), id, c.Param("name"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
