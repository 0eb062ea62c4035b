package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
)

func (s *Server) listRequest(c *gin.Context) (mddomain.ListRequest, bool) {
	var req mddomain.ListRequest
	if !bindQuery(c, &req) {
		return req, false
	}
	req.Query = strings.TrimSpace(req.Query)
	return req, true
}

func (s *Server) ListParties(c *gin.Context) {
	req, ok := s.listRequest(c)
	if !ok {
		return
	}
	resp, err := s.masterSvc.ListParties(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Items, "total": resp.Total})
}

func (s *Server) CreateParty(c *gin.Context) {
	var req mddomain.CreatePartyRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.masterSvc.CreateParty(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetParty(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.masterSvc.GetParty(c.Request.Context(), roleContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateParty(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req mddomain.UpdatePartyRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.masterSvc.UpdateParty(c.Request.Context(), roleContext(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteParty(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.masterSvc.DeleteParty(c.Request.Context(), roleContext(c), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ListPorts(c *gin.Context) {
	req, ok := s.listRequest(c)
	if !ok {
		return
	}
	resp, err := s.masterSvc.ListPorts(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Items, "total": resp.Total})
}

func (s *Server) CreatePort(c *gin.Context) {
	var req mddomain.CreatePortRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.masterSvc.CreatePort(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetPort(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.masterSvc.GetPort(c.Request.Context(), roleContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePort(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req mddomain.UpdatePortRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.masterSvc.UpdatePort(c.Request.Context(), roleContext(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePort(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.masterSvc.DeletePort(c.Request.Context(), roleContext(c), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ListBerths(c *gin.Context) {
	req, ok := s.listRequest(c)
	if !ok {
		return
	}
	resp, err := s.masterSvc.ListBerths(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Items, "total": resp.Total})
}

func (s *Server) CreateBerth(c *gin.Context) {
	var req mddomain.CreateBerthRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.masterSvc.CreateBerth(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetBerth(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.masterSvc.GetBerth(c.Request.Context(), roleContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateBerth(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req mddomain.UpdateBerthRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.masterSvc.UpdateBerth(c.Request.Context(), roleContext(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteBerth(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.masterSvc.DeleteBerth(c.Request.Context(), roleContext(c), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ListVessels(c *gin.Context) {
	req, ok := s.listRequest(c)
	if !ok {
		return
	}
	resp, err := s.masterSvc.ListVessels(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Items, "total": resp.Total})
}

func (s *Server) CreateVessel(c *gin.Context) {
	var req mddomain.CreateVesselRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.masterSvc.CreateVessel(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetVessel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.masterSvc.GetVessel(c.Request.Context(), roleContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateVessel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req mddomain.UpdateVesselRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.masterSvc.UpdateVessel(c.Request.Context(), roleContext(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteVessel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.masterSvc.DeleteVessel(c.Request.Context(), roleContext(c), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ListContainerTypes(c *gin.Context) {
	req, ok := s.listRequest(c)
	if !ok {
		return
	}
	resp, err := s.masterSvc.ListContainerTypes(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Items, "total": resp.Total})
}

func (s *Server) CreateContainerType(c *gin.Context) {
	var req mddomain.CreateContainerTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	req.TypeCode = strings.ToUpper(strings.TrimSpace(req.TypeCode))
	resp, err := s.masterSvc.CreateContainerType(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

// Container types are keyed by their ISO 6346 type code, not a snowflake id.
func (s *Server) GetContainerType(c *gin.Context) {
	resp, err := s.masterSvc.GetContainerType(c.Request.Context(), roleContext(c), typeCodeParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateContainerType(c *gin.Context) {
	var req mddomain.UpdateContainerTypeRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.masterSvc.UpdateContainerType(c.Request.Context(), roleContext(c), typeCodeParam(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteContainerType(c *gin.Context) {
	if err := s.masterSvc.DeleteContainerType(c.Request.Context(), roleContext(c), typeCodeParam(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ListContainers(c *gin.Context) {
	req, ok := s.listRequest(c)
	if !ok {
		return
	}
	resp, err := s.masterSvc.ListContainers(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp.Items, "total": resp.Total})
}

func (s *Server) CreateContainer(c *gin.Context) {
	var req mddomain.CreateContainerRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Number = strings.ToUpper(strings.TrimSpace(req.Number))
	req.TypeCode = strings.ToUpper(strings.TrimSpace(req.TypeCode))
	resp, err := s.masterSvc.CreateContainer(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetContainer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.masterSvc.GetContainer(c.Request.Context(), roleContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateContainer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req mddomain.UpdateContainerRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.masterSvc.UpdateContainer(c.Request.Context(), roleContext(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteContainer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.masterSvc.DeleteContainer(c.Request.Context(), roleContext(c), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func typeCodeParam(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("code")))
}
