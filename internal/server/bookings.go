package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	bookingdomain "github.com/smallbiznis/portyard/internal/booking/domain"
)

func (s *Server) ListBookings(c *gin.Context) {
	var req bookingdomain.ListBookingsRequest
	if !bindQuery(c, &req) {
		return
	}
	resp, err := s.bookingSvc.ListBookings(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateBooking(c *gin.Context) {
	var req bookingdomain.CreateBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := s.bookingSvc.CreateBooking(c.Request.Context(), roleContext(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetBooking(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.bookingSvc.GetBooking(c.Request.Context(), roleContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ConfirmBooking accepts an empty body when the booking already has a visit.
func (s *Server) ConfirmBooking(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req bookingdomain.ConfirmBookingRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	resp, err := s.bookingSvc.ConfirmBooking(c.Request.Context(), roleContext(c), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CancelBooking(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := s.bookingSvc.CancelBooking(c.Request.Context(), roleContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
