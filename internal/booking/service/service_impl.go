package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/portyard/internal/audit/domain"
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/booking/domain"
	"github.com/smallbiznis/portyard/internal/clock"
	"github.com/smallbiznis/portyard/internal/errs"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	vesseldomain "github.com/smallbiznis/portyard/internal/vessel/domain"
	"github.com/smallbiznis/portyard/pkg/db"
	"github.com/smallbiznis/portyard/pkg/validate"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const numberPrefix = "BK-"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Gate     authorization.Gate
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	gate     authorization.Gate
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("booking.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		gate:     p.Gate,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) CreateBooking(ctx context.Context, rc authorization.RoleContext, req domain.CreateBookingRequest) (*domain.Booking, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindBooking, authorization.OpCreate); err != nil {
		return nil, err
	}
	req.BookingNumber = strings.ToUpper(strings.TrimSpace(req.BookingNumber))
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	conn := s.db.WithContext(ctx)
	parties := map[string]*snowflake.ID{
		"shipper_party_id":   req.ShipperPartyID,
		"consignee_party_id": req.ConsigneePartyID,
		"payer_party_id":     req.PayerPartyID,
	}
	for field, id := range parties {
		if err := exists(conn, &mddomain.Party{}, id, field); err != nil {
			return nil, err
		}
	}
	if err := exists(conn, &vesseldomain.VesselVisit{}, req.VesselVisitID, "vessel_visit_id"); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	number := req.BookingNumber
	if number == "" {
		number = numberPrefix + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	}
	booking := &domain.Booking{
		ID:               s.genID.Generate(),
		BookingNumber:    number,
		Status:           domain.StatusDraft,
		ShipperPartyID:   req.ShipperPartyID,
		ConsigneePartyID: req.ConsigneePartyID,
		PayerPartyID:     req.PayerPartyID,
		VesselVisitID:    req.VesselVisitID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := conn.Create(booking).Error; err != nil {
		return nil, db.AsConstraint(authorization.KindBooking, err)
	}
	s.audit(ctx, rc, "booking.created", booking, nil)
	return booking, nil
}

func (s *Service) GetBooking(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*domain.Booking, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindBooking, authorization.OpRead); err != nil {
		return nil, err
	}
	return s.find(s.db.WithContext(ctx), id, false)
}

func (s *Service) ListBookings(ctx context.Context, rc authorization.RoleContext, req domain.ListBookingsRequest) ([]domain.Booking, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindBooking, authorization.OpRead); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	stmt := s.db.WithContext(ctx).Model(&domain.Booking{})
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	if req.VesselVisitID != nil {
		stmt = stmt.Where("vessel_visit_id = ?", *req.VesselVisitID)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	var bookings []domain.Booking
	if err := stmt.Order("created_at desc").Order("id desc").Limit(limit).Offset(req.Offset).Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

// ConfirmBooking confirms a Draft booking. A booking without a vessel visit
// cannot be confirmed.
func (s *Service) ConfirmBooking(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req domain.ConfirmBookingRequest) (*domain.Booking, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindBooking, authorization.OpUpdate); err != nil {
		return nil, err
	}

	var out *domain.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.find(tx, id, true)
		if err != nil {
			return err
		}
		switch booking.Status {
		case domain.StatusCancelled:
			return errs.Terminal(authorization.KindBooking, id, string(booking.Status))
		case domain.StatusConfirmed:
			out = booking
			return nil
		}

		visitID := booking.VesselVisitID
		if req.VesselVisitID != nil {
			if err := exists(tx, &vesseldomain.VesselVisit{}, req.VesselVisitID, "vessel_visit_id"); err != nil {
				return err
			}
			visitID = req.VesselVisitID
		}
		if visitID == nil {
			return errs.Validation("vessel_visit_id", "a confirmed booking requires a vessel visit")
		}

		now := s.clock.Now()
		if err := tx.Model(&domain.Booking{}).Where("id = ?", id).Updates(map[string]any{
			"status":          domain.StatusConfirmed,
			"vessel_visit_id": *visitID,
			"updated_at":      now,
		}).Error; err != nil {
			return err
		}
		booking.Status = domain.StatusConfirmed
		booking.VesselVisitID = visitID
		booking.UpdatedAt = now
		out = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, rc, "booking.confirmed", out, nil)
	return out, nil
}

func (s *Service) CancelBooking(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*domain.Booking, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindBooking, authorization.OpUpdate); err != nil {
		return nil, err
	}

	var out *domain.Booking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.find(tx, id, true)
		if err != nil {
			return err
		}
		if booking.Terminal() {
			return errs.Terminal(authorization.KindBooking, id, string(booking.Status))
		}
		from := booking.Status
		now := s.clock.Now()
		if err := tx.Model(&domain.Booking{}).Where("id = ?", id).Updates(map[string]any{
			"status":     domain.StatusCancelled,
			"updated_at": now,
		}).Error; err != nil {
			return err
		}
		booking.Status = domain.StatusCancelled
		booking.UpdatedAt = now
		out = booking
		s.log.Info("booking cancelled",
			zap.String("booking_id", id.String()),
			zap.String("from", string(from)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, rc, "booking.cancelled", out, nil)
	return out, nil
}

func (s *Service) find(conn *gorm.DB, id snowflake.ID, lock bool) (*domain.Booking, error) {
	query := `SELECT * FROM bookings WHERE id = ?`
	if lock {
		query = db.ForUpdate(conn, query)
	}
	var booking domain.Booking
	if err := conn.Raw(query, id).Scan(&booking).Error; err != nil {
		return nil, err
	}
	if booking.ID == 0 {
		return nil, errs.NotFound(authorization.KindBooking, id)
	}
	return &booking, nil
}

func (s *Service) audit(ctx context.Context, rc authorization.RoleContext, action string, booking *domain.Booking, metadata map[string]any) {
	if s.auditSvc == nil || booking == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["booking_number"] = booking.BookingNumber
	metadata["status"] = string(booking.Status)
	target := booking.ID.String()
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    rc.ActorID(),
		Role:       string(rc.Role),
		Action:     action,
		TargetType: authorization.KindBooking,
		TargetID:   &target,
		Metadata:   metadata,
	})
}

func exists(conn *gorm.DB, model any, id *snowflake.ID, field string) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := conn.Model(model).Where("id = ?", *id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errs.Validation(field, "%s does not exist", id.String())
	}
	return nil
}
