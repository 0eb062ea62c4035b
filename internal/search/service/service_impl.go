package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/config"
	"github.com/smallbiznis/portyard/internal/search/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Gate   authorization.Gate
	Policy *config.PolicyHolder `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	gate   authorization.Gate
	policy *config.PolicyHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("search.service"),
		gate:   p.Gate,
		policy: p.Policy,
	}
}

// Search matches the query case-insensitively as a substring against each
// entity's searchable fields. A blank query returns empty groups.
func (s *Service) Search(ctx context.Context, rc authorization.RoleContext, query string) (*domain.Results, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindSearch, authorization.OpRead); err != nil {
		return nil, err
	}

	q := strings.TrimSpace(query)
	out := &domain.Results{
		Query:      q,
		Containers: []domain.ContainerHit{},
		Bookings:   []domain.BookingHit{},
		Tasks:      []domain.TaskHit{},
		Visits:     []domain.VisitHit{},
		Parties:    []domain.PartyHit{},
	}
	if q == "" {
		return out, nil
	}

	like := "%" + escapeLike(strings.ToLower(q)) + "%"
	limit := s.policy.Get().SearchLimit
	conn := s.db.WithContext(ctx)

	err := conn.Table("containers c").
		Select("c.id, c.number, c.type_code, c.current_status, p.name AS owner_name").
		Joins("LEFT JOIN parties p ON p.id = c.owner_party_id").
		Where(`LOWER(c.number) LIKE ? ESCAPE '!' OR LOWER(c.type_code) LIKE ? ESCAPE '!' OR LOWER(p.name) LIKE ? ESCAPE '!'`, like, like, like).
		Order("c.id DESC").Limit(limit).
		Scan(&out.Containers).Error
	if err != nil {
		return nil, err
	}

	err = conn.Table("bookings b").
		Select("b.id, b.booking_number, b.status, sp.name AS shipper_name, cp.name AS consignee_name").
		Joins("LEFT JOIN parties sp ON sp.id = b.shipper_party_id").
		Joins("LEFT JOIN parties cp ON cp.id = b.consignee_party_id").
		Where(`LOWER(b.booking_number) LIKE ? ESCAPE '!' OR LOWER(b.status) LIKE ? ESCAPE '!' OR LOWER(sp.name) LIKE ? ESCAPE '!' OR LOWER(cp.name) LIKE ? ESCAPE '!'`, like, like, like, like).
		Order("b.created_at DESC").Order("b.id DESC").Limit(limit).
		Scan(&out.Bookings).Error
	if err != nil {
		return nil, err
	}

	err = conn.Table("tasks t").
		Select("t.id, t.type AS task_type, t.status, c.number AS container_number, t.created_at").
		Joins("JOIN containers c ON c.id = t.container_id").
		Where(`LOWER(c.number) LIKE ? ESCAPE '!' OR LOWER(t.type) LIKE ? ESCAPE '!' OR LOWER(t.status) LIKE ? ESCAPE '!'`, like, like, like).
		Order("t.created_at DESC").Order("t.id DESC").Limit(limit).
		Scan(&out.Tasks).Error
	if err != nil {
		return nil, err
	}

	err = conn.Table("vessel_visits vv").
		Select("vv.id, v.name AS vessel_name, vv.voyage_number_in, vv.voyage_number_out, p.name AS port_name, vv.status, vv.ata").
		Joins("JOIN vessels v ON v.id = vv.vessel_id").
		Joins("JOIN ports p ON p.id = vv.port_id").
		Where(`LOWER(v.name) LIKE ? ESCAPE '!' OR LOWER(vv.voyage_number_in) LIKE ? ESCAPE '!' OR LOWER(vv.voyage_number_out) LIKE ? ESCAPE '!' OR LOWER(p.name) LIKE ? ESCAPE '!'`, like, like, like, like).
		Order("CASE WHEN vv.ata IS NULL THEN 1 ELSE 0 END").Order("vv.ata DESC").Order("vv.id DESC").Limit(limit).
		Scan(&out.Visits).Error
	if err != nil {
		return nil, err
	}

	err = conn.Table("parties").
		Select("id, name, contact_person, scac_code").
		Where(`LOWER(name) LIKE ? ESCAPE '!' OR LOWER(contact_person) LIKE ? ESCAPE '!' OR LOWER(scac_code) LIKE ? ESCAPE '!'`, like, like, like).
		Order("id DESC").Limit(limit).
		Scan(&out.Parties).Error
	if err != nil {
		return nil, err
	}

	s.log.Debug("search",
		zap.String("query", q),
		zap.Int("hits", out.Total()),
	)
	return out, nil
}

// likeEscaper escapes LIKE wildcards with '!', which needs no quoting in any
// supported dialect.
var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
