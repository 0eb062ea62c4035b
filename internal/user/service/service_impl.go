package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/portyard/internal/audit/domain"
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/clock"
	"github.com/smallbiznis/portyard/internal/errs"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	"github.com/smallbiznis/portyard/internal/user/domain"
	"github.com/smallbiznis/portyard/pkg/db"
	"github.com/smallbiznis/portyard/pkg/validate"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoleInvalidator drops cached role contexts after grants change.
type RoleInvalidator interface {
	Invalidate(ctx context.Context, identifier string)
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Gate        authorization.Gate
	Invalidator RoleInvalidator     `optional:"true"`
	AuditSvc    auditdomain.Service `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	gate        authorization.Gate
	invalidator RoleInvalidator
	auditSvc    auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("user.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		gate:        p.Gate,
		invalidator: p.Invalidator,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) CreateUser(ctx context.Context, rc authorization.RoleContext, req domain.CreateUserRequest) (*domain.UserView, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindUser, authorization.OpCreate); err != nil {
		return nil, err
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	for i, name := range req.Permissions {
		req.Permissions[i] = strings.ToUpper(strings.TrimSpace(name))
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var out *domain.UserView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.PartyID != nil {
			var count int64
			if err := tx.Model(&mddomain.Party{}).Where("id = ?", *req.PartyID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return errs.Validation("party_id", "party %s does not exist", req.PartyID.String())
			}
		}

		now := s.clock.Now()
		user := domain.User{
			ID:          s.genID.Generate(),
			Username:    req.Username,
			Email:       req.Email,
			FullName:    strings.TrimSpace(req.FullName),
			PartyID:     req.PartyID,
			IsActive:    true,
			IsSuperuser: req.IsSuperuser,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(&user).Error; err != nil {
			return db.AsConstraint(authorization.KindUser, err)
		}
		for _, name := range req.Permissions {
			if err := s.grantTx(tx, user.ID, name); err != nil {
				return err
			}
		}

		names, err := permissionNames(tx, user.ID)
		if err != nil {
			return err
		}
		out = &domain.UserView{User: user, Permissions: names}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, rc, "user.created", authorization.KindUser, out.ID, map[string]any{
		"username":    out.Username,
		"email":       out.Email,
		"permissions": out.Permissions,
	})
	return out, nil
}

func (s *Service) GetUser(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*domain.UserView, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindUser, authorization.OpRead); err != nil {
		return nil, err
	}
	return s.view(s.db.WithContext(ctx), id)
}

func (s *Service) ListUsers(ctx context.Context, rc authorization.RoleContext, req domain.ListUsersRequest) ([]domain.UserView, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindUser, authorization.OpRead); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	conn := s.db.WithContext(ctx)
	stmt := conn.Model(&domain.User{})
	if q := strings.TrimSpace(req.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		stmt = stmt.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	if req.Active != nil {
		stmt = stmt.Where("is_active = ?", *req.Active)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	var users []domain.User
	if err := stmt.Order("username asc").Limit(limit).Offset(req.Offset).Find(&users).Error; err != nil {
		return nil, err
	}

	out := make([]domain.UserView, 0, len(users))
	for _, user := range users {
		names, err := permissionNames(conn, user.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.UserView{User: user, Permissions: names})
	}
	return out, nil
}

func (s *Service) ListPermissions(ctx context.Context, rc authorization.RoleContext) ([]domain.Permission, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindPermission, authorization.OpRead); err != nil {
		return nil, err
	}
	var perms []domain.Permission
	if err := s.db.WithContext(ctx).Order("name asc").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

// Grant adds a permission to the user. Granting an already held permission
// is a no-op.
func (s *Service) Grant(ctx context.Context, rc authorization.RoleContext, userID snowflake.ID, permission string) (*domain.UserView, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindPermission, authorization.OpCreate); err != nil {
		return nil, err
	}
	name := strings.ToUpper(strings.TrimSpace(permission))
	if name == "" {
		return nil, errs.Validation("permission", "permission name is required")
	}

	var out *domain.UserView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.view(tx, userID); err != nil {
			return err
		}
		if err := s.grantTx(tx, userID, name); err != nil {
			return err
		}
		view, err := s.view(tx, userID)
		out = view
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, out.User)
	s.audit(ctx, rc, "permission.granted", authorization.KindUser, userID, map[string]any{"permission": name})
	return out, nil
}

func (s *Service) Revoke(ctx context.Context, rc authorization.RoleContext, userID snowflake.ID, permission string) (*domain.UserView, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindPermission, authorization.OpDelete); err != nil {
		return nil, err
	}
	name := strings.ToUpper(strings.TrimSpace(permission))

	var out *domain.UserView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.view(tx, userID); err != nil {
			return err
		}
		perm, err := findPermission(tx, name)
		if err != nil {
			return err
		}
		if err := tx.Where("user_id = ? AND permission_id = ?", userID, perm.ID).
			Delete(&domain.UserPermission{}).Error; err != nil {
			return err
		}
		view, err := s.view(tx, userID)
		out = view
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, out.User)
	s.audit(ctx, rc, "permission.revoked", authorization.KindUser, userID, map[string]any{"permission": name})
	return out, nil
}

func (s *Service) grantTx(tx *gorm.DB, userID snowflake.ID, name string) error {
	perm, err := findPermission(tx, name)
	if err != nil {
		return err
	}
	link := domain.UserPermission{
		UserID:       userID,
		PermissionID: perm.ID,
		CreatedAt:    s.clock.Now(),
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
}

func (s *Service) view(conn *gorm.DB, id snowflake.ID) (*domain.UserView, error) {
	var user domain.User
	if err := conn.Where("id = ?", id).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound(authorization.KindUser, id)
		}
		return nil, err
	}
	names, err := permissionNames(conn, id)
	if err != nil {
		return nil, err
	}
	return &domain.UserView{User: user, Permissions: names}, nil
}

func (s *Service) invalidate(ctx context.Context, user domain.User) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.Invalidate(ctx, user.Username)
	s.invalidator.Invalidate(ctx, user.Email)
}

func (s *Service) audit(ctx context.Context, rc authorization.RoleContext, action, kind string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	target := id.String()
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    rc.ActorID(),
		Role:       string(rc.Role),
		Action:     action,
		TargetType: kind,
		TargetID:   &target,
		Metadata:   metadata,
	})
}

func findPermission(conn *gorm.DB, name string) (*domain.Permission, error) {
	var perm domain.Permission
	if err := conn.Where("name = ?", name).Take(&perm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Validation("permission", "unknown permission %q", name)
		}
		return nil, err
	}
	return &perm, nil
}
