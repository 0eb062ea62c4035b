package service

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SourceParams struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

// PermissionReader answers permission lookups for the resolver. Names are
// read from view_user_permissions first and from the join tables when the
// view is unavailable.
type PermissionReader struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewPermissionSource(p SourceParams) authorization.PermissionSource {
	return NewPermissionReader(p.DB, p.Log)
}

func NewPermissionReader(db *gorm.DB, log *zap.Logger) *PermissionReader {
	return &PermissionReader{db: db, log: log.Named("user.permissions")}
}

// PermissionsFor looks the identifier up by username or email. Inactive users
// are reported as not found.
func (r *PermissionReader) PermissionsFor(ctx context.Context, identifier string) (authorization.PermissionSet, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return authorization.PermissionSet{}, nil
	}

	var user domain.User
	err := r.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return authorization.PermissionSet{}, nil
		}
		return authorization.PermissionSet{}, err
	}
	if !user.IsActive {
		return authorization.PermissionSet{}, nil
	}

	names, tier, err := r.names(ctx, user)
	if err != nil {
		return authorization.PermissionSet{}, err
	}
	return authorization.PermissionSet{
		Found:     true,
		UserID:    user.ID,
		Username:  user.Username,
		Superuser: user.IsSuperuser,
		Names:     names,
		Tier:      tier,
	}, nil
}

func (r *PermissionReader) names(ctx context.Context, user domain.User) ([]string, authorization.Tier, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Raw(`SELECT permission_name FROM view_user_permissions WHERE user_id = ? ORDER BY permission_name`, user.ID).
		Scan(&names).Error
	if err == nil {
		if names == nil {
			names = []string{}
		}
		return names, authorization.TierView, nil
	}
	r.log.Warn("permission view unavailable, reading tables",
		zap.String("user_id", user.ID.String()),
		zap.Error(err),
	)

	names, err = permissionNames(r.db.WithContext(ctx), user.ID)
	if err != nil {
		return nil, authorization.TierTable, err
	}
	return names, authorization.TierTable, nil
}

func permissionNames(conn *gorm.DB, userID any) ([]string, error) {
	var names []string
	err := conn.Table("user_permissions AS up").
		Select("p.name").
		Joins("JOIN permissions p ON p.id = up.permission_id").
		Where("up.user_id = ?", userID).
		Order("p.name").
		Scan(&names).Error
	if names == nil {
		names = []string{}
	}
	return names, err
}
