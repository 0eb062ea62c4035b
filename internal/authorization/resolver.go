package authorization

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/cache"
	"github.com/smallbiznis/portyard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Tier names the source that served a permission lookup.
type Tier string

const (
	TierView  Tier = "view"
	TierTable Tier = "table"
)

// PermissionSet is what the user store knows about an identifier.
type PermissionSet struct {
	Found     bool
	UserID    snowflake.ID
	Username  string
	Superuser bool
	Names     []string
	Tier      Tier
}

type PermissionSource interface {
	PermissionsFor(ctx context.Context, identifier string) (PermissionSet, error)
}

type ResolverParams struct {
	fx.In

	Log    *zap.Logger
	Source PermissionSource
	Store  cache.Store
	Policy *config.PolicyHolder `optional:"true"`
}

// Resolver turns a principal into a RoleContext. Results are cached for the
// policy role_cache_ttl and dropped by Invalidate when grants change.
type Resolver struct {
	log    *zap.Logger
	source PermissionSource
	store  cache.Store
	policy *config.PolicyHolder
}

func NewResolver(p ResolverParams) *Resolver {
	store := p.Store
	if store == nil {
		store = cache.NewMemoryStore()
	}
	return &Resolver{
		log:    p.Log.Named("authorization.resolver"),
		source: p.Source,
		store:  store,
		policy: p.Policy,
	}
}

func (r *Resolver) Resolve(ctx context.Context, principal Principal) RoleContext {
	identifier := strings.TrimSpace(principal.Identifier)
	if identifier == "" {
		return Guest()
	}

	key := roleCacheKey(identifier, principal.Elevated)
	var cached RoleContext
	if ok, err := r.store.GetJSON(ctx, key, &cached); err != nil {
		r.log.Warn("role cache read failed", zap.String("identifier", identifier), zap.Error(err))
	} else if ok {
		return cached
	}

	set, err := r.source.PermissionsFor(ctx, identifier)
	if err != nil {
		r.log.Warn("permission lookup failed, resolving as guest", zap.String("identifier", identifier), zap.Error(err))
		return Guest()
	}
	if !set.Found {
		return Guest()
	}

	rc := ResolveRole(Principal{Identifier: identifier, Elevated: principal.Elevated || set.Superuser}, set.Names)
	rc.UserID = set.UserID

	if err := r.store.SetJSON(ctx, key, rc, r.policy.Get().RoleCacheTTL); err != nil {
		r.log.Warn("role cache write failed", zap.String("identifier", identifier), zap.Error(err))
	}
	r.log.Debug("role resolved",
		zap.String("identifier", identifier),
		zap.String("role", string(rc.Role)),
		zap.String("tier", string(set.Tier)),
	)
	return rc
}

// Invalidate drops cached role contexts for identifier.
func (r *Resolver) Invalidate(ctx context.Context, identifier string) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return
	}
	if err := r.store.Delete(ctx, roleCacheKey(identifier, false), roleCacheKey(identifier, true)); err != nil {
		r.log.Warn("role cache invalidation failed", zap.String("identifier", identifier), zap.Error(err))
	}
}

func roleCacheKey(identifier string, elevated bool) string {
	flag := "std"
	if elevated {
		flag = "elevated"
	}
	return cache.Key("role", identifier, flag)
}
