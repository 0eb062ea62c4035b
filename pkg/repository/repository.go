package repository

import (
	"context"

	"github.com/smallbiznis/portyard/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a thin generic gorm store for master-data style tables.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	FindByID(ctx context.Context, id any) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, id any, values map[string]any) (int64, error)
	Delete(ctx context.Context, id any) (int64, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
