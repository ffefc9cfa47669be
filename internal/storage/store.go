package storage

import (
	"context"

	"nanoforge/internal/model"
)

// Store defines persistence operations for named optimizer models.
type Store interface {
	Init(ctx context.Context) error
	SaveModel(ctx context.Context, name string, m model.OptimizerModel) error
	GetModel(ctx context.Context, name string) (model.OptimizerModel, bool, error)
}
