package storage

import (
	"context"

	"mintrunner/internal/model"
)

// Storage defines a sink for computed mint rows.
type Storage interface {
	PutMintRow(ctx context.Context, row model.MintRow) error
}
