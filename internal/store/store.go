package store

import (
	"context"

	"routeplan/internal/model"
)

// CoordinateStore is the pincode table behind geo.Lookup.
type CoordinateStore interface {
	Pincode(ctx context.Context, pincode string) (model.Position, bool, error)
	PutPincodes(ctx context.Context, entries map[string]model.Position) error
	Ping(ctx context.Context) error
	Close() error
}
