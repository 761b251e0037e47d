package geo

import (
	"context"
	"fmt"

	"routeplan/internal/model"
)

// PincodeTable resolves a pincode to a position. store.Memory and
// store.Postgres implement it.
type PincodeTable interface {
	Pincode(ctx context.Context, pincode string) (model.Position, bool, error)
}

// Lookup positions orders at their pincode's table entry, offset by the
// per-order jitter. Unknown pincodes go to Fallback, or fail with
// ErrUnknownPincode when Fallback is nil.
type Lookup struct {
	Table    PincodeTable
	Fallback Provider
}

func (l *Lookup) Position(ctx context.Context, o model.Order) (model.Position, error) {
	pos, ok, err := l.Table.Pincode(ctx, o.Pincode)
	if err != nil {
		return model.Position{}, fmt.Errorf("lookup pincode %q: %w", o.Pincode, err)
	}
	if !ok {
		if l.Fallback == nil {
			return model.Position{}, fmt.Errorf("lookup order %s: %w %q", o.OrderID, ErrUnknownPincode, o.Pincode)
		}
		return l.Fallback.Position(ctx, o)
	}
	dLat, dLon := jitter(o.OrderID)
	return model.Position{Lat: pos.Lat + dLat, Lon: pos.Lon + dLon}, nil
}
