package geo

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strconv"
	"strings"

	"routeplan/internal/model"
)

// Provider maps an order to a position. Implementations must return the
// same position for the same order.
type Provider interface {
	Position(ctx context.Context, o model.Order) (model.Position, error)
}

// ErrUnknownPincode is returned by Lookup when a pincode has no entry and no
// fallback is configured.
var ErrUnknownPincode = errors.New("unknown pincode")

const (
	DefaultBaseLat = 12.97
	DefaultBaseLon = 77.59
)

// Synthetic derives a stand-in position from the pincode and order id:
//
//	lat = base_lat + (pin mod 100)*0.01 + (id mod 100)*0.0001
//	lon = base_lon + (pin mod 100)*0.01 + (id mod 77)*0.0001
type Synthetic struct {
	BaseLat float64
	BaseLon float64
}

func NewSynthetic() Synthetic {
	return Synthetic{BaseLat: DefaultBaseLat, BaseLon: DefaultBaseLon}
}

func (s Synthetic) Position(_ context.Context, o model.Order) (model.Position, error) {
	pin := Key(o.Pincode)
	lat := s.BaseLat + float64(pin%100)*0.01
	lon := s.BaseLon + float64(pin%100)*0.01
	dLat, dLon := jitter(o.OrderID)
	return model.Position{Lat: lat + dLat, Lon: lon + dLon}, nil
}

// jitter separates orders that share a pincode.
func jitter(orderID string) (float64, float64) {
	id := Key(orderID)
	return float64(id%100) * 0.0001, float64(id%77) * 0.0001
}

// Key returns the numeric value of s when it is an integer (including
// integral floats such as "560034.0"), otherwise its FNV-1a hash. Negative
// numbers use their absolute value.
func Key(s string) uint64 {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return uint64(-n)
		}
		return uint64(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<62 {
		return uint64(math.Abs(f))
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64() >> 1
}
