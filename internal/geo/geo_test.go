package geo

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeplan/internal/model"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSyntheticFormula(t *testing.T) {
	p, err := NewSynthetic().Position(context.Background(), model.Order{OrderID: "1234", Pincode: "560034"})
	require.NoError(t, err)
	// pin%100 = 34, id%100 = 34, id%77 = 2
	assert.True(t, near(p.Lat, 12.97+0.34+0.0034), "lat %v", p.Lat)
	assert.True(t, near(p.Lon, 77.59+0.34+0.0002), "lon %v", p.Lon)
}

func TestSyntheticDeterministic(t *testing.T) {
	s := NewSynthetic()
	o := model.Order{OrderID: "ORD-A17", Pincode: "KA-560"}
	a, _ := s.Position(context.Background(), o)
	b, _ := s.Position(context.Background(), o)
	assert.Equal(t, a, b)
}

func TestKey(t *testing.T) {
	assert.Equal(t, uint64(560034), Key("560034"))
	assert.Equal(t, uint64(560034), Key(" 560034.0 "))
	assert.Equal(t, uint64(7), Key("-7"))
	assert.Equal(t, Key("abc"), Key("abc"))
	assert.NotEqual(t, Key("abc"), Key("abd"))
}

type table map[string]model.Position

func (t table) Pincode(_ context.Context, pin string) (model.Position, bool, error) {
	p, ok := t[pin]
	return p, ok, nil
}

func TestLookupJittersAndFallsBack(t *testing.T) {
	l := &Lookup{Table: table{"560001": {Lat: 12.5, Lon: 77.5}}, Fallback: NewSynthetic()}
	ctx := context.Background()
	p, err := l.Position(ctx, model.Order{OrderID: "101", Pincode: "560001"})
	require.NoError(t, err)
	assert.True(t, near(p.Lat, 12.5+0.0001) && near(p.Lon, 77.5+0.0024), "%+v", p)

	fb, err := l.Position(ctx, model.Order{OrderID: "101", Pincode: "560099"})
	require.NoError(t, err)
	want, _ := NewSynthetic().Position(ctx, model.Order{OrderID: "101", Pincode: "560099"})
	assert.Equal(t, want, fb)

	l.Fallback = nil
	_, err = l.Position(ctx, model.Order{OrderID: "101", Pincode: "560099"})
	assert.True(t, errors.Is(err, ErrUnknownPincode))
}

type counting struct {
	next  Provider
	calls int
}

func (c *counting) Position(ctx context.Context, o model.Order) (model.Position, error) {
	c.calls++
	return c.next.Position(ctx, o)
}

func TestRedisCacheReadThrough(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &counting{next: NewSynthetic()}
	c := NewRedisCache(client, inner, time.Hour, "synthetic", nil)
	ctx := context.Background()
	o := model.Order{OrderID: "55", Pincode: "560010"}

	first, err := c.Position(ctx, o)
	require.NoError(t, err)
	second, err := c.Position(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "second call is served from redis")
	assert.True(t, mr.Exists(c.key(o)))
	assert.True(t, strings.HasPrefix(c.key(o), "routeplan:pos:v1:synthetic:"))
}

func TestRedisCacheBypassOnFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	inner := &counting{next: NewSynthetic()}
	c := NewRedisCache(client, inner, time.Minute, "synthetic", nil)
	mr.Close()

	p, err := c.Position(context.Background(), model.Order{OrderID: "9", Pincode: "1"})
	require.NoError(t, err, "cache failures are not fatal")
	want, _ := NewSynthetic().Position(context.Background(), model.Order{OrderID: "9", Pincode: "1"})
	assert.Equal(t, want, p)
}

func TestRedisCacheDiscardsCorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inner := &counting{next: NewSynthetic()}
	c := NewRedisCache(client, inner, time.Minute, "synthetic", nil)
	o := model.Order{OrderID: "2", Pincode: "1"}
	require.NoError(t, mr.Set(c.key(o), "garbage"))
	_, err := c.Position(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestRedisCacheKeysSeparateProviders(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()
	o := model.Order{OrderID: "7", Pincode: "560001"}

	blr := &counting{next: Synthetic{BaseLat: 12.97, BaseLon: 77.59}}
	hyd := &counting{next: Synthetic{BaseLat: 17.38, BaseLon: 78.48}}
	a := NewRedisCache(client, blr, time.Hour, Namespace("synthetic", 12.97, 77.59), nil)
	b := NewRedisCache(client, hyd, time.Hour, Namespace("synthetic", 17.38, 78.48), nil)

	pa, err := a.Position(ctx, o)
	require.NoError(t, err)
	pb, err := b.Position(ctx, o)
	require.NoError(t, err)
	assert.NotEqual(t, pa, pb, "a new base location is not served stale positions")
	assert.Equal(t, 1, hyd.calls)
	assert.NotEqual(t, a.key(o), b.key(o))
}

func TestRedisCacheKeySeparators(t *testing.T) {
	c := NewRedisCache(nil, nil, time.Minute, "synthetic", nil)
	x := model.Order{Pincode: "56:1", OrderID: "2"}
	y := model.Order{Pincode: "56", OrderID: "1:2"}
	assert.NotEqual(t, c.key(x), c.key(y))
}
