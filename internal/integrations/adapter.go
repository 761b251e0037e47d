package integrations

import (
	"context"

	"routeplan/internal/model"
)

// OrderSource supplies the order table for one planning run.
type OrderSource interface {
	Name() string
	FetchOrders(ctx context.Context) ([]model.Order, error)
}

// Static serves orders already in memory, for example a decoded JSON body.
type Static []model.Order

func (s Static) Name() string { return "static" }

func (s Static) FetchOrders(context.Context) ([]model.Order, error) {
	return append([]model.Order(nil), s...), nil
}
