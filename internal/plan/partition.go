package plan

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"routeplan/internal/model"
)

// Filter restricts planning to one city and/or one store. Empty fields
// match everything.
type Filter struct {
	City  string `json:"city,omitempty"`
	Store string `json:"store,omitempty"`
}

func (f Filter) match(o model.Order) bool {
	return (f.City == "" || o.City == f.City) && (f.Store == "" || o.Store == f.Store)
}

// Group is the immutable input of one service-area solve.
type Group struct {
	Key       model.GroupKey
	Orders    []model.Order // active orders in input order
	Cancelled int
}

// Partition groups orders by (city, store, service area). Groups are
// enumerated city by city, then store by store, then service area by
// service area, each in order of first appearance, so the groups of one
// store are contiguous. A group whose rows are all cancelled is kept with
// no orders.
func Partition(orders []model.Order, f Filter) []Group {
	type rank struct{ city, store, area int }
	cities := map[string]int{}
	stores := map[string]int{}
	index := map[model.GroupKey]int{}
	var groups []Group
	var ranks []rank
	for _, o := range orders {
		if !f.match(o) {
			continue
		}
		k := o.Key()
		i, ok := index[k]
		if !ok {
			sk := o.City + "\x00" + o.Store
			if _, ok := cities[o.City]; !ok {
				cities[o.City] = len(cities)
			}
			if _, ok := stores[sk]; !ok {
				stores[sk] = len(stores)
			}
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
			ranks = append(ranks, rank{city: cities[o.City], store: stores[sk], area: i})
		}
		if o.Cancelled() {
			groups[i].Cancelled++
			continue
		}
		groups[i].Orders = append(groups[i].Orders, o)
	}
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := ranks[order[i]], ranks[order[j]]
		if a.city != b.city {
			return a.city < b.city
		}
		if a.store != b.store {
			return a.store < b.store
		}
		return a.area < b.area
	})
	out := make([]Group, len(groups))
	for i, gi := range order {
		out[i] = groups[gi]
	}
	return out
}

// Validate checks every row before any group is planned.
func Validate(orders []model.Order) error {
	for i, o := range orders {
		row := i + 1
		for _, f := range []struct{ col, v string }{
			{"order_id", o.OrderID},
			{"city", o.City},
			{"dc_name", o.Store},
			{"sa_name", o.ServiceArea},
		} {
			if strings.TrimSpace(f.v) == "" {
				return &model.ValidationError{Row: row, Column: f.col, Reason: "value is required"}
			}
		}
		if w := o.Weight; w != nil && (*w < 0 || math.IsNaN(*w) || math.IsInf(*w, 0)) {
			return &model.ValidationError{Row: row, Column: "weight_kg", Reason: fmt.Sprintf("invalid weight %v", *w)}
		}
	}
	return nil
}
