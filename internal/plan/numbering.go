package plan

import (
	"fmt"
	"strconv"

	"routeplan/internal/model"
)

// Scope decides where route numbers restart.
type Scope string

const (
	ScopeStore       Scope = "store"
	ScopeServiceArea Scope = "service_area"
	ScopeCity        Scope = "city"
)

// VehiclePrefix precedes the route number in a label.
const VehiclePrefix = "CEE_"

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeStore, ScopeServiceArea, ScopeCity:
		return Scope(s), nil
	case "":
		return ScopeStore, nil
	}
	return "", fmt.Errorf("parse scope: unknown numbering scope %q", s)
}

// key identifies the counter a group draws from; name prefixes the label.
func (s Scope) key(k model.GroupKey) (key, name string) {
	switch s {
	case ScopeServiceArea:
		return k.City + "\x00" + k.Store + "\x00" + k.ServiceArea, k.ServiceArea
	case ScopeCity:
		return k.City, k.City
	default:
		return k.City + "\x00" + k.Store, k.Store
	}
}

// Number assigns route numbers 1..R per scope. Groups are visited in
// result order and vehicle slots in slot order, so used slots of one group
// get consecutive numbers. Only solved groups contribute.
func Number(results []GroupResult, scope Scope) []model.Assignment {
	counters := map[string]int{}
	var out []model.Assignment
	for _, r := range results {
		if r.Status != StatusSolved {
			continue
		}
		ck, name := scope.key(r.Key)
		slots := map[int]int{}
		for _, st := range r.Stops {
			n, ok := slots[st.Slot]
			if !ok {
				counters[ck]++
				n = counters[ck]
				slots[st.Slot] = n
			}
			out = append(out, model.Assignment{
				Group:    r.Key,
				OrderID:  st.OrderID,
				RouteNo:  n,
				Label:    name + "/" + VehiclePrefix + strconv.Itoa(n),
				Sequence: st.Seq,
			})
		}
	}
	return out
}
