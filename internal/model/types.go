package model

import "strings"

// Core domain types shared by ingestion, planning and the API.

// Position is a geographic coordinate in decimal degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Order is one input row. Display metadata (CustomerName, Address) is only
// read when the result table is assembled. A nil Weight means the input
// carried no weight and the planner's per-order default applies; an
// explicit zero is kept as zero.
type Order struct {
	OrderID      string   `json:"orderId"`
	Pincode      string   `json:"pincode"`
	City         string   `json:"city"`
	Store        string   `json:"store"`
	ServiceArea  string   `json:"serviceArea"`
	Status       string   `json:"status,omitempty"`
	Weight       *float64 `json:"weightKg,omitempty"`
	CustomerName string   `json:"customerName,omitempty"`
	Address      string   `json:"address,omitempty"`
}

// Kg returns a pointer to v for populating Order.Weight.
func Kg(v float64) *float64 { return &v }

// WeightOr returns the order's weight, or def when none was given.
func (o Order) WeightOr(def float64) float64 {
	if o.Weight == nil {
		return def
	}
	return *o.Weight
}

// Cancelled reports whether the order is excluded from planning.
func (o Order) Cancelled() bool {
	s := strings.TrimSpace(o.Status)
	return strings.EqualFold(s, "cancelled") || strings.EqualFold(s, "canceled")
}

// GroupKey identifies one service-area group.
type GroupKey struct {
	City        string `json:"city"`
	Store       string `json:"store"`
	ServiceArea string `json:"serviceArea"`
}

// Key returns the group the order belongs to.
func (o Order) Key() GroupKey {
	return GroupKey{City: o.City, Store: o.Store, ServiceArea: o.ServiceArea}
}

func (k GroupKey) String() string {
	return k.City + "/" + k.Store + "/" + k.ServiceArea
}

// Assignment places one order on a numbered route.
type Assignment struct {
	Group    GroupKey `json:"group"`
	OrderID  string   `json:"orderId"`
	RouteNo  int      `json:"routeNo"`
	Label    string   `json:"route"`
	Sequence int      `json:"sequence"`
}

// Row is one line of the final output table.
type Row struct {
	City         string `json:"city"`
	Store        string `json:"store"`
	ServiceArea  string `json:"serviceArea"`
	Route        string `json:"route"`
	Sequence     int    `json:"sequence"`
	OrderID      string `json:"orderId"`
	CustomerName string `json:"customerName"`
	Address      string `json:"address"`
}
