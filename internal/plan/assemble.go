package plan

import (
	"fmt"
	"strings"

	"routeplan/internal/model"
)

// Mismatch is one assignment whose order id did not join exactly one input
// row.
type Mismatch struct {
	OrderID string         `json:"orderId"`
	Group   model.GroupKey `json:"group"`
	Matches int            `json:"matches"`
}

// DataIntegrityFault aborts a run when assignments cannot be joined back to
// the input unambiguously.
type DataIntegrityFault struct {
	Mismatches []Mismatch
}

func (e *DataIntegrityFault) Error() string {
	parts := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		parts = append(parts, fmt.Sprintf("order %s in %s matched %d rows", m.OrderID, m.Group, m.Matches))
	}
	return "data integrity fault: " + strings.Join(parts, "; ")
}

// Assemble joins assignments to the display metadata of all input rows
// (cancelled ones included) by order id.
func Assemble(assignments []model.Assignment, orders []model.Order) ([]model.Row, error) {
	byID := map[string][]int{}
	for i, o := range orders {
		byID[o.OrderID] = append(byID[o.OrderID], i)
	}
	type seenKey struct {
		id    string
		group model.GroupKey
	}
	seen := map[seenKey]bool{}
	var bad []Mismatch
	rows := make([]model.Row, 0, len(assignments))
	for _, a := range assignments {
		matches := byID[a.OrderID]
		if len(matches) != 1 {
			k := seenKey{a.OrderID, a.Group}
			if !seen[k] {
				seen[k] = true
				bad = append(bad, Mismatch{OrderID: a.OrderID, Group: a.Group, Matches: len(matches)})
			}
			continue
		}
		o := orders[matches[0]]
		rows = append(rows, model.Row{
			City:         a.Group.City,
			Store:        a.Group.Store,
			ServiceArea:  a.Group.ServiceArea,
			Route:        a.Label,
			Sequence:     a.Sequence,
			OrderID:      a.OrderID,
			CustomerName: o.CustomerName,
			Address:      o.Address,
		})
	}
	if len(bad) > 0 {
		return nil, &DataIntegrityFault{Mismatches: bad}
	}
	return rows, nil
}
