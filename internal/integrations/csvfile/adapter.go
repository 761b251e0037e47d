package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"routeplan/internal/model"
)

// Column names of the order table.
const (
	ColOrderID  = "order_id"
	ColPincode  = "Pincode"
	ColCity     = "city"
	ColStore    = "dc_name"
	ColArea     = "sa_name"
	ColStatus   = "order_status"
	ColName     = "fullName"
	ColAddress  = "address"
	ColWeight   = "weight_kg"
	ColRoute    = "route"
	ColSequence = "sequence"
)

// Required lists the columns every order table must carry.
var Required = []string{ColOrderID, ColPincode, ColCity, ColStore, ColArea, ColStatus, ColName, ColAddress}

// OutputHeader is the column order of a written plan.
var OutputHeader = []string{ColCity, ColStore, ColArea, ColRoute, ColSequence, ColOrderID, ColName, ColAddress}

// Adapter reads orders from a CSV file on disk.
type Adapter struct {
	Path string
}

func (a Adapter) Name() string { return "csv-file" }

func (a Adapter) FetchOrders(ctx context.Context) ([]model.Order, error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	defer f.Close()
	return ReadOrders(f)
}

// ReadOrders parses an order table. A missing required column, a ragged row
// or an unparseable weight is a *model.ValidationError.
func ReadOrders(r io.Reader) ([]model.Order, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &model.ValidationError{Missing: Required, Reason: "empty input"}
	}
	if err != nil {
		return nil, readError(err)
	}
	idx := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var missing []string
	for _, c := range Required {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &model.ValidationError{Missing: missing}
	}
	wi, hasWeight := idx[ColWeight]
	get := func(rec []string, col string) string { return strings.TrimSpace(rec[idx[col]]) }

	var out []model.Order
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readError(err)
		}
		o := model.Order{
			OrderID:      get(rec, ColOrderID),
			Pincode:      get(rec, ColPincode),
			City:         get(rec, ColCity),
			Store:        get(rec, ColStore),
			ServiceArea:  get(rec, ColArea),
			Status:       get(rec, ColStatus),
			CustomerName: get(rec, ColName),
			Address:      get(rec, ColAddress),
		}
		if hasWeight {
			if v := strings.TrimSpace(rec[wi]); v != "" {
				w, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, &model.ValidationError{Row: row, Column: ColWeight, Reason: fmt.Sprintf("invalid weight %q", v)}
				}
				o.Weight = &w
			}
		}
		out = append(out, o)
	}
	return out, nil
}

func readError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &model.ValidationError{Row: pe.Line - 1, Reason: pe.Err.Error()}
	}
	return fmt.Errorf("read orders: %w", err)
}

// WriteRows writes the plan table with OutputHeader.
func WriteRows(w io.Writer, rows []model.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(OutputHeader); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	for _, r := range rows {
		rec := []string{r.City, r.Store, r.ServiceArea, r.Route, strconv.Itoa(r.Sequence), r.OrderID, r.CustomerName, r.Address}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// ReadPincodes parses a pincode,lat,lon table for the lookup provider.
func ReadPincodes(r io.Reader) (map[string]model.Position, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read pincodes: %w", err)
	}
	out := map[string]model.Position{}
	for i, rec := range recs {
		if len(rec) < 3 {
			return nil, fmt.Errorf("read pincodes: line %d: want pincode,lat,lon", i+1)
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if errLat != nil || errLon != nil {
			if i == 0 {
				continue // header
			}
			return nil, fmt.Errorf("read pincodes: line %d: bad coordinates", i+1)
		}
		out[strings.TrimSpace(rec[0])] = model.Position{Lat: lat, Lon: lon}
	}
	return out, nil
}
