package csvfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeplan/internal/model"
)

const sample = `order_id,Pincode,city,dc_name,sa_name,order_status,fullName,address,weight_kg
1001,560034,Bengaluru,Koramangala DC,SA-1,Delivered,Asha,1 Main Rd,2.5
1002,560034,Bengaluru,Koramangala DC,SA-1,CANCELLED,Ravi,2 Main Rd,
1003,560095,Bengaluru,Koramangala DC,SA-2,Pending,"Meera, K",3 Main Rd,
`

func TestReadOrders(t *testing.T) {
	orders, err := ReadOrders(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "1001", orders[0].OrderID)
	assert.Equal(t, "Koramangala DC", orders[0].Store)
	require.NotNil(t, orders[0].Weight)
	assert.Equal(t, 2.5, *orders[0].Weight)
	assert.True(t, orders[1].Cancelled())
	assert.Nil(t, orders[2].Weight, "blank weight falls back later")
	assert.Equal(t, "Meera, K", orders[2].CustomerName)
}

func TestReadOrdersMissingStatusColumn(t *testing.T) {
	in := "order_id,Pincode,city,dc_name,sa_name,fullName,address\n1,2,c,s,a,n,x\n"
	_, err := ReadOrders(strings.NewReader(in))
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, []string{ColStatus}, ve.Missing)
}

func TestReadOrdersBadWeight(t *testing.T) {
	in := "order_id,Pincode,city,dc_name,sa_name,order_status,fullName,address,weight_kg\n1,2,c,s,a,ok,n,x,heavy\n"
	_, err := ReadOrders(strings.NewReader(in))
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 1, ve.Row)
	assert.Equal(t, ColWeight, ve.Column)
}

func TestReadOrdersZeroWeightIsKept(t *testing.T) {
	in := "order_id,Pincode,city,dc_name,sa_name,order_status,fullName,address,weight_kg\n1,2,c,s,a,ok,n,x,0\n2,2,c,s,a,ok,n,x, \n"
	orders, err := ReadOrders(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.NotNil(t, orders[0].Weight)
	assert.Equal(t, 0.0, *orders[0].Weight)
	assert.Equal(t, 0.0, orders[0].WeightOr(1.5))
	assert.Nil(t, orders[1].Weight)
	assert.Equal(t, 1.5, orders[1].WeightOr(1.5))
}

func TestReadOrdersRaggedRow(t *testing.T) {
	in := "order_id,Pincode,city,dc_name,sa_name,order_status,fullName,address\n1,2,c\n"
	_, err := ReadOrders(strings.NewReader(in))
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
}

func TestReadOrdersEmpty(t *testing.T) {
	_, err := ReadOrders(strings.NewReader(""))
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestAdapterFetchOrders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	orders, err := Adapter{Path: path}.FetchOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}

func TestWriteRows(t *testing.T) {
	var buf bytes.Buffer
	err := WriteRows(&buf, []model.Row{{City: "Bengaluru", Store: "Koramangala DC", ServiceArea: "SA-1", Route: "Koramangala DC/CEE_1", Sequence: 1, OrderID: "1001", CustomerName: "Asha", Address: "1 Main Rd, Blr"}})
	require.NoError(t, err)
	want := "city,dc_name,sa_name,route,sequence,order_id,fullName,address\n" +
		"Bengaluru,Koramangala DC,SA-1,Koramangala DC/CEE_1,1,1001,Asha,\"1 Main Rd, Blr\"\n"
	assert.Equal(t, want, buf.String())
}

func TestReadPincodes(t *testing.T) {
	pins, err := ReadPincodes(strings.NewReader("pincode,lat,lon\n560034,12.93,77.62\n"))
	require.NoError(t, err)
	assert.Equal(t, model.Position{Lat: 12.93, Lon: 77.62}, pins["560034"])
}
