package types

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsKnownPrice(t *testing.T) {
	assert.True(t, IsKnownPrice(0))
	assert.True(t, IsKnownPrice(19.99))
	assert.False(t, IsKnownPrice(UnknownPrice))
	assert.False(t, IsKnownPrice(math.NaN()))
	assert.False(t, IsKnownPrice(-1))
}

func TestProductLabel(t *testing.T) {
	assert.Equal(t, "Kindle (B0DWRBVDN6)", Product{SKU: "B0DWRBVDN6", Name: "Kindle"}.Label())
	assert.Equal(t, "B0DWRBVDN6", Product{SKU: "B0DWRBVDN6", Name: "  "}.Label())
}

func TestObservationJSONUnknownPriceIsNull(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	obs := Observation{SKU: "X1", Site: "example.com", Price: UnknownPrice, Available: true, Timestamp: at}

	raw, err := json.Marshal(obs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sku":"X1","site":"example.com","price":null,"shipping":0,"available":true,"timestamp":"2024-03-01T12:00:00Z"}`, string(raw))

	var back Observation
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.False(t, back.PriceKnown())
	assert.Equal(t, at, back.Timestamp)

	raw, err = json.Marshal(&Observation{SKU: "X1", Price: 40})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"price":40`)
}
