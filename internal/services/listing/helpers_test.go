package listing

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsFinite(t *testing.T) {
	assert.True(t, isFinite(0))
	assert.True(t, isFinite(-77.21))
	assert.False(t, isFinite(math.NaN()))
	assert.False(t, isFinite(math.Inf(1)))
	assert.False(t, isFinite(math.Inf(-1)))
}

// Порядок полей в ответе фиксирован — это часть контракта вебхука
func TestMissingWebhookFields_Order(t *testing.T) {
	missing := missingWebhookFields("", "", "", nil, nil, nil, nil)
	assert.Equal(t, []string{
		"itemName", "category", "suggestedPriceINR", "estimatedWeightKg", "lat", "lon", "user_id",
	}, missing)
}

func TestMissingWebhookFields_Partial(t *testing.T) {
	price := 100.0
	lat := 12.97
	lon := 77.59

	missing := missingWebhookFields("Chair", "", "user-1", &price, nil, &lat, &lon)
	assert.Equal(t, []string{"category", "estimatedWeightKg"}, missing)
}

// Координаты приходят и числом, и строкой — оба варианта принимаются
func TestCoordinateUnmarshal(t *testing.T) {
	var body struct {
		Lat coordinate `json:"lat"`
		Lon coordinate `json:"lon"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"lat": 12.97, "lon": "77.59"}`), &body))

	lat := body.Lat.ptr()
	lon := body.Lon.ptr()
	require.NotNil(t, lat)
	require.NotNil(t, lon)
	assert.Equal(t, 12.97, *lat)
	assert.Equal(t, 77.59, *lon)
}

func TestCoordinateUnmarshal_Absent(t *testing.T) {
	var body struct {
		Lat coordinate `json:"lat"`
		Lon coordinate `json:"lon"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"lat": null}`), &body))
	assert.Nil(t, body.Lat.ptr())
	assert.Nil(t, body.Lon.ptr())
}

func TestCoordinateUnmarshal_NotANumber(t *testing.T) {
	var body struct {
		Lat coordinate `json:"lat"`
	}

	assert.Error(t, json.Unmarshal([]byte(`{"lat": "abc"}`), &body))
}

// Строка "NaN" разбирается, но отсекается проверкой конечности
func TestCoordinateUnmarshal_NaNString(t *testing.T) {
	var body struct {
		Lat coordinate `json:"lat"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"lat": "NaN"}`), &body))
	lat := body.Lat.ptr()
	require.NotNil(t, lat)
	assert.False(t, isFinite(*lat))
}

func TestMissingWebhookFields_Complete(t *testing.T) {
	price := 100.0
	weight := 4.5
	lat := 12.97
	lon := 77.59

	missing := missingWebhookFields("Chair", "Furniture", "user-1", &price, &weight, &lat, &lon)
	assert.Empty(t, missing)
}
