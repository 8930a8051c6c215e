package irradiance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func archiveBody(t *testing.T, days int, value float64) []byte {
	t.Helper()
	values := make([]*float64, days)
	times := make([]string, days)
	for i := range values {
		v := value
		values[i] = &v
		times[i] = fmt.Sprintf("day-%d", i)
	}
	body, err := json.Marshal(map[string]interface{}{
		"latitude":  52.0,
		"longitude": 19.0,
		"daily": map[string]interface{}{
			"time":                    times,
			"shortwave_radiation_sum": values,
		},
	})
	require.NoError(t, err)
	return body
}

func TestOpenMeteoAnnualIrradiation(t *testing.T) {
	var requested atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested.Store(r.URL.Query())
		assert.Equal(t, "/v1/archive", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(archiveBody(t, 365, 10))
	}))
	defer server.Close()

	client := NewOpenMeteo(OpenMeteoOptions{BaseURL: server.URL})
	reading, err := client.AnnualIrradiation(context.Background(), Location{Latitude: 52.23, Longitude: 21.01})
	require.NoError(t, err)

	// 365 days * 10 MJ/m² * 0.277
	assert.InDelta(t, 1011.05, reading.KWhPerM2, 1e-6)
	assert.Equal(t, 365, reading.Days)
	assert.Equal(t, []int{2022}, reading.Years)
	assert.Equal(t, "open-meteo", reading.Source)

	query := requested.Load().(url.Values)
	assert.Equal(t, []string{"52.23"}, query["latitude"])
	assert.Equal(t, []string{"21.01"}, query["longitude"])
	assert.Equal(t, []string{"2022-01-01"}, query["start_date"])
	assert.Equal(t, []string{"2022-12-31"}, query["end_date"])
	assert.Equal(t, []string{"shortwave_radiation_sum"}, query["daily"])
	assert.Equal(t, []string{"auto"}, query["timezone"])
}

func TestOpenMeteoAveragesYears(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		value := 10.0
		if strings.HasPrefix(r.URL.Query().Get("start_date"), "2021") {
			value = 12.0
		}
		_, _ = w.Write(archiveBody(t, 100, value))
	}))
	defer server.Close()

	client := NewOpenMeteo(OpenMeteoOptions{BaseURL: server.URL + "/", Years: []int{2021, 2022}})
	reading, err := client.AnnualIrradiation(context.Background(), Location{Latitude: 50, Longitude: 20})
	require.NoError(t, err)

	// (100*12*0.277 + 100*10*0.277) / 2
	assert.InDelta(t, 304.7, reading.KWhPerM2, 1e-6)
	assert.Equal(t, 200, reading.Days)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestOpenMeteoUnavailable(t *testing.T) {
	nullDay := []byte(`{"daily":{"time":["2022-01-01","2022-01-02"],"shortwave_radiation_sum":[5.1,null]}}`)

	tests := []struct {
		name    string
		status  int
		body    []byte
		message string
	}{
		{"Server error", http.StatusInternalServerError, []byte(`oops`), "status 500"},
		{"Api error body", http.StatusBadRequest, []byte(`{"error":true,"reason":"Latitude must be in range"}`), "Latitude must be in range"},
		{"Error flag with 200", http.StatusOK, []byte(`{"error":true,"reason":"quota"}`), "quota"},
		{"Malformed json", http.StatusOK, []byte(`{"daily":`), "malformed"},
		{"Empty series", http.StatusOK, []byte(`{"daily":{"time":[],"shortwave_radiation_sum":[]}}`), "no daily values"},
		{"Missing day", http.StatusOK, nullDay, "missing day 2"},
		{"Negative day", http.StatusOK, []byte(`{"daily":{"shortwave_radiation_sum":[1,-2]}}`), "invalid value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			}))
			defer server.Close()

			client := NewOpenMeteo(OpenMeteoOptions{BaseURL: server.URL})
			reading, err := client.AnnualIrradiation(context.Background(), Location{Latitude: 52, Longitude: 19})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnavailable), "expected ErrUnavailable, got %v", err)
			assert.Contains(t, err.Error(), tt.message)
			assert.Zero(t, reading)
		})
	}
}

func TestOpenMeteoTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := server.URL
	server.Close()

	client := NewOpenMeteo(OpenMeteoOptions{BaseURL: closedURL, Timeout: time.Second})
	_, err := client.AnnualIrradiation(context.Background(), Location{Latitude: 52, Longitude: 19})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	var unavailableErr *UnavailableError
	require.ErrorAs(t, err, &unavailableErr)
	assert.NotNil(t, unavailableErr.Err)
}

func TestOpenMeteoCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archiveBody(t, 10, 1))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewOpenMeteo(OpenMeteoOptions{BaseURL: server.URL})
	_, err := client.AnnualIrradiation(ctx, Location{Latitude: 52, Longitude: 19})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenMeteoInvalidLocation(t *testing.T) {
	client := NewOpenMeteo(OpenMeteoOptions{BaseURL: "http://127.0.0.1:0"})

	for _, loc := range []Location{{Latitude: 91}, {Latitude: -90.5}, {Longitude: 181}, {Longitude: -200}} {
		_, err := client.AnnualIrradiation(context.Background(), loc)
		assert.ErrorIs(t, err, ErrInvalidLocation, "location %v", loc)
		assert.NotErrorIs(t, err, ErrUnavailable, "location %v", loc)
	}
}

func TestStaticProvider(t *testing.T) {
	loc := Location{Latitude: 52, Longitude: 19}

	reading, err := Static{KWhPerM2: 1100}.AnnualIrradiation(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, 1100.0, reading.KWhPerM2)
	assert.Equal(t, loc, reading.Location)

	_, err = Static{KWhPerM2: -1}.AnnualIrradiation(context.Background(), loc)
	assert.ErrorIs(t, err, ErrUnavailable)

	zero, err := Static{}.AnnualIrradiation(context.Background(), loc)
	require.NoError(t, err, "zero irradiation is a value, not a failure")
	assert.Zero(t, zero.KWhPerM2)
}
