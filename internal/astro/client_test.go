package astro

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/astropulse/astropulse/pkg/logger"
	"github.com/astropulse/astropulse/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBirth = BirthInput{
	Date:      "1990-04-12",
	Time:      "06:45",
	Latitude:  13.0827,
	Longitude: 80.2707,
	Timezone:  "Asia/Kolkata",
}

func testClient(url string) *Client {
	return NewClient(Config{BaseURL: url, APIKey: "test-key", Timeout: time.Second}, logger.NewLogger(logger.WithLevel("error")))
}

func TestCalculateChart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chart", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Birth BirthInput `json:"birth"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1990-04-12", req.Birth.Date)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"planets": map[string]string{"sun": "aries"},
			"houses":  []int{1, 2, 3},
			"dashas":  map[string]string{"maha": "venus"},
		})
	}))
	defer srv.Close()

	chart, err := testClient(srv.URL).CalculateChart(context.Background(), testBirth)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sun":"aries"}`, string(chart.Planets))
	assert.JSONEq(t, `[1,2,3]`, string(chart.Houses))
}

func TestCurrentTransits(t *testing.T) {
	starts := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transits", r.URL.Path)
		json.NewEncoder(w).Encode(TransitData{
			Summary: "Saturn squares natal moon",
			Events: []TransitEvent{{
				Planet:      "saturn",
				TransitType: "square",
				Description: "pressure at work",
				Severity:    "warning",
				StartsAt:    starts,
				EndsAt:      starts.Add(48 * time.Hour),
			}},
		})
	}))
	defer srv.Close()

	transits, err := testClient(srv.URL).CurrentTransits(context.Background(), testBirth, "2026-08-26")
	require.NoError(t, err)
	assert.Equal(t, "Saturn squares natal moon", transits.Summary)
	require.Len(t, transits.Events, 1)
	assert.Equal(t, "saturn", transits.Events[0].Planet)
}

func TestMatchKuta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/kuta", r.URL.Path)
		json.NewEncoder(w).Encode(KutaResult{
			Kutas:      json.RawMessage(`{"varna":1,"tara":3}`),
			TotalScore: 24.5,
			MaxScore:   36,
			Summary:    "a steady match",
		})
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).MatchKuta(context.Background(), testBirth, testBirth)
	require.NoError(t, err)
	assert.Equal(t, 24.5, result.TotalScore)
	assert.JSONEq(t, `{"varna":1,"tara":3}`, string(result.Kutas))
}

func TestServerErrorReadsAsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CalculateChart(context.Background(), testBirth)
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeUnavailable, appErr.Code)
}

func TestClientErrorReadsAsBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad birth", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CurrentTransits(context.Background(), testBirth, "2026-08-26")
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeBackendError, appErr.Code)
}

func TestUnreachableBackend(t *testing.T) {
	// Nothing listens on this address.
	_, err := testClient("http://127.0.0.1:1").MatchKuta(context.Background(), testBirth, testBirth)
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeUnavailable, appErr.Code)
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CalculateChart(context.Background(), testBirth)
	require.Error(t, err)
	var appErr *utils.CustomError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, utils.CodeBackendError, appErr.Code)
}
