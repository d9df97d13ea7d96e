package places

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadgen-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	searchJSON = `{
		"status": "OK",
		"results": [{
			"place_id": "place-1",
			"name": "Acme Paris",
			"formatted_address": "10 Rue de la Paix, 75002 Paris, France",
			"rating": 4.6,
			"user_ratings_total": 128,
			"types": ["point_of_interest", "store", "establishment"]
		}]
	}`
	detailsJSON = `{
		"status": "OK",
		"result": {
			"formatted_phone_number": "01 23 45 67 89",
			"website": "https://acme.example",
			"types": ["electronics_store", "store"],
			"address_components": [
				{"long_name": "10", "short_name": "10", "types": ["street_number"]},
				{"long_name": "Rue de la Paix", "short_name": "Rue de la Paix", "types": ["route"]},
				{"long_name": "Paris", "short_name": "Paris", "types": ["locality", "political"]},
				{"long_name": "France", "short_name": "FR", "types": ["country", "political"]},
				{"long_name": "75002", "short_name": "75002", "types": ["postal_code"]}
			]
		}
	}`
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(&Config{
		BaseURL:  server.URL,
		APIKey:   "places-key",
		Language: "fr",
		Timeout:  2 * time.Second,
	}, logger.NewTestLogger(t))
}

func TestClient_Lookup(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "places-key", r.URL.Query().Get("key"))
		assert.Equal(t, "fr", r.URL.Query().Get("language"))

		switch r.URL.Path {
		case "/textsearch/json":
			assert.Equal(t, "ACME 75002 Paris", r.URL.Query().Get("query"))
			_, _ = w.Write([]byte(searchJSON))
		case "/details/json":
			assert.Equal(t, "place-1", r.URL.Query().Get("place_id"))
			_, _ = w.Write([]byte(detailsJSON))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	location := "75002 Paris"
	data, err := client.Lookup(context.Background(), "ACME", &location)
	require.NoError(t, err)

	assert.Equal(t, "Acme Paris", data.Name)
	assert.Equal(t, "electronics_store", data.BusinessType)
	assert.Equal(t, "01 23 45 67 89", data.Phone)
	assert.Equal(t, "https://acme.example", data.Website)
	require.NotNil(t, data.Rating)
	assert.Equal(t, 4.6, *data.Rating)
	require.NotNil(t, data.ReviewCount)
	assert.Equal(t, 128, *data.ReviewCount)

	require.NotNil(t, data.Address)
	assert.Equal(t, "10 Rue de la Paix", data.Address.Line1)
	assert.Equal(t, "75002", data.Address.PostalCode)
	assert.Equal(t, "Paris", data.Address.City)
	assert.Equal(t, "FR", data.Address.CountryCode)
}

func TestClient_LookupDetailsFailureDegrades(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/details/json" {
			_, _ = w.Write([]byte(`{"status": "INVALID_REQUEST"}`))
			return
		}
		_, _ = w.Write([]byte(searchJSON))
	})

	data, err := client.Lookup(context.Background(), "ACME", nil)
	require.NoError(t, err)

	assert.Equal(t, "Acme Paris", data.Name)
	assert.Equal(t, "store", data.BusinessType)
	assert.Empty(t, data.Phone)
	require.NotNil(t, data.Address)
	assert.Equal(t, "10 Rue de la Paix, 75002 Paris, France", data.Address.Line1)
	assert.Empty(t, data.Address.PostalCode)
}

func TestClient_ZeroResults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	})

	_, err := client.Lookup(context.Background(), "Nobody", nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClient_ErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "REQUEST_DENIED", "error_message": "bad key"}`))
	})

	_, err := client.Lookup(context.Background(), "ACME", nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond}, logger.NewNoOpLogger())

	_, err := client.Lookup(context.Background(), "ACME", nil)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestToAddress_Empty(t *testing.T) {
	assert.Nil(t, toAddress(nil))
	assert.Nil(t, toAddress([]addressComponent{{LongName: "Europe", Types: []string{"continent"}}}))
}
