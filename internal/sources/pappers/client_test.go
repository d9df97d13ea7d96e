package pappers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const companyJSON = `{
	"siren": "732829320",
	"nom_entreprise": "ACME",
	"forme_juridique": "SAS, société par actions simplifiée",
	"categorie_juridique": "5710",
	"code_naf": "62.01Z",
	"siege": {
		"siret": "73282932000074",
		"adresse_ligne_1": "10 rue de la Paix",
		"code_postal": "75002",
		"ville": "Paris",
		"pays": "France",
		"code_pays": "FR"
	},
	"representants": [
		{"nom_complet": "Jeanne Martin", "qualite": "Président"},
		{"nom_complet": "Paul Durand", "qualite": "Directeur général"}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(&Config{
		BaseURL: server.URL,
		APIKey:  "test-token",
		Timeout: 2 * time.Second,
	}, logger.NewTestLogger(t))
}

func TestClient_LookupBySiren(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/entreprise", r.URL.Path)
		assert.Equal(t, "732829320", r.URL.Query().Get("siren"))
		assert.Equal(t, "test-token", r.URL.Query().Get("api_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(companyJSON))
	})

	data, err := client.Lookup(context.Background(), models.LegalQuery{Kind: models.IdentifierSIREN, Value: "732829320"})
	require.NoError(t, err)

	assert.Equal(t, "ACME", data.CompanyName)
	assert.Equal(t, "Jeanne Martin", data.ManagerName)
	assert.Equal(t, "62.01Z", data.NafCode)
	require.NotNil(t, data.RegisteredAddress)
	assert.Equal(t, "73282932000074", data.RegisteredAddress.Siret)
	assert.Equal(t, "Paris", data.RegisteredAddress.City)
	assert.Equal(t, "FR", data.RegisteredAddress.CountryCode)
}

func TestClient_LookupBySiret(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "73282932000074", r.URL.Query().Get("siret"))
		assert.Empty(t, r.URL.Query().Get("siren"))
		_, _ = w.Write([]byte(companyJSON))
	})

	data, err := client.Lookup(context.Background(), models.LegalQuery{Kind: models.IdentifierSIRET, Value: "73282932000074"})
	require.NoError(t, err)
	assert.Equal(t, "732829320", data.Siren)
}

func TestClient_LookupByName(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recherche", r.URL.Path)
		assert.Equal(t, "Acme", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("par_page"))
		_, _ = w.Write([]byte(`{"total": 1, "resultats": [` + companyJSON + `]}`))
	})

	data, err := client.Lookup(context.Background(), models.LegalQuery{Kind: models.IdentifierName, Value: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "ACME", data.CompanyName)
}

func TestClient_NotFound(t *testing.T) {
	t.Run("empty search", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"total": 0, "resultats": []}`))
		})
		_, err := client.Lookup(context.Background(), models.LegalQuery{Kind: models.IdentifierName, Value: "Nobody"})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("404", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := client.Lookup(context.Background(), models.LegalQuery{Kind: models.IdentifierSIREN, Value: "000000000"})
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestClient_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Lookup(context.Background(), models.LegalQuery{Kind: models.IdentifierSIREN, Value: "732829320"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "500")
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(&Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond}, logger.NewNoOpLogger())

	_, err := client.Lookup(context.Background(), models.LegalQuery{Kind: models.IdentifierSIREN, Value: "732829320"})
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestToLegalData_NoSiegeNoRepresentants(t *testing.T) {
	data := toLegalData(&entreprise{Siren: "1", NomEntreprise: "X"})
	assert.Nil(t, data.RegisteredAddress)
	assert.Empty(t, data.ManagerName)
}
