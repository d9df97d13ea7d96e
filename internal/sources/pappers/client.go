// Package pappers is a client for the Pappers French company registry API.
package pappers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/models"
)

var (
	ErrNotFound = errors.New("PAPPERS_COMPANY_NOT_FOUND")
	ErrTimeout  = errors.New("PAPPERS_TIMEOUT")
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	config *Config
	client *http.Client
	logger logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.With(map[string]interface{}{
			"source": models.SourcePappers,
		}),
	}
}

type representant struct {
	NomComplet string `json:"nom_complet"`
	Qualite    string `json:"qualite"`
}

type siege struct {
	Siret         string `json:"siret"`
	AdresseLigne1 string `json:"adresse_ligne_1"`
	AdresseLigne2 string `json:"adresse_ligne_2"`
	CodePostal    string `json:"code_postal"`
	Ville         string `json:"ville"`
	Pays          string `json:"pays"`
	CodePays      string `json:"code_pays"`
}

type entreprise struct {
	Siren              string         `json:"siren"`
	NomEntreprise      string         `json:"nom_entreprise"`
	FormeJuridique     string         `json:"forme_juridique"`
	CategorieJuridique string         `json:"categorie_juridique"`
	CodeNaf            string         `json:"code_naf"`
	Siege              *siege         `json:"siege"`
	Representants      []representant `json:"representants"`
}

type rechercheResponse struct {
	Total     int          `json:"total"`
	Resultats []entreprise `json:"resultats"`
}

// Lookup fetches a company by SIREN, SIRET or name. Name searches return the
// first hit.
func (c *Client) Lookup(ctx context.Context, q models.LegalQuery) (*models.LegalData, error) {
	params := url.Values{}
	params.Set("api_token", c.config.APIKey)

	var path string
	switch q.Kind {
	case models.IdentifierSIREN:
		path = "/entreprise"
		params.Set("siren", q.Value)
	case models.IdentifierSIRET:
		path = "/entreprise"
		params.Set("siret", q.Value)
	default:
		path = "/recherche"
		params.Set("q", q.Value)
		params.Set("par_page", "1")
	}

	body, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var company entreprise
	if path == "/recherche" {
		var resp rechercheResponse
		if err := json.NewDecoder(body).Decode(&resp); err != nil {
			return nil, fmt.Errorf("decode pappers search: %w", err)
		}
		if len(resp.Resultats) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, q.Value)
		}
		company = resp.Resultats[0]
	} else if err := json.NewDecoder(body).Decode(&company); err != nil {
		return nil, fmt.Errorf("decode pappers company: %w", err)
	}

	c.logger.Debug("pappers lookup completed", map[string]interface{}{
		"kind":  q.Kind,
		"siren": company.Siren,
	})

	return toLegalData(&company), nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (io.ReadCloser, error) {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("pappers API returned %d", resp.StatusCode)
	}

	return resp.Body, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func toLegalData(e *entreprise) *models.LegalData {
	data := &models.LegalData{
		CompanyName:   e.NomEntreprise,
		LegalForm:     e.FormeJuridique,
		LegalCategory: e.CategorieJuridique,
		Siren:         e.Siren,
		NafCode:       e.CodeNaf,
	}
	if len(e.Representants) > 0 {
		data.ManagerName = e.Representants[0].NomComplet
	}
	if s := e.Siege; s != nil {
		data.RegisteredAddress = &models.LegalAddress{
			Siret:       s.Siret,
			Line1:       s.AdresseLigne1,
			Line2:       s.AdresseLigne2,
			PostalCode:  s.CodePostal,
			City:        s.Ville,
			Country:     s.Pays,
			CountryCode: s.CodePays,
		}
	}
	return data
}
