// Package places is a client for the Google Places text search and place
// details APIs.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadgen-workers/internal/common/logger"
	"leadgen-workers/internal/models"
)

var (
	ErrNotFound = errors.New("PLACE_NOT_FOUND")
	ErrTimeout  = errors.New("PLACES_TIMEOUT")
)

const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"

	detailsFields = "formatted_phone_number,international_phone_number,website,types,address_components"
)

// Types too generic to describe a business.
var genericTypes = map[string]bool{
	"point_of_interest": true,
	"establishment":     true,
	"premise":           true,
}

type Config struct {
	BaseURL  string
	APIKey   string
	Language string
	Timeout  time.Duration
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
			"source": models.SourcePlaces,
		}),
	}
}

type textSearchResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		PlaceID          string   `json:"place_id"`
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Rating           *float64 `json:"rating"`
		UserRatingsTotal *int     `json:"user_ratings_total"`
		Types            []string `json:"types"`
	} `json:"results"`
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		FormattedPhoneNumber     string             `json:"formatted_phone_number"`
		InternationalPhoneNumber string             `json:"international_phone_number"`
		Website                  string             `json:"website"`
		Types                    []string           `json:"types"`
		AddressComponents        []addressComponent `json:"address_components"`
	} `json:"result"`
}

// Lookup searches for query (biased by location when given) and enriches the
// best hit with its place details. A failed details call degrades to the
// text search data, with the formatted address as the first address line.
func (c *Client) Lookup(ctx context.Context, query string, location *string) (*models.PlacesData, error) {
	text := strings.TrimSpace(query)
	if location != nil && strings.TrimSpace(*location) != "" {
		text += " " + strings.TrimSpace(*location)
	}

	params := url.Values{}
	params.Set("query", text)

	var search textSearchResponse
	if err := c.getJSON(ctx, "/textsearch/json", params, &search); err != nil {
		return nil, err
	}

	switch search.Status {
	case statusOK:
	case statusZeroResults:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, text)
	default:
		return nil, fmt.Errorf("places text search returned %s: %s", search.Status, search.ErrorMessage)
	}
	if len(search.Results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, text)
	}

	best := search.Results[0]
	data := &models.PlacesData{
		Name:         best.Name,
		BusinessType: businessType(best.Types),
		Rating:       best.Rating,
		ReviewCount:  best.UserRatingsTotal,
	}
	if addr := strings.TrimSpace(best.FormattedAddress); addr != "" {
		data.Address = &models.PlacesAddress{Line1: addr}
	}

	details, err := c.details(ctx, best.PlaceID)
	if err != nil {
		c.logger.Warn("place details unavailable", map[string]interface{}{
			"placeId": best.PlaceID,
			"error":   err.Error(),
		})
		return data, nil
	}

	data.Phone = details.Result.FormattedPhoneNumber
	if data.Phone == "" {
		data.Phone = details.Result.InternationalPhoneNumber
	}
	data.Website = details.Result.Website
	if bt := businessType(details.Result.Types); bt != "" {
		data.BusinessType = bt
	}
	if addr := toAddress(details.Result.AddressComponents); addr != nil {
		data.Address = addr
	}

	return data, nil
}

func (c *Client) details(ctx context.Context, placeID string) (*detailsResponse, error) {
	if placeID == "" {
		return nil, errors.New("missing place_id")
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailsFields)

	var resp detailsResponse
	if err := c.getJSON(ctx, "/details/json", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != statusOK {
		return nil, fmt.Errorf("place details returned %s: %s", resp.Status, resp.ErrorMessage)
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("key", c.config.APIKey)
	if c.config.Language != "" {
		params.Set("language", c.config.Language)
	}
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places API returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode places response: %w", err)
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func businessType(types []string) string {
	for _, t := range types {
		if !genericTypes[t] {
			return t
		}
	}
	return ""
}

func toAddress(components []addressComponent) *models.PlacesAddress {
	if len(components) == 0 {
		return nil
	}

	var (
		addr         models.PlacesAddress
		number, road string
	)
	for _, comp := range components {
		switch {
		case hasType(comp, "street_number"):
			number = comp.LongName
		case hasType(comp, "route"):
			road = comp.LongName
		case hasType(comp, "subpremise"):
			addr.Line2 = comp.LongName
		case hasType(comp, "postal_code"):
			addr.PostalCode = comp.LongName
		case hasType(comp, "locality"):
			addr.City = comp.LongName
		case hasType(comp, "country"):
			addr.Country = comp.LongName
			addr.CountryCode = comp.ShortName
		}
	}
	addr.Line1 = strings.TrimSpace(number + " " + road)

	if addr == (models.PlacesAddress{}) {
		return nil
	}
	return &addr
}

func hasType(c addressComponent, t string) bool {
	for _, ct := range c.Types {
		if ct == t {
			return true
		}
	}
	return false
}
