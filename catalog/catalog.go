// Package catalog queries the GZM open-data CKAN catalog for publishable
// GTFS archives.
package catalog

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/MKuranowski/GZMGTFS/model"
)

// DefaultEndpoint and DefaultDatasetID identify the extended-GTFS dataset
// on the GZM open-data portal.
const (
	DefaultEndpoint  = "https://otwartedane.metropoliagzm.pl/api/3/action/package_show"
	DefaultDatasetID = "rozklady-jazdy-i-lokalizacja-przystankow-gtfs-wersja-rozszerzona"
)

const archiveMimetype = "application/zip"

// CKAN emits last_modified without an offset when the value is in UTC.
var timezoneSuffix = regexp.MustCompile(`(Z|[+-][0-9][0-9]:?[0-9][0-9])$`)

// Client reads the remote resource catalog.
type Client struct {
	HTTPClient *http.Client
	Endpoint   string
	DatasetID  string
}

// NewClient creates a catalog client for the default GZM dataset.
func NewClient(httpClient *http.Client) *Client {
	return &Client{
		HTTPClient: httpClient,
		Endpoint:   DefaultEndpoint,
		DatasetID:  DefaultDatasetID,
	}
}

type ckanResource struct {
	Mimetype     string `json:"mimetype"`
	URL          string `json:"url"`
	Name         string `json:"name"`
	LastModified string `json:"last_modified"`
}

type packageShowResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Resources []ckanResource `json:"resources"`
	} `json:"result"`
}

// Resources performs one package_show call and returns every archive
// resource grouped by the package date embedded in its name. A resource
// whose name carries no package date, or whose timestamp cannot be parsed,
// is a malformed catalog entry and aborts the run.
func (c *Client) Resources() (map[model.Date][]model.RemoteResource, error) {
	log.Printf("catalog: fetching remote resource list")

	reqURL := fmt.Sprintf("%s?id=%s", c.Endpoint, url.QueryEscape(c.DatasetID))
	resp, err := c.HTTPClient.Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog request failed: status %d", resp.StatusCode)
	}

	var payload packageShowResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}
	if !payload.Success {
		return nil, fmt.Errorf("catalog request unsuccessful for dataset %q", c.DatasetID)
	}

	byDate := make(map[model.Date][]model.RemoteResource)
	for _, res := range payload.Result.Resources {
		if res.Mimetype != archiveMimetype {
			continue
		}

		pkgDate, err := model.ExtractPackageDate(res.Name)
		if err != nil {
			return nil, err
		}

		modTime, err := parseLastModified(res.LastModified)
		if err != nil {
			return nil, fmt.Errorf("resource %q: %w", res.Name, err)
		}

		byDate[pkgDate] = append(byDate[pkgDate], model.RemoteResource{
			URL:          res.URL,
			Name:         res.Name,
			LastModified: modTime,
			PackageDate:  pkgDate,
		})
	}
	return byDate, nil
}

// parseLastModified parses a CKAN timestamp, assuming UTC when the string
// carries no explicit offset.
func parseLastModified(s string) (time.Time, error) {
	if !timezoneSuffix.MatchString(s) {
		s += "Z"
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999Z0700",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid last_modified timestamp %q", s)
}
