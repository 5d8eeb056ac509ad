// Package calendar fetches the Polish calendar-exception table used to
// extend merged GTFS calendars with holiday service patterns.
package calendar

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/MKuranowski/GZMGTFS/model"
	"github.com/jszwec/csvutil"
)

// DefaultURL points at the published exception table.
const DefaultURL = "https://mkuran.pl/gtfs/calendar_exceptions.csv"

// RegionSlaskie selects exceptions applying to the Silesian voivodeship,
// where GZM operates.
const RegionSlaskie = "slaskie"

type exceptionRow struct {
	Date    string `csv:"date"`
	Kind    string `csv:"exception"`
	Regions string `csv:"regions"`
}

// Source fetches calendar exceptions over HTTP.
type Source struct {
	HTTPClient *http.Client
	URL        string
}

// NewSource creates a Source for the default exception table.
func NewSource(httpClient *http.Client) *Source {
	return &Source{HTTPClient: httpClient, URL: DefaultURL}
}

// Holidays returns the holiday dates applying to the given region, in file
// order.
func (s *Source) Holidays(region string) ([]model.Date, error) {
	log.Printf("calendar: fetching exception table from %s", s.URL)

	resp, err := s.HTTPClient.Get(s.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar exceptions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch calendar exceptions: status %d", resp.StatusCode)
	}
	return parseHolidays(resp.Body, region)
}

func parseHolidays(r io.Reader, region string) ([]model.Date, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read calendar exceptions: %w", err)
	}

	var holidays []model.Date
	for {
		var row exceptionRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to decode calendar exception: %w", err)
		}

		if row.Kind != "holiday" || !hasRegion(row.Regions, region) {
			continue
		}
		date, err := model.ParseDashDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("bad calendar exception date: %w", err)
		}
		holidays = append(holidays, date)
	}
	return holidays, nil
}

// hasRegion checks a semicolon-separated region list; an empty list means
// the exception is nationwide.
func hasRegion(regions, region string) bool {
	if regions == "" {
		return true
	}
	for _, r := range strings.Split(regions, ";") {
		if strings.TrimSpace(r) == region {
			return true
		}
	}
	return false
}
