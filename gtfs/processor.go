// Package gtfs merges the downloaded feeds into one dataset and produces
// the final GTFS package.
package gtfs

import (
	"fmt"
	"log"
	"time"

	"github.com/MKuranowski/GZMGTFS/model"
	"github.com/MKuranowski/GZMGTFS/store"
)

// Feed publisher stamped onto the merged package.
const (
	PublisherName = "Mikołaj Kuranowski"
	PublisherURL  = "https://mkuran.pl/gtfs/"
)

// Processor loads feeds into a record store and finalizes the merged
// dataset. The adjustment rule tables are fixed at construction.
type Processor struct {
	Store  *store.Store
	Colors *Colorizer
}

// NewProcessor creates a Processor with the standard GZM adjustment rules.
func NewProcessor(s *store.Store) (*Processor, error) {
	colors, err := NewColorizer(RouteColors)
	if err != nil {
		return nil, err
	}
	return &Processor{Store: s, Colors: colors}, nil
}

// LoadAll loads feeds in order. Feeds must be sorted ascending by start
// date; each feed's calendar is valid until the next feed takes over.
func (p *Processor) LoadAll(feeds []model.FeedDescriptor) error {
	for i, desc := range feeds {
		validUntil := model.DateMax
		if i+1 < len(feeds) {
			validUntil = feeds[i+1].StartDate
		}
		if err := loadFeed(p.Store, desc, validUntil); err != nil {
			return fmt.Errorf("failed to load feed %s: %w", desc.Name, err)
		}
	}
	return nil
}

// Finalize applies the post-merge adjustment passes and writes the final
// package: feed_info stamping, tram short-name trimming, route colors,
// long-name casing, holiday calendar substitution, then the zip itself.
func (p *Processor) Finalize(version string, holidays []model.Date, output string) error {
	if err := p.Store.SetFeedInfoStamp(PublisherName, PublisherURL, version); err != nil {
		return fmt.Errorf("failed to stamp feed_info: %w", err)
	}
	if err := p.Store.TrimTramShortNames(); err != nil {
		return fmt.Errorf("failed to trim tram short names: %w", err)
	}
	if err := p.applyRouteRules(); err != nil {
		return err
	}
	if err := p.applyHolidays(holidays); err != nil {
		return err
	}
	return Write(p.Store, output)
}

func (p *Processor) applyRouteRules() error {
	routes, err := p.Store.Routes()
	if err != nil {
		return err
	}

	for _, route := range routes {
		if color, ok := p.Colors.Match(route.ShortName, route.Type); ok {
			textColor, err := TextColorFor(color)
			if err != nil {
				return err
			}
			if err := p.Store.UpdateRouteColor(route.RouteID, color[1:], textColor); err != nil {
				return fmt.Errorf("failed to recolor route %s: %w", route.RouteID, err)
			}
		}

		if fixed := FixLongName(route.LongName); fixed != route.LongName {
			if err := p.Store.UpdateRouteLongName(route.RouteID, fixed); err != nil {
				return fmt.Errorf("failed to rename route %s: %w", route.RouteID, err)
			}
		}
	}
	return nil
}

// applyHolidays makes every holiday run the Sunday service pattern: the
// services of the previous Sunday replace whatever was scheduled. Holidays
// that already fall on a Sunday, or outside the merged calendar, are left
// alone.
func (p *Processor) applyHolidays(holidays []model.Date) error {
	for _, holiday := range holidays {
		if holiday.Weekday() == time.Sunday {
			continue
		}
		scheduled, err := p.Store.ServiceIDsOn(holiday)
		if err != nil {
			return err
		}
		if len(scheduled) == 0 {
			continue
		}

		sunday := holiday.AddDays(-int(holiday.Weekday()))
		sundayServices, err := p.Store.ServiceIDsOn(sunday)
		if err != nil {
			return err
		}
		if len(sundayServices) == 0 {
			continue
		}

		log.Printf("gtfs: holiday %s takes the %s Sunday services", holiday, sunday)
		if err := p.Store.ReplaceServicesOn(holiday, sundayServices); err != nil {
			return err
		}
	}
	return nil
}
