package gtfs

import (
	"archive/zip"
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log"

	"github.com/MKuranowski/GZMGTFS/model"
	"github.com/MKuranowski/GZMGTFS/store"
	"github.com/jszwec/csvutil"
)

// loadFeed reads one GTFS archive into the store. Service, trip, shape and
// block ids get a "<version>:" prefix so feeds never collide; agencies,
// stops and routes are shared entities and are upserted by id. Calendar
// dates outside [validFrom, validUntil) are dropped, which is what merges
// overlapping feeds into one continuous calendar.
func loadFeed(s *store.Store, desc model.FeedDescriptor, validUntil model.Date) error {
	log.Printf("gtfs: loading %s (version %s, effective %s)", desc.Name, desc.Version, desc.StartDate)

	arch, err := zip.OpenReader(desc.Path)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", desc.Path, err)
	}
	defer arch.Close()

	prefix := desc.Version + ":"

	var agencies []model.Agency
	if err := decodeTable(&arch.Reader, "agency.txt", &agencies); err != nil {
		return err
	}
	if err := s.SaveAgencies(agencies); err != nil {
		return err
	}

	var stops []model.Stop
	if err := decodeTable(&arch.Reader, "stops.txt", &stops); err != nil {
		return err
	}
	if err := s.SaveStops(stops); err != nil {
		return err
	}

	var routes []model.Route
	if err := decodeTable(&arch.Reader, "routes.txt", &routes); err != nil {
		return err
	}
	if err := s.SaveRoutes(routes); err != nil {
		return err
	}

	var trips []model.Trip
	if err := decodeTable(&arch.Reader, "trips.txt", &trips); err != nil {
		return err
	}
	for i := range trips {
		trips[i].TripID = prefix + trips[i].TripID
		trips[i].ServiceID = prefix + trips[i].ServiceID
		if trips[i].ShapeID != "" {
			trips[i].ShapeID = prefix + trips[i].ShapeID
		}
		if trips[i].BlockID != "" {
			trips[i].BlockID = prefix + trips[i].BlockID
		}
	}
	if err := s.SaveTrips(trips); err != nil {
		return err
	}

	var stopTimes []model.StopTime
	if err := decodeTable(&arch.Reader, "stop_times.txt", &stopTimes); err != nil {
		return err
	}
	for i := range stopTimes {
		stopTimes[i].TripID = prefix + stopTimes[i].TripID
	}
	if err := s.SaveStopTimes(stopTimes); err != nil {
		return err
	}

	var shapePoints []model.ShapePoint
	if err := decodeTable(&arch.Reader, "shapes.txt", &shapePoints); err != nil {
		return err
	}
	for i := range shapePoints {
		shapePoints[i].ShapeID = prefix + shapePoints[i].ShapeID
	}
	if err := s.SaveShapePoints(shapePoints); err != nil {
		return err
	}

	var dates []model.CalendarDate
	if err := decodeTable(&arch.Reader, "calendar_dates.txt", &dates); err != nil {
		return err
	}
	kept := dates[:0]
	for _, cd := range dates {
		if cd.Date.Before(desc.StartDate) || !cd.Date.Before(validUntil) {
			continue
		}
		cd.ServiceID = prefix + cd.ServiceID
		kept = append(kept, cd)
	}
	if err := s.SaveCalendarDates(kept); err != nil {
		return err
	}

	var infos []model.FeedInfo
	if err := decodeTable(&arch.Reader, "feed_info.txt", &infos); err != nil {
		return err
	}
	if len(infos) > 0 {
		// Later feeds overwrite; Finalize stamps the package version on top.
		if err := s.SaveFeedInfo(infos[0]); err != nil {
			return err
		}
	}

	return nil
}

// decodeTable reads one CSV table from the archive into out, a pointer to a
// slice of records. A missing table leaves out empty; GZM feeds do not ship
// every optional file.
func decodeTable[T any](arch *zip.Reader, name string, out *[]T) error {
	f, err := arch.Open(name)
	if err != nil {
		return nil
	}
	defer f.Close()

	dec, err := csvutil.NewDecoder(csv.NewReader(stripBOM(f)))
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	for {
		var rec T
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("failed to decode %s: %w", name, err)
		}
		*out = append(*out, rec)
	}
	return nil
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		br.Discard(3)
	}
	return br
}
