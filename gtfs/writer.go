package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"log"
	"os"

	"github.com/MKuranowski/GZMGTFS/store"
	"github.com/jszwec/csvutil"
)

// Write serializes the merged dataset into a GTFS zip at path. Tables are
// written in a fixed order with fixed headers so output is reproducible.
func Write(s *store.Store, path string) error {
	log.Printf("gtfs: writing %s", path)

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	agencies, err := s.Agencies()
	if err != nil {
		return err
	}
	if err := writeTable(zw, "agency.txt", agencies); err != nil {
		return err
	}

	dates, err := s.CalendarDates()
	if err != nil {
		return err
	}
	if err := writeTable(zw, "calendar_dates.txt", dates); err != nil {
		return err
	}

	infos, err := s.FeedInfos()
	if err != nil {
		return err
	}
	if err := writeTable(zw, "feed_info.txt", infos); err != nil {
		return err
	}

	routes, err := s.Routes()
	if err != nil {
		return err
	}
	if err := writeTable(zw, "routes.txt", routes); err != nil {
		return err
	}

	shapes, err := s.ShapePoints()
	if err != nil {
		return err
	}
	if err := writeTable(zw, "shapes.txt", shapes); err != nil {
		return err
	}

	stops, err := s.Stops()
	if err != nil {
		return err
	}
	if err := writeTable(zw, "stops.txt", stops); err != nil {
		return err
	}

	stopTimes, err := s.StopTimes()
	if err != nil {
		return err
	}
	if err := writeTable(zw, "stop_times.txt", stopTimes); err != nil {
		return err
	}

	trips, err := s.Trips()
	if err != nil {
		return err
	}
	if err := writeTable(zw, "trips.txt", trips); err != nil {
		return err
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish %s: %w", path, err)
	}
	return out.Close()
}

// writeTable writes one CSV table into the archive, header included even
// when there are no rows.
func writeTable[T any](zw *zip.Writer, name string, rows []T) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s in archive: %w", name, err)
	}

	cw := csv.NewWriter(f)
	enc := csvutil.NewEncoder(cw)

	if len(rows) == 0 {
		var empty T
		if err := enc.EncodeHeader(&empty); err != nil {
			return fmt.Errorf("failed to write %s header: %w", name, err)
		}
	}
	for i := range rows {
		if err := enc.Encode(&rows[i]); err != nil {
			return fmt.Errorf("failed to write %s row: %w", name, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
