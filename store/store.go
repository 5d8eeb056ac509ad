// Package store provides the SQLite record store the merged GTFS dataset
// lives in while the pipeline runs.
package store

import (
	"database/sql"
	"fmt"

	"github.com/MKuranowski/GZMGTFS/model"
	_ "modernc.org/sqlite"
)

// Store manages the SQLite database holding the merged dataset.
type Store struct {
	db *sql.DB
}

// New creates a Store at the given database path.
// Use ":memory:" for an in-memory database (the pipeline default).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agency (
		agency_id TEXT PRIMARY KEY,
		agency_name TEXT,
		agency_url TEXT,
		agency_timezone TEXT,
		agency_phone TEXT,
		agency_lang TEXT,
		agency_fare_url TEXT,
		agency_email TEXT
	);

	CREATE TABLE IF NOT EXISTS stops (
		stop_id TEXT PRIMARY KEY,
		stop_code TEXT,
		stop_name TEXT,
		stop_lat REAL,
		stop_lon REAL
	);

	CREATE TABLE IF NOT EXISTS routes (
		route_id TEXT PRIMARY KEY,
		agency_id TEXT,
		route_short_name TEXT,
		route_long_name TEXT,
		route_type INTEGER,
		route_color TEXT,
		route_text_color TEXT
	);

	CREATE TABLE IF NOT EXISTS trips (
		trip_id TEXT PRIMARY KEY,
		route_id TEXT,
		service_id TEXT,
		trip_headsign TEXT,
		trip_short_name TEXT,
		direction_id TEXT,
		shape_id TEXT,
		wheelchair_accessible TEXT,
		block_id TEXT
	);

	CREATE TABLE IF NOT EXISTS stop_times (
		trip_id TEXT,
		arrival_time TEXT,
		departure_time TEXT,
		stop_id TEXT,
		stop_sequence INTEGER,
		stop_headsign TEXT,
		pickup_type TEXT,
		drop_off_type TEXT,
		timepoint TEXT,
		PRIMARY KEY (trip_id, stop_sequence)
	);

	CREATE TABLE IF NOT EXISTS calendar_dates (
		service_id TEXT,
		date TEXT,
		exception_type INTEGER,
		PRIMARY KEY (service_id, date)
	);

	CREATE TABLE IF NOT EXISTS shapes (
		shape_id TEXT,
		shape_pt_lat REAL,
		shape_pt_lon REAL,
		shape_pt_sequence INTEGER,
		PRIMARY KEY (shape_id, shape_pt_sequence)
	);

	CREATE TABLE IF NOT EXISTS feed_info (
		feed_publisher_name TEXT,
		feed_publisher_url TEXT,
		feed_lang TEXT,
		feed_start_date TEXT,
		feed_end_date TEXT,
		feed_contact_email TEXT,
		feed_version TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_trips_route_id ON trips(route_id);
	CREATE INDEX IF NOT EXISTS idx_calendar_dates_date ON calendar_dates(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveAgencies upserts agencies; feeds of one package share agency rows.
func (s *Store) SaveAgencies(agencies []model.Agency) error {
	return s.batch(
		"INSERT OR REPLACE INTO agency (agency_id, agency_name, agency_url, agency_timezone, agency_phone, agency_lang, agency_fare_url, agency_email) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		len(agencies),
		func(i int) []any {
			a := agencies[i]
			return []any{a.AgencyID, a.AgencyName, a.AgencyURL, a.AgencyTimezone, a.AgencyPhone, a.AgencyLang, a.AgencyFareURL, a.AgencyEmail}
		},
	)
}

// SaveStops upserts stops.
func (s *Store) SaveStops(stops []model.Stop) error {
	return s.batch(
		"INSERT OR REPLACE INTO stops (stop_id, stop_code, stop_name, stop_lat, stop_lon) VALUES (?, ?, ?, ?, ?)",
		len(stops),
		func(i int) []any {
			st := stops[i]
			return []any{st.StopID, st.StopCode, st.StopName, st.Lat, st.Lon}
		},
	)
}

// SaveRoutes upserts routes; a later feed's definition of a route wins.
func (s *Store) SaveRoutes(routes []model.Route) error {
	return s.batch(
		"INSERT OR REPLACE INTO routes (route_id, agency_id, route_short_name, route_long_name, route_type, route_color, route_text_color) VALUES (?, ?, ?, ?, ?, ?, ?)",
		len(routes),
		func(i int) []any {
			r := routes[i]
			return []any{r.RouteID, r.AgencyID, r.ShortName, r.LongName, r.Type, r.Color, r.TextColor}
		},
	)
}

// SaveTrips inserts trips. Trip ids are feed-scoped by the loader, so plain
// inserts are expected to be collision-free.
func (s *Store) SaveTrips(trips []model.Trip) error {
	return s.batch(
		"INSERT INTO trips (trip_id, route_id, service_id, trip_headsign, trip_short_name, direction_id, shape_id, wheelchair_accessible, block_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		len(trips),
		func(i int) []any {
			t := trips[i]
			return []any{t.TripID, t.RouteID, t.ServiceID, t.TripHeadsign, t.TripShortName, t.DirectionID, t.ShapeID, t.WheelchairAccessible, t.BlockID}
		},
	)
}

// SaveStopTimes inserts stop times.
func (s *Store) SaveStopTimes(stopTimes []model.StopTime) error {
	return s.batch(
		"INSERT INTO stop_times (trip_id, arrival_time, departure_time, stop_id, stop_sequence, stop_headsign, pickup_type, drop_off_type, timepoint) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		len(stopTimes),
		func(i int) []any {
			st := stopTimes[i]
			return []any{st.TripID, st.ArrivalTime, st.DepartureTime, st.StopID, st.StopSequence, st.StopHeadsign, st.PickupType, st.DropOffType, st.Timepoint}
		},
	)
}

// SaveCalendarDates inserts service-date rows.
func (s *Store) SaveCalendarDates(dates []model.CalendarDate) error {
	return s.batch(
		"INSERT OR REPLACE INTO calendar_dates (service_id, date, exception_type) VALUES (?, ?, ?)",
		len(dates),
		func(i int) []any {
			cd := dates[i]
			return []any{cd.ServiceID, cd.Date.GTFS(), cd.ExceptionType}
		},
	)
}

// SaveShapePoints inserts shape points.
func (s *Store) SaveShapePoints(points []model.ShapePoint) error {
	return s.batch(
		"INSERT INTO shapes (shape_id, shape_pt_lat, shape_pt_lon, shape_pt_sequence) VALUES (?, ?, ?, ?)",
		len(points),
		func(i int) []any {
			p := points[i]
			return []any{p.ShapeID, p.Lat, p.Lon, p.Sequence}
		},
	)
}

// SaveFeedInfo replaces the (single) feed_info row.
func (s *Store) SaveFeedInfo(fi model.FeedInfo) error {
	if _, err := s.db.Exec("DELETE FROM feed_info"); err != nil {
		return fmt.Errorf("failed to clear feed_info: %w", err)
	}
	_, err := s.db.Exec(
		"INSERT INTO feed_info (feed_publisher_name, feed_publisher_url, feed_lang, feed_start_date, feed_end_date, feed_contact_email, feed_version) VALUES (?, ?, ?, ?, ?, ?, ?)",
		fi.PublisherName, fi.PublisherURL, fi.Lang, fi.StartDate, fi.EndDate, fi.ContactEmail, fi.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feed_info: %w", err)
	}
	return nil
}

// batch runs one prepared statement over n rows inside a transaction.
func (s *Store) batch(query string, n int, args func(i int) []any) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.Exec(args(i)...); err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}
	}
	return tx.Commit()
}
