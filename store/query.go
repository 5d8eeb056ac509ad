package store

import (
	"fmt"

	"github.com/MKuranowski/GZMGTFS/model"
)

// Read and rewrite operations used by the post-merge adjustment passes and
// the package writer. Rows come back in a deterministic order so the final
// archive is reproducible.

// Agencies returns all agencies ordered by id.
func (s *Store) Agencies() ([]model.Agency, error) {
	rows, err := s.db.Query("SELECT agency_id, agency_name, agency_url, agency_timezone, agency_phone, agency_lang, agency_fare_url, agency_email FROM agency ORDER BY agency_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query agencies: %w", err)
	}
	defer rows.Close()

	var out []model.Agency
	for rows.Next() {
		var a model.Agency
		if err := rows.Scan(&a.AgencyID, &a.AgencyName, &a.AgencyURL, &a.AgencyTimezone, &a.AgencyPhone, &a.AgencyLang, &a.AgencyFareURL, &a.AgencyEmail); err != nil {
			return nil, fmt.Errorf("failed to scan agency: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Stops returns all stops ordered by id.
func (s *Store) Stops() ([]model.Stop, error) {
	rows, err := s.db.Query("SELECT stop_id, stop_code, stop_name, stop_lat, stop_lon FROM stops ORDER BY stop_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	defer rows.Close()

	var out []model.Stop
	for rows.Next() {
		var st model.Stop
		if err := rows.Scan(&st.StopID, &st.StopCode, &st.StopName, &st.Lat, &st.Lon); err != nil {
			return nil, fmt.Errorf("failed to scan stop: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Routes returns all routes ordered by id.
func (s *Store) Routes() ([]model.Route, error) {
	rows, err := s.db.Query("SELECT route_id, agency_id, route_short_name, route_long_name, route_type, route_color, route_text_color FROM routes ORDER BY route_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var out []model.Route
	for rows.Next() {
		var r model.Route
		if err := rows.Scan(&r.RouteID, &r.AgencyID, &r.ShortName, &r.LongName, &r.Type, &r.Color, &r.TextColor); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Trips returns all trips ordered by id.
func (s *Store) Trips() ([]model.Trip, error) {
	rows, err := s.db.Query("SELECT trip_id, route_id, service_id, trip_headsign, trip_short_name, direction_id, shape_id, wheelchair_accessible, block_id FROM trips ORDER BY trip_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	var out []model.Trip
	for rows.Next() {
		var t model.Trip
		if err := rows.Scan(&t.TripID, &t.RouteID, &t.ServiceID, &t.TripHeadsign, &t.TripShortName, &t.DirectionID, &t.ShapeID, &t.WheelchairAccessible, &t.BlockID); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// StopTimes returns all stop times ordered by trip and sequence.
func (s *Store) StopTimes() ([]model.StopTime, error) {
	rows, err := s.db.Query("SELECT trip_id, arrival_time, departure_time, stop_id, stop_sequence, stop_headsign, pickup_type, drop_off_type, timepoint FROM stop_times ORDER BY trip_id, stop_sequence")
	if err != nil {
		return nil, fmt.Errorf("failed to query stop times: %w", err)
	}
	defer rows.Close()

	var out []model.StopTime
	for rows.Next() {
		var st model.StopTime
		if err := rows.Scan(&st.TripID, &st.ArrivalTime, &st.DepartureTime, &st.StopID, &st.StopSequence, &st.StopHeadsign, &st.PickupType, &st.DropOffType, &st.Timepoint); err != nil {
			return nil, fmt.Errorf("failed to scan stop time: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// CalendarDates returns all service-date rows ordered by service and date.
func (s *Store) CalendarDates() ([]model.CalendarDate, error) {
	rows, err := s.db.Query("SELECT service_id, date, exception_type FROM calendar_dates ORDER BY service_id, date")
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar dates: %w", err)
	}
	defer rows.Close()

	var out []model.CalendarDate
	for rows.Next() {
		var cd model.CalendarDate
		var date string
		if err := rows.Scan(&cd.ServiceID, &date, &cd.ExceptionType); err != nil {
			return nil, fmt.Errorf("failed to scan calendar date: %w", err)
		}
		cd.Date, err = model.ParseGTFSDate(date)
		if err != nil {
			return nil, err
		}
		out = append(out, cd)
	}
	return out, rows.Err()
}

// ShapePoints returns all shape points ordered by shape and sequence.
func (s *Store) ShapePoints() ([]model.ShapePoint, error) {
	rows, err := s.db.Query("SELECT shape_id, shape_pt_lat, shape_pt_lon, shape_pt_sequence FROM shapes ORDER BY shape_id, shape_pt_sequence")
	if err != nil {
		return nil, fmt.Errorf("failed to query shapes: %w", err)
	}
	defer rows.Close()

	var out []model.ShapePoint
	for rows.Next() {
		var p model.ShapePoint
		if err := rows.Scan(&p.ShapeID, &p.Lat, &p.Lon, &p.Sequence); err != nil {
			return nil, fmt.Errorf("failed to scan shape point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FeedInfos returns the feed_info rows (normally exactly one).
func (s *Store) FeedInfos() ([]model.FeedInfo, error) {
	rows, err := s.db.Query("SELECT feed_publisher_name, feed_publisher_url, feed_lang, feed_start_date, feed_end_date, feed_contact_email, feed_version FROM feed_info")
	if err != nil {
		return nil, fmt.Errorf("failed to query feed_info: %w", err)
	}
	defer rows.Close()

	var out []model.FeedInfo
	for rows.Next() {
		var fi model.FeedInfo
		if err := rows.Scan(&fi.PublisherName, &fi.PublisherURL, &fi.Lang, &fi.StartDate, &fi.EndDate, &fi.ContactEmail, &fi.Version); err != nil {
			return nil, fmt.Errorf("failed to scan feed_info: %w", err)
		}
		out = append(out, fi)
	}
	return out, rows.Err()
}

// UpdateRouteColor sets the color pair of one route.
func (s *Store) UpdateRouteColor(routeID, color, textColor string) error {
	_, err := s.db.Exec("UPDATE routes SET route_color = ?, route_text_color = ? WHERE route_id = ?", color, textColor, routeID)
	return err
}

// UpdateRouteLongName sets the long name of one route.
func (s *Store) UpdateRouteLongName(routeID, longName string) error {
	_, err := s.db.Exec("UPDATE routes SET route_long_name = ? WHERE route_id = ?", longName, routeID)
	return err
}

// TrimTramShortNames strips the leading "T" marker from tram route short
// names, matching the published GZM convention.
func (s *Store) TrimTramShortNames() error {
	_, err := s.db.Exec("UPDATE routes SET route_short_name = substr(route_short_name, 2) WHERE route_type = 0 AND route_short_name LIKE 'T%'")
	return err
}

// SetFeedInfoStamp rewrites the publisher identity and version of the
// merged feed_info row.
func (s *Store) SetFeedInfoStamp(publisherName, publisherURL, version string) error {
	_, err := s.db.Exec(
		"UPDATE feed_info SET feed_publisher_name = ?, feed_publisher_url = ?, feed_version = ?",
		publisherName, publisherURL, version,
	)
	return err
}

// ServiceIDsOn returns the services active on the given date.
func (s *Store) ServiceIDsOn(date model.Date) ([]string, error) {
	rows, err := s.db.Query("SELECT service_id FROM calendar_dates WHERE date = ? AND exception_type = 1 ORDER BY service_id", date.GTFS())
	if err != nil {
		return nil, fmt.Errorf("failed to query services on %s: %w", date, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan service id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReplaceServicesOn swaps the set of services active on a date. Used when a
// calendar exception makes a weekday run on a holiday pattern instead.
func (s *Store) ReplaceServicesOn(date model.Date, serviceIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM calendar_dates WHERE date = ?", date.GTFS()); err != nil {
		return fmt.Errorf("failed to clear services on %s: %w", date, err)
	}
	for _, id := range serviceIDs {
		if _, err := tx.Exec("INSERT OR REPLACE INTO calendar_dates (service_id, date, exception_type) VALUES (?, ?, 1)", id, date.GTFS()); err != nil {
			return fmt.Errorf("failed to add service %s on %s: %w", id, date, err)
		}
	}
	return tx.Commit()
}
