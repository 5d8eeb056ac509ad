package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKuranowski/GZMGTFS/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRoutesRoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveRoutes([]model.Route{
		{RouteID: "2", AgencyID: "1", ShortName: "B", LongName: "b", Type: 11},
		{RouteID: "1", AgencyID: "1", ShortName: "A", LongName: "a", Type: 3},
	}))

	routes, err := s.Routes()
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "1", routes[0].RouteID, "routes come back ordered by id")
	assert.Equal(t, "2", routes[1].RouteID)
}

func TestSaveRoutesUpserts(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveRoutes([]model.Route{{RouteID: "1", ShortName: "old"}}))
	require.NoError(t, s.SaveRoutes([]model.Route{{RouteID: "1", ShortName: "new"}}))

	routes, err := s.Routes()
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, "new", routes[0].ShortName)
}

func TestUpdateRouteColorAndLongName(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveRoutes([]model.Route{{RouteID: "1", ShortName: "A", LongName: "x - y"}}))

	require.NoError(t, s.UpdateRouteColor("1", "ffd403", "000000"))
	require.NoError(t, s.UpdateRouteLongName("1", "X - Y"))

	routes, err := s.Routes()
	require.NoError(t, err)
	assert.Equal(t, "ffd403", routes[0].Color)
	assert.Equal(t, "000000", routes[0].TextColor)
	assert.Equal(t, "X - Y", routes[0].LongName)
}

func TestTrimTramShortNames(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveRoutes([]model.Route{
		{RouteID: "tram", ShortName: "T11", Type: 0},
		{RouteID: "bus", ShortName: "T-1", Type: 3},
	}))

	require.NoError(t, s.TrimTramShortNames())

	routes, err := s.Routes()
	require.NoError(t, err)
	byID := map[string]model.Route{}
	for _, r := range routes {
		byID[r.RouteID] = r
	}
	assert.Equal(t, "11", byID["tram"].ShortName)
	assert.Equal(t, "T-1", byID["bus"].ShortName, "only trams are trimmed")
}

func TestFeedInfoStamp(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveFeedInfo(model.FeedInfo{
		PublisherName: "upstream", PublisherURL: "https://upstream.example", Lang: "pl", Version: "old",
	}))
	require.NoError(t, s.SetFeedInfoStamp("Publisher", "https://example.com/", "2024.03.01"))

	infos, err := s.FeedInfos()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "Publisher", infos[0].PublisherName)
	assert.Equal(t, "2024.03.01", infos[0].Version)
	assert.Equal(t, "pl", infos[0].Lang, "untouched fields survive")
}

func TestSaveFeedInfoReplacesPreviousRow(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveFeedInfo(model.FeedInfo{PublisherName: "first"}))
	require.NoError(t, s.SaveFeedInfo(model.FeedInfo{PublisherName: "second"}))

	infos, err := s.FeedInfos()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "second", infos[0].PublisherName)
}

func TestCalendarDateOperations(t *testing.T) {
	s := newTestStore(t)

	holiday := model.NewDate(2024, time.May, 1)
	sunday := model.NewDate(2024, time.April, 28)
	require.NoError(t, s.SaveCalendarDates([]model.CalendarDate{
		{ServiceID: "17:wd", Date: holiday, ExceptionType: 1},
		{ServiceID: "17:sun", Date: sunday, ExceptionType: 1},
		{ServiceID: "17:sat", Date: model.NewDate(2024, time.April, 27), ExceptionType: 1},
	}))

	ids, err := s.ServiceIDsOn(holiday)
	require.NoError(t, err)
	assert.Equal(t, []string{"17:wd"}, ids)

	sundayIDs, err := s.ServiceIDsOn(sunday)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceServicesOn(holiday, sundayIDs))

	ids, err = s.ServiceIDsOn(holiday)
	require.NoError(t, err)
	assert.Equal(t, []string{"17:sun"}, ids)

	dates, err := s.CalendarDates()
	require.NoError(t, err)
	assert.Len(t, dates, 3)
}

func TestTripsAndStopTimesRoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveTrips([]model.Trip{
		{TripID: "17:t1", RouteID: "1", ServiceID: "17:wd", TripHeadsign: "Centrum"},
	}))
	require.NoError(t, s.SaveStopTimes([]model.StopTime{
		{TripID: "17:t1", ArrivalTime: "08:00:00", DepartureTime: "08:00:00", StopID: "s1", StopSequence: 1},
		{TripID: "17:t1", ArrivalTime: "08:05:00", DepartureTime: "08:05:00", StopID: "s2", StopSequence: 2},
	}))

	trips, err := s.Trips()
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "Centrum", trips[0].TripHeadsign)

	stopTimes, err := s.StopTimes()
	require.NoError(t, err)
	require.Len(t, stopTimes, 2)
	assert.Equal(t, 1, stopTimes[0].StopSequence)
	assert.Equal(t, 2, stopTimes[1].StopSequence)
}

func TestAgenciesStopsAndShapes(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveAgencies([]model.Agency{{AgencyID: "1", AgencyName: "ZTM", AgencyTimezone: "Europe/Warsaw"}}))
	require.NoError(t, s.SaveStops([]model.Stop{{StopID: "s1", StopName: "Rynek", Lat: 50.26, Lon: 19.02}}))
	require.NoError(t, s.SaveShapePoints([]model.ShapePoint{{ShapeID: "17:sh", Lat: 50.26, Lon: 19.02, Sequence: 0}}))

	agencies, err := s.Agencies()
	require.NoError(t, err)
	require.Len(t, agencies, 1)
	assert.Equal(t, "ZTM", agencies[0].AgencyName)

	stops, err := s.Stops()
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.InDelta(t, 50.26, stops[0].Lat, 1e-9)

	points, err := s.ShapePoints()
	require.NoError(t, err)
	assert.Len(t, points, 1)
}
