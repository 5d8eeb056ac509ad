package gtfs

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MKuranowski/GZMGTFS/model"
	"github.com/MKuranowski/GZMGTFS/store"
)

func buildArchive(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for file, content := range files {
		w, err := zw.Create(file)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func readArchiveFile(t *testing.T, path, name string) string {
	t.Helper()
	arch, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer arch.Close()

	f, err := arch.Open(name)
	require.NoError(t, err, name)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	p, err := NewProcessor(s)
	require.NoError(t, err)
	return p
}

func TestLoadFeedPrefixesAndFilters(t *testing.T) {
	dir := t.TempDir()
	path := buildArchive(t, dir, "GTFS 2024.03.01 cz.1_17_2024.zip", map[string]string{
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n1,ZTM,https://ztm.example,Europe/Warsaw\n",
		"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type\n1,1,T-12,a - b,3\n",
		"trips.txt":  "route_id,service_id,trip_id,shape_id\n1,wd,t1,sh\n",
		"stop_times.txt": "trip_id,arrival_time,departure_time,stop_id,stop_sequence\n" +
			"t1,08:00:00,08:00:00,s1,1\n",
		"calendar_dates.txt": "service_id,date,exception_type\n" +
			"wd,20240301,1\n" + // inside the window
			"wd,20240601,1\n", // outside, next feed owns it
		"feed_info.txt": "feed_publisher_name,feed_publisher_url,feed_lang,feed_start_date\nGZM,https://gzm.example,pl,20240301\n",
	})

	p := newTestProcessor(t)
	desc := model.FeedDescriptor{
		Path: path, Name: filepath.Base(path), Version: "17",
		StartDate: model.NewDate(2024, time.March, 1),
	}
	require.NoError(t, p.LoadAll([]model.FeedDescriptor{desc}))

	// A single feed keeps its whole calendar.
	dates, err := p.Store.CalendarDates()
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, "17:wd", dates[0].ServiceID)

	trips, err := p.Store.Trips()
	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "17:t1", trips[0].TripID)
	assert.Equal(t, "17:wd", trips[0].ServiceID)
	assert.Equal(t, "17:sh", trips[0].ShapeID)

	stopTimes, err := p.Store.StopTimes()
	require.NoError(t, err)
	require.Len(t, stopTimes, 1)
	assert.Equal(t, "17:t1", stopTimes[0].TripID)
}

func TestLoadAllWindowsCalendars(t *testing.T) {
	dir := t.TempDir()
	first := buildArchive(t, dir, "GTFS 2024.03.01 cz.1_17_2024.zip", map[string]string{
		"routes.txt": "route_id,route_short_name,route_type\n1,100,3\n",
		"calendar_dates.txt": "service_id,date,exception_type\n" +
			"wd,20240301,1\n" +
			"wd,20240415,1\n", // past the second feed's start, dropped
	})
	second := buildArchive(t, dir, "GTFS 2024.03.01 cz.2_18_2024.zip", map[string]string{
		"routes.txt": "route_id,route_short_name,route_type\n1,100,3\n",
		"calendar_dates.txt": "service_id,date,exception_type\n" +
			"wd,20240415,1\n" +
			"wd,20240301,1\n", // before this feed's start, dropped
	})

	p := newTestProcessor(t)
	require.NoError(t, p.LoadAll([]model.FeedDescriptor{
		{Path: first, Name: filepath.Base(first), Version: "17", StartDate: model.NewDate(2024, time.March, 1)},
		{Path: second, Name: filepath.Base(second), Version: "18", StartDate: model.NewDate(2024, time.April, 1)},
	}))

	dates, err := p.Store.CalendarDates()
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, "17:wd", dates[0].ServiceID)
	assert.Equal(t, "20240301", dates[0].Date.GTFS())
	assert.Equal(t, "18:wd", dates[1].ServiceID)
	assert.Equal(t, "20240415", dates[1].Date.GTFS())
}

func TestFinalizeAppliesAdjustments(t *testing.T) {
	dir := t.TempDir()
	path := buildArchive(t, dir, "GTFS 2024.03.01 cz.1_17_2024.zip", map[string]string{
		"agency.txt": "agency_id,agency_name,agency_url,agency_timezone\n1,ZTM,https://ztm.example,Europe/Warsaw\n",
		"routes.txt": "route_id,agency_id,route_short_name,route_long_name,route_type\n" +
			"r1,1,T11,centrum - pkp katowice,0\n" + // tram with the T marker
			"r2,1,T-12,osiedle - centrum,3\n", // temporary bus
		"calendar_dates.txt": "service_id,date,exception_type\n" +
			"wd,20240429,1\n" + // Monday
			"wd,20240501,1\n" + // Labour Day, a Wednesday
			"sun,20240428,1\n", // Sunday
		"feed_info.txt": "feed_publisher_name,feed_publisher_url,feed_lang,feed_start_date\nGZM,https://gzm.example,pl,20240301\n",
	})

	p := newTestProcessor(t)
	require.NoError(t, p.LoadAll([]model.FeedDescriptor{{
		Path: path, Name: filepath.Base(path), Version: "17",
		StartDate: model.NewDate(2024, time.March, 1),
	}}))

	output := filepath.Join(dir, "gzm.zip")
	holidays := []model.Date{model.NewDate(2024, time.May, 1)}
	require.NoError(t, p.Finalize("2024.03.01", holidays, output))

	routes, err := p.Store.Routes()
	require.NoError(t, err)
	byID := map[string]model.Route{}
	for _, r := range routes {
		byID[r.RouteID] = r
	}

	// Tram: marker trimmed, line 11 color, long name title-cased with PKP kept.
	assert.Equal(t, "11", byID["r1"].ShortName)
	assert.Equal(t, "d8c497", byID["r1"].Color)
	assert.Equal(t, "000000", byID["r1"].TextColor)
	assert.Equal(t, "Centrum - PKP Katowice", byID["r1"].LongName)

	// Temporary bus keeps its name but gets the T-% color.
	assert.Equal(t, "T-12", byID["r2"].ShortName)
	assert.Equal(t, "ffd403", byID["r2"].Color)

	// May 1st now runs the Sunday services.
	ids, err := p.Store.ServiceIDsOn(model.NewDate(2024, time.May, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"17:sun"}, ids)

	// feed_info was stamped.
	infos, err := p.Store.FeedInfos()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, PublisherName, infos[0].PublisherName)
	assert.Equal(t, "2024.03.01", infos[0].Version)

	// The final archive contains every table with the fixed headers.
	routesCSV := readArchiveFile(t, output, "routes.txt")
	assert.Contains(t, routesCSV, "route_id,agency_id,route_short_name,route_long_name,route_type,route_color,route_text_color")
	assert.Contains(t, routesCSV, "d8c497")

	feedInfoCSV := readArchiveFile(t, output, "feed_info.txt")
	assert.Contains(t, feedInfoCSV, "2024.03.01")

	for _, name := range []string{"agency.txt", "calendar_dates.txt", "stops.txt", "stop_times.txt", "trips.txt", "shapes.txt"} {
		readArchiveFile(t, output, name) // must exist even when empty
	}
}

func TestFinalizeSkipsHolidayWithoutSundayPattern(t *testing.T) {
	dir := t.TempDir()
	path := buildArchive(t, dir, "GTFS 2024.03.01 cz.1_17_2024.zip", map[string]string{
		"calendar_dates.txt": "service_id,date,exception_type\nwd,20240501,1\n",
	})

	p := newTestProcessor(t)
	require.NoError(t, p.LoadAll([]model.FeedDescriptor{{
		Path: path, Name: filepath.Base(path), Version: "17",
		StartDate: model.NewDate(2024, time.March, 1),
	}}))

	output := filepath.Join(dir, "out.zip")
	require.NoError(t, p.Finalize("2024.03.01", []model.Date{model.NewDate(2024, time.May, 1)}, output))

	// No Sunday reference exists, so the scheduled services stay.
	ids, err := p.Store.ServiceIDsOn(model.NewDate(2024, time.May, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"17:wd"}, ids)
}
