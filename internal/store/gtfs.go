package store

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// GTFSFeed holds the static GTFS tables a city is built from
type GTFSFeed struct {
	Agencies      []GTFSAgency
	Routes        []GTFSRoute
	Stops         []GTFSStop
	Trips         []GTFSTrip
	StopTimes     []GTFSStopTime
	Calendars     []GTFSCalendar
	CalendarDates []GTFSCalendarDate
	Transfers     []GTFSTransfer
}

// GTFSAgency is a row of agency.txt
type GTFSAgency struct {
	AgencyID   string
	AgencyName string
}

// GTFSRoute is a row of routes.txt
type GTFSRoute struct {
	RouteID        string
	RouteShortName string
	RouteLongName  string
}

// GTFSStop is a row of stops.txt
type GTFSStop struct {
	StopID        string
	StopName      string
	StopLat       float64
	StopLon       float64
	ParentStation string
}

// GTFSTrip is a row of trips.txt
type GTFSTrip struct {
	RouteID       string
	ServiceID     string
	TripID        string
	TripHeadsign  string
	TripShortName string
	DirectionID   int
}

// GTFSStopTime is a row of stop_times.txt
type GTFSStopTime struct {
	TripID        string
	ArrivalTime   string
	DepartureTime string
	StopID        string
	StopSequence  int
}

// GTFSCalendar is a row of calendar.txt
type GTFSCalendar struct {
	ServiceID string
	Weekdays  []string
	StartDate string
	EndDate   string
}

// GTFSCalendarDate is a row of calendar_dates.txt; ExceptionType 1 adds the
// date, 2 removes it
type GTFSCalendarDate struct {
	ServiceID     string
	Date          string
	ExceptionType int
}

// GTFSTransfer is a row of transfers.txt
type GTFSTransfer struct {
	FromStopID      string
	ToStopID        string
	FromRouteID     string
	ToRouteID       string
	TransferType    int
	MinTransferTime int // seconds
}

// ParseGTFS reads a GTFS zip file
func ParseGTFS(zipPath string) (*GTFSFeed, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	files := make(map[string]*zip.File)
	for _, f := range r.File {
		files[filepath.Base(f.Name)] = f
	}
	for _, required := range []string{"routes.txt", "stops.txt", "trips.txt", "stop_times.txt"} {
		if _, ok := files[required]; !ok {
			return nil, fmt.Errorf("GTFS feed %s has no %s", zipPath, required)
		}
	}

	feed := &GTFSFeed{}
	parsers := []struct {
		name  string
		parse func(rec gtfsRecord)
	}{
		{"agency.txt", func(rec gtfsRecord) {
			feed.Agencies = append(feed.Agencies, GTFSAgency{
				AgencyID:   rec.get("agency_id"),
				AgencyName: rec.get("agency_name"),
			})
		}},
		{"routes.txt", func(rec gtfsRecord) {
			feed.Routes = append(feed.Routes, GTFSRoute{
				RouteID:        rec.get("route_id"),
				RouteShortName: rec.get("route_short_name"),
				RouteLongName:  rec.get("route_long_name"),
			})
		}},
		{"stops.txt", func(rec gtfsRecord) {
			lat, _ := strconv.ParseFloat(rec.get("stop_lat"), 64)
			lon, _ := strconv.ParseFloat(rec.get("stop_lon"), 64)
			feed.Stops = append(feed.Stops, GTFSStop{
				StopID:        rec.get("stop_id"),
				StopName:      rec.get("stop_name"),
				StopLat:       lat,
				StopLon:       lon,
				ParentStation: rec.get("parent_station"),
			})
		}},
		{"trips.txt", func(rec gtfsRecord) {
			directionID, _ := strconv.Atoi(rec.get("direction_id"))
			feed.Trips = append(feed.Trips, GTFSTrip{
				RouteID:       rec.get("route_id"),
				ServiceID:     rec.get("service_id"),
				TripID:        rec.get("trip_id"),
				TripHeadsign:  rec.get("trip_headsign"),
				TripShortName: rec.get("trip_short_name"),
				DirectionID:   directionID,
			})
		}},
		{"stop_times.txt", func(rec gtfsRecord) {
			seq, _ := strconv.Atoi(rec.get("stop_sequence"))
			feed.StopTimes = append(feed.StopTimes, GTFSStopTime{
				TripID:        rec.get("trip_id"),
				ArrivalTime:   rec.get("arrival_time"),
				DepartureTime: rec.get("departure_time"),
				StopID:        rec.get("stop_id"),
				StopSequence:  seq,
			})
		}},
		{"calendar.txt", func(rec gtfsRecord) {
			c := GTFSCalendar{
				ServiceID: rec.get("service_id"),
				StartDate: rec.get("start_date"),
				EndDate:   rec.get("end_date"),
			}
			for d := time.Sunday; d <= time.Saturday; d++ {
				if rec.get(strings.ToLower(d.String())) == "1" {
					c.Weekdays = append(c.Weekdays, strings.ToLower(d.String()))
				}
			}
			feed.Calendars = append(feed.Calendars, c)
		}},
		{"calendar_dates.txt", func(rec gtfsRecord) {
			exception, _ := strconv.Atoi(rec.get("exception_type"))
			feed.CalendarDates = append(feed.CalendarDates, GTFSCalendarDate{
				ServiceID:     rec.get("service_id"),
				Date:          rec.get("date"),
				ExceptionType: exception,
			})
		}},
		{"transfers.txt", func(rec gtfsRecord) {
			transferType, _ := strconv.Atoi(rec.get("transfer_type"))
			seconds, _ := strconv.Atoi(rec.get("min_transfer_time"))
			feed.Transfers = append(feed.Transfers, GTFSTransfer{
				FromStopID:      rec.get("from_stop_id"),
				ToStopID:        rec.get("to_stop_id"),
				FromRouteID:     rec.get("from_route_id"),
				ToRouteID:       rec.get("to_route_id"),
				TransferType:    transferType,
				MinTransferTime: seconds,
			})
		}},
	}
	for _, t := range parsers {
		f, ok := files[t.name]
		if !ok {
			continue
		}
		if err := readCSV(f, t.parse); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", t.name, err)
		}
	}

	log.Printf("GTFS parsed: %d routes, %d stops, %d trips, %d stop times",
		len(feed.Routes), len(feed.Stops), len(feed.Trips), len(feed.StopTimes))
	return feed, nil
}

type gtfsRecord struct {
	fields []string
	idx    map[string]int
}

func (r gtfsRecord) get(field string) string {
	if i, ok := r.idx[field]; ok && i < len(r.fields) {
		return strings.TrimSpace(r.fields[i])
	}
	return ""
}

// readCSV calls fn for every row; malformed rows are skipped
func readCSV(f *zip.File, fn func(gtfsRecord)) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return err
	}
	idx := make(map[string]int)
	for i, h := range header {
		idx[strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")] = i
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			continue
		}
		if err != nil {
			return err
		}
		fn(gtfsRecord{fields: record, idx: idx})
	}
}

// LoadGTFS parses a GTFS zip and converts it into a city document
func LoadGTFS(zipPath string) (*Document, error) {
	feed, err := ParseGTFS(zipPath)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath))
	d := feed.Document(name)
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Document converts the feed into a city document. Each route becomes a line
// whose station order is the longest direction 0 trip; each service id
// becomes a date group. Stops are merged into their parent station's name.
// Trips that do not follow their direction's order are dropped.
func (feed *GTFSFeed) Document(fallbackName string) *Document {
	d := &Document{Name: fallbackName}
	if len(feed.Agencies) > 0 && feed.Agencies[0].AgencyName != "" {
		d.Name = feed.Agencies[0].AgencyName
	}

	stops := make(map[string]GTFSStop, len(feed.Stops))
	for _, s := range feed.Stops {
		stops[s.StopID] = s
	}
	// station resolves a stop id to its station name and location
	station := func(stopID string) (GTFSStop, bool) {
		s, ok := stops[stopID]
		if !ok {
			return GTFSStop{}, false
		}
		if p, ok := stops[s.ParentStation]; ok {
			return p, true
		}
		return s, true
	}

	callsByTrip := make(map[string][]GTFSStopTime)
	for _, st := range feed.StopTimes {
		callsByTrip[st.TripID] = append(callsByTrip[st.TripID], st)
	}
	for _, calls := range callsByTrip {
		sort.Slice(calls, func(i, j int) bool { return calls[i].StopSequence < calls[j].StopSequence })
	}
	tripsByRoute := make(map[string][]GTFSTrip)
	for _, t := range feed.Trips {
		tripsByRoute[t.RouteID] = append(tripsByRoute[t.RouteID], t)
	}

	byName := make(map[string]GTFSStop)
	for _, s := range feed.Stops {
		if st, ok := station(s.StopID); ok {
			if _, seen := byName[st.StopName]; !seen {
				byName[st.StopName] = st
			}
		}
	}

	lineOf := make(map[string]string) // route id -> line name
	coords := make(map[string]GTFSStop)
	for _, route := range feed.Routes {
		ld, ok := feed.line(route, tripsByRoute[route.RouteID], callsByTrip, station)
		if !ok {
			log.Printf("Warning: route %s has no usable trips, skipped", route.RouteID)
			continue
		}
		for _, other := range d.Lines {
			if other.Name == ld.Name {
				ld.Name += " (" + route.RouteID + ")"
				break
			}
		}
		lineOf[route.RouteID] = ld.Name
		d.Lines = append(d.Lines, *ld)
		for _, name := range ld.Stations {
			coords[name] = byName[name]
		}
	}

	names := make([]string, 0, len(coords))
	for name := range coords {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := coords[name]
		if s.StopLat != 0 || s.StopLon != 0 {
			d.Coordinates = append(d.Coordinates, CoordinateDoc{Station: name, Lat: s.StopLat, Lon: s.StopLon})
		}
	}

	d.addGTFSTransfers(feed.Transfers, station, lineOf)
	return d
}

func (feed *GTFSFeed) line(route GTFSRoute, trips []GTFSTrip, callsByTrip map[string][]GTFSStopTime,
	station func(string) (GTFSStop, bool)) (*LineDoc, bool) {
	name := route.RouteShortName
	if name == "" {
		name = route.RouteLongName
	}
	if name == "" {
		name = route.RouteID
	}

	// stationsOf maps a trip to station names, dropping repeated platforms
	stationsOf := func(tripID string) []GTFSStop {
		var out []GTFSStop
		for _, call := range callsByTrip[tripID] {
			s, ok := station(call.StopID)
			if !ok {
				continue
			}
			if len(out) > 0 && out[len(out)-1].StopName == s.StopName {
				continue
			}
			out = append(out, s)
		}
		return out
	}

	// the longest direction 0 trip, or the reverse of the longest direction 1 trip
	var canonical []GTFSStop
	for _, want := range []int{0, 1} {
		for _, t := range trips {
			if t.DirectionID != want {
				continue
			}
			if s := stationsOf(t.TripID); len(s) > len(canonical) {
				canonical = s
			}
		}
		if len(canonical) > 0 {
			if want == 1 {
				for i, j := 0, len(canonical)-1; i < j; i, j = i+1, j-1 {
					canonical[i], canonical[j] = canonical[j], canonical[i]
				}
			}
			break
		}
	}
	loop := len(canonical) > 2 && canonical[0].StopName == canonical[len(canonical)-1].StopName
	if loop {
		canonical = canonical[:len(canonical)-1]
	}
	if len(canonical) < 2 {
		return nil, false
	}

	ld := &LineDoc{Name: name, Code: route.RouteShortName, Loop: loop}
	seen := make(map[string]bool)
	for _, s := range canonical {
		if seen[s.StopName] {
			// a station visited twice cannot be placed on a line
			return nil, false
		}
		seen[s.StopName] = true
		ld.Stations = append(ld.Stations, s.StopName)
	}
	for i := range canonical {
		if i == len(canonical)-1 && !loop {
			break
		}
		next := canonical[(i+1)%len(canonical)]
		ld.Distances = append(ld.Distances, haversineMetres(canonical[i], next))
	}

	dirNames := directionNames(trips)
	ld.Directions = []DirectionDoc{{Name: dirNames[0]}, {Name: dirNames[1], Reversed: true}}
	orders := [2][]string{ld.Stations, ld.directionStations(dirNames[1])}

	groups := make(map[string]bool)
	for _, t := range trips {
		dir := t.DirectionID
		if dir != 0 && dir != 1 {
			continue
		}
		train := TrainDoc{Code: t.TripID, Direction: dirNames[dir], DateGroup: t.ServiceID}
		if t.TripShortName != "" {
			train.Routes = []string{t.TripShortName}
		}
		prev := -1
		for _, call := range callsByTrip[t.TripID] {
			s, ok := station(call.StopID)
			if !ok {
				continue
			}
			at, ok := gtfsMinutes(call.DepartureTime)
			if !ok {
				if at, ok = gtfsMinutes(call.ArrivalTime); !ok {
					continue
				}
			}
			// whole minutes must strictly increase along a train
			if at <= prev {
				at = prev + 1
			}
			if n := len(train.Stops); n > 0 && train.Stops[n-1].Station == s.StopName {
				continue
			}
			train.Stops = append(train.Stops, StopDoc{Station: s.StopName, Time: fmt.Sprintf("%02d:%02d", at/60, at%60)})
			prev = at
		}
		if len(train.Stops) < 2 || !followsOrder(orders[dir], loop, train.Stops) {
			log.Printf("Warning: trip %s does not follow %s %s, skipped", t.TripID, name, dirNames[dir])
			continue
		}
		ld.Trains = append(ld.Trains, train)
		groups[t.ServiceID] = true
	}
	if len(ld.Trains) == 0 {
		return nil, false
	}

	for _, service := range sortedKeys(groups) {
		ld.DateGroups = append(ld.DateGroups, feed.dateGroup(service))
	}
	return ld, true
}

// directionNames picks the most common headsign per direction id
func directionNames(trips []GTFSTrip) [2]string {
	var counts [2]map[string]int
	for i := range counts {
		counts[i] = make(map[string]int)
	}
	for _, t := range trips {
		if (t.DirectionID == 0 || t.DirectionID == 1) && t.TripHeadsign != "" {
			counts[t.DirectionID][t.TripHeadsign]++
		}
	}
	var names [2]string
	for i, c := range counts {
		best := 0
		for _, h := range sortedKeys(c) {
			if c[h] > best {
				names[i], best = h, c[h]
			}
		}
	}
	if names[0] == "" || names[1] == "" || names[0] == names[1] {
		return [2]string{"Direction 0", "Direction 1"}
	}
	return names
}

func (feed *GTFSFeed) dateGroup(service string) DateGroupDoc {
	g := DateGroupDoc{Name: service}
	for _, c := range feed.Calendars {
		if c.ServiceID == service {
			g.Weekdays = c.Weekdays
			g.From = gtfsDate(c.StartDate)
			g.Until = gtfsDate(c.EndDate)
		}
	}
	for _, cd := range feed.CalendarDates {
		if cd.ServiceID != service {
			continue
		}
		switch cd.ExceptionType {
		case 1:
			g.Dates = append(g.Dates, gtfsDate(cd.Date))
		case 2:
			g.ExcludeDates = append(g.ExcludeDates, gtfsDate(cd.Date))
		}
	}
	return g
}

func (d *Document) addGTFSTransfers(transfers []GTFSTransfer, station func(string) (GTFSStop, bool), lineOf map[string]string) {
	servedBy := make(map[string][]string)
	for _, ld := range d.Lines {
		for _, s := range ld.Stations {
			servedBy[s] = append(servedBy[s], ld.Name)
		}
	}
	linesAt := func(stationName, routeID string) []string {
		if routeID == "" {
			return servedBy[stationName]
		}
		for _, l := range servedBy[stationName] {
			if l == lineOf[routeID] {
				return []string{l}
			}
		}
		return nil
	}

	for _, tr := range transfers {
		if tr.TransferType == 3 {
			continue // not possible
		}
		from, ok1 := station(tr.FromStopID)
		to, ok2 := station(tr.ToStopID)
		if !ok1 || !ok2 {
			continue
		}
		minutes := (tr.MinTransferTime + 59) / 60
		for _, fl := range linesAt(from.StopName, tr.FromRouteID) {
			for _, tl := range linesAt(to.StopName, tr.ToRouteID) {
				if from.StopName == to.StopName {
					if fl == tl {
						continue
					}
					d.Transfers = append(d.Transfers, TransferDoc{
						Station: from.StopName, FromLine: fl, ToLine: tl, Minutes: minutes,
					})
					continue
				}
				d.VirtualTransfers = append(d.VirtualTransfers, VirtualTransferDoc{
					From: from.StopName, To: to.StopName, FromLine: fl, ToLine: tl, Minutes: minutes,
				})
			}
		}
	}
}

// followsOrder reports whether stops visit order in sequence, wrapping at
// most once on loops
func followsOrder(order []string, loop bool, stops []StopDoc) bool {
	pos := make(map[string]int, len(order))
	for i, s := range order {
		pos[s] = i
	}
	n := len(order)
	travelled := 0
	for i, s := range stops {
		idx, ok := pos[s.Station]
		if !ok {
			return false
		}
		if i == 0 {
			continue
		}
		step := idx - pos[stops[i-1].Station]
		if loop {
			step = (step + n) % n
			travelled += step
			if step == 0 || travelled > n {
				return false
			}
		} else if step <= 0 {
			return false
		}
	}
	return true
}

// gtfsMinutes converts "H:MM:SS" (hours may exceed 23) to minutes after midnight
func gtfsMinutes(s string) (int, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// gtfsDate converts YYYYMMDD to YYYY-MM-DD
func gtfsDate(s string) string {
	if len(s) != 8 {
		return s
	}
	return s[:4] + "-" + s[4:6] + "-" + s[6:]
}

const earthRadiusMetres = 6371000

// haversineMetres is the great-circle distance between two stops, at least 1
func haversineMetres(a, b GTFSStop) int {
	if (a.StopLat == 0 && a.StopLon == 0) || (b.StopLat == 0 && b.StopLon == 0) {
		return 1000
	}
	rad := math.Pi / 180
	dLat := (b.StopLat - a.StopLat) * rad
	dLon := (b.StopLon - a.StopLon) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.StopLat*rad)*math.Cos(b.StopLat*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	m := int(math.Round(2 * earthRadiusMetres * math.Asin(math.Sqrt(h))))
	if m < 1 {
		return 1
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
