package store

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
)

// rows is the subset of a result set both database/sql and pgx provide
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// backend abstracts the SQL driver. Statements use "?" placeholders.
type backend interface {
	query(ctx context.Context, sql string, fn func(rows) error) error
	exec(ctx context.Context, sql string, args ...any) error
}

var tables = []string{
	"stops", "trains", "date_groups", "directions", "line_stations", "lines",
	"transfers", "virtual_transfers", "through_trains", "through_segments",
	"through_specs", "fare_rules", "coordinates", "city",
}

func joinList(items []string) string { return strings.Join(items, ",") }

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// writeDocument replaces the stored city. The document must be expanded.
func writeDocument(ctx context.Context, b backend, d *Document, importID, importedAt string) error {
	for _, t := range tables {
		if err := b.exec(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}
	if err := b.exec(ctx,
		"INSERT INTO city (id, name, default_transfer_minutes, import_id, imported_at) VALUES (1, ?, ?, ?, ?)",
		d.Name, d.DefaultTransferMinutes, importID, importedAt); err != nil {
		return fmt.Errorf("failed to insert city: %w", err)
	}

	trainID := 0
	for i, l := range d.Lines {
		if err := b.exec(ctx, "INSERT INTO lines (name, code, is_loop, pos) VALUES (?, ?, ?, ?)",
			l.Name, l.Code, boolInt(l.Loop), i); err != nil {
			return fmt.Errorf("failed to insert line %s: %w", l.Name, err)
		}
		for j, s := range l.Stations {
			dist := 0
			if j < len(l.Distances) {
				dist = l.Distances[j]
			}
			if err := b.exec(ctx, "INSERT INTO line_stations (line, pos, station, distance) VALUES (?, ?, ?, ?)",
				l.Name, j, s, dist); err != nil {
				return fmt.Errorf("failed to insert station %s: %w", s, err)
			}
		}
		for j, dd := range l.Directions {
			if err := b.exec(ctx, "INSERT INTO directions (line, name, reversed, pos) VALUES (?, ?, ?, ?)",
				l.Name, dd.Name, boolInt(dd.Reversed), j); err != nil {
				return fmt.Errorf("failed to insert direction %s: %w", dd.Name, err)
			}
		}
		for j, g := range l.DateGroups {
			if err := b.exec(ctx, `INSERT INTO date_groups
				(line, name, weekdays, dates, exclude_dates, valid_from, valid_until, pos)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				l.Name, g.Name, joinList(g.Weekdays), joinList(g.Dates), joinList(g.ExcludeDates), g.From, g.Until, j); err != nil {
				return fmt.Errorf("failed to insert date group %s: %w", g.Name, err)
			}
		}
		for _, t := range l.Trains {
			trainID++
			if err := b.exec(ctx, "INSERT INTO trains (id, line, code, direction, date_group, routes) VALUES (?, ?, ?, ?, ?, ?)",
				trainID, l.Name, t.Code, t.Direction, t.DateGroup, joinList(t.Routes)); err != nil {
				return fmt.Errorf("failed to insert train %s: %w", t.Code, err)
			}
			for k, s := range t.Stops {
				if err := b.exec(ctx, "INSERT INTO stops (train_id, seq, station, arrival) VALUES (?, ?, ?, ?)",
					trainID, k, s.Station, s.Time); err != nil {
					return fmt.Errorf("failed to insert stop of %s: %w", t.Code, err)
				}
			}
		}
	}

	for i, t := range d.Transfers {
		if err := b.exec(ctx, `INSERT INTO transfers
			(station, from_line, from_direction, to_line, to_direction, minutes, pos)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.Station, t.FromLine, t.FromDirection, t.ToLine, t.ToDirection, t.Minutes, i); err != nil {
			return fmt.Errorf("failed to insert transfer at %s: %w", t.Station, err)
		}
	}
	for i, v := range d.VirtualTransfers {
		if err := b.exec(ctx, `INSERT INTO virtual_transfers
			(from_station, to_station, from_line, from_direction, to_line, to_direction, minutes, pos)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			v.From, v.To, v.FromLine, v.FromDirection, v.ToLine, v.ToDirection, v.Minutes, i); err != nil {
			return fmt.Errorf("failed to insert virtual transfer %s/%s: %w", v.From, v.To, err)
		}
	}
	for i, td := range d.Through {
		if err := b.exec(ctx, "INSERT INTO through_specs (name, max_layover, pos) VALUES (?, ?, ?)",
			td.Name, td.MaxLayover, i); err != nil {
			return fmt.Errorf("failed to insert through spec %s: %w", td.Name, err)
		}
		for j, seg := range td.Segments {
			if err := b.exec(ctx, "INSERT INTO through_segments (spec, seq, line, direction, date_group) VALUES (?, ?, ?, ?, ?)",
				td.Name, j, seg.Line, seg.Direction, seg.DateGroup); err != nil {
				return fmt.Errorf("failed to insert through segment: %w", err)
			}
		}
		for run, codes := range td.Trains {
			for j, code := range codes {
				if err := b.exec(ctx, "INSERT INTO through_trains (spec, run, seq, code) VALUES (?, ?, ?, ?)",
					td.Name, run, j, code); err != nil {
					return fmt.Errorf("failed to insert through train: %w", err)
				}
			}
		}
	}
	for i, f := range d.Fares {
		body, err := yaml.Marshal(f)
		if err != nil {
			return fmt.Errorf("failed to encode fare rule: %w", err)
		}
		if err := b.exec(ctx, "INSERT INTO fare_rules (pos, body) VALUES (?, ?)", i, string(body)); err != nil {
			return fmt.Errorf("failed to insert fare rule: %w", err)
		}
	}
	for _, co := range d.Coordinates {
		if err := b.exec(ctx, "INSERT INTO coordinates (station, lat, lon) VALUES (?, ?, ?)",
			co.Station, co.Lat, co.Lon); err != nil {
			return fmt.Errorf("failed to insert coordinates of %s: %w", co.Station, err)
		}
	}
	return nil
}

// readDocument loads the stored city as an expanded document
func readDocument(ctx context.Context, b backend) (*Document, error) {
	d := &Document{}
	found := false
	err := b.query(ctx, "SELECT name, default_transfer_minutes FROM city WHERE id = 1", func(r rows) error {
		found = true
		return r.Scan(&d.Name, &d.DefaultTransferMinutes)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query city: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: no city stored", city.ErrNotFound)
	}

	lines := make(map[string]*LineDoc)
	err = b.query(ctx, "SELECT name, code, is_loop FROM lines ORDER BY pos", func(r rows) error {
		var l LineDoc
		var loop int
		if err := r.Scan(&l.Name, &l.Code, &loop); err != nil {
			return err
		}
		l.Loop = loop != 0
		d.Lines = append(d.Lines, l)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query lines: %w", err)
	}
	for i := range d.Lines {
		lines[d.Lines[i].Name] = &d.Lines[i]
	}
	line := func(name string) (*LineDoc, error) {
		l, ok := lines[name]
		if !ok {
			return nil, fmt.Errorf("row references unknown line %q", name)
		}
		return l, nil
	}

	err = b.query(ctx, "SELECT line, station, distance FROM line_stations ORDER BY line, pos", func(r rows) error {
		var name, station string
		var dist int
		if err := r.Scan(&name, &station, &dist); err != nil {
			return err
		}
		l, err := line(name)
		if err != nil {
			return err
		}
		l.Stations = append(l.Stations, station)
		l.Distances = append(l.Distances, dist)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query line stations: %w", err)
	}
	for i := range d.Lines {
		l := &d.Lines[i]
		if !l.Loop && len(l.Distances) > 0 {
			l.Distances = l.Distances[:len(l.Distances)-1]
		}
	}

	err = b.query(ctx, "SELECT line, name, reversed FROM directions ORDER BY line, pos", func(r rows) error {
		var name string
		var dd DirectionDoc
		var reversed int
		if err := r.Scan(&name, &dd.Name, &reversed); err != nil {
			return err
		}
		dd.Reversed = reversed != 0
		l, err := line(name)
		if err != nil {
			return err
		}
		l.Directions = append(l.Directions, dd)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query directions: %w", err)
	}

	err = b.query(ctx, `SELECT line, name, weekdays, dates, exclude_dates, valid_from, valid_until
		FROM date_groups ORDER BY line, pos`, func(r rows) error {
		var name, weekdays, dates, excluded string
		var g DateGroupDoc
		if err := r.Scan(&name, &g.Name, &weekdays, &dates, &excluded, &g.From, &g.Until); err != nil {
			return err
		}
		g.Weekdays, g.Dates, g.ExcludeDates = splitList(weekdays), splitList(dates), splitList(excluded)
		l, err := line(name)
		if err != nil {
			return err
		}
		l.DateGroups = append(l.DateGroups, g)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query date groups: %w", err)
	}

	type trainRef struct {
		line  *LineDoc
		index int
	}
	trains := make(map[int]trainRef)
	err = b.query(ctx, "SELECT id, line, code, direction, date_group, routes FROM trains ORDER BY id", func(r rows) error {
		var id int
		var name, routes string
		var t TrainDoc
		if err := r.Scan(&id, &name, &t.Code, &t.Direction, &t.DateGroup, &routes); err != nil {
			return err
		}
		t.Routes = splitList(routes)
		l, err := line(name)
		if err != nil {
			return err
		}
		l.Trains = append(l.Trains, t)
		trains[id] = trainRef{l, len(l.Trains) - 1}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query trains: %w", err)
	}
	err = b.query(ctx, "SELECT train_id, station, arrival FROM stops ORDER BY train_id, seq", func(r rows) error {
		var id int
		var s StopDoc
		if err := r.Scan(&id, &s.Station, &s.Time); err != nil {
			return err
		}
		ref, ok := trains[id]
		if !ok {
			return fmt.Errorf("stop references unknown train %d", id)
		}
		t := &ref.line.Trains[ref.index]
		t.Stops = append(t.Stops, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}

	err = b.query(ctx, `SELECT station, from_line, from_direction, to_line, to_direction, minutes
		FROM transfers ORDER BY pos`, func(r rows) error {
		var t TransferDoc
		if err := r.Scan(&t.Station, &t.FromLine, &t.FromDirection, &t.ToLine, &t.ToDirection, &t.Minutes); err != nil {
			return err
		}
		d.Transfers = append(d.Transfers, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	err = b.query(ctx, `SELECT from_station, to_station, from_line, from_direction, to_line, to_direction, minutes
		FROM virtual_transfers ORDER BY pos`, func(r rows) error {
		var v VirtualTransferDoc
		if err := r.Scan(&v.From, &v.To, &v.FromLine, &v.FromDirection, &v.ToLine, &v.ToDirection, &v.Minutes); err != nil {
			return err
		}
		d.VirtualTransfers = append(d.VirtualTransfers, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query virtual transfers: %w", err)
	}

	specs := make(map[string]int)
	err = b.query(ctx, "SELECT name, max_layover FROM through_specs ORDER BY pos", func(r rows) error {
		var td ThroughDoc
		if err := r.Scan(&td.Name, &td.MaxLayover); err != nil {
			return err
		}
		specs[td.Name] = len(d.Through)
		d.Through = append(d.Through, td)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query through specs: %w", err)
	}
	err = b.query(ctx, "SELECT spec, line, direction, date_group FROM through_segments ORDER BY spec, seq", func(r rows) error {
		var spec string
		var seg ThroughSegmentDoc
		if err := r.Scan(&spec, &seg.Line, &seg.Direction, &seg.DateGroup); err != nil {
			return err
		}
		i, ok := specs[spec]
		if !ok {
			return fmt.Errorf("segment references unknown through spec %q", spec)
		}
		d.Through[i].Segments = append(d.Through[i].Segments, seg)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query through segments: %w", err)
	}
	err = b.query(ctx, "SELECT spec, run, code FROM through_trains ORDER BY spec, run, seq", func(r rows) error {
		var spec, code string
		var run int
		if err := r.Scan(&spec, &run, &code); err != nil {
			return err
		}
		i, ok := specs[spec]
		if !ok {
			return fmt.Errorf("through train references unknown spec %q", spec)
		}
		td := &d.Through[i]
		for len(td.Trains) <= run {
			td.Trains = append(td.Trains, nil)
		}
		td.Trains[run] = append(td.Trains[run], code)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query through trains: %w", err)
	}

	err = b.query(ctx, "SELECT body FROM fare_rules ORDER BY pos", func(r rows) error {
		var body string
		if err := r.Scan(&body); err != nil {
			return err
		}
		var f FareDoc
		if err := yaml.Unmarshal([]byte(body), &f); err != nil {
			return err
		}
		d.Fares = append(d.Fares, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query fare rules: %w", err)
	}
	err = b.query(ctx, "SELECT station, lat, lon FROM coordinates ORDER BY station", func(r rows) error {
		var co CoordinateDoc
		if err := r.Scan(&co.Station, &co.Lat, &co.Lon); err != nil {
			return err
		}
		d.Coordinates = append(d.Coordinates, co)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query coordinates: %w", err)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
