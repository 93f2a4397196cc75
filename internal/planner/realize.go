package planner

import (
	"context"
	"fmt"
	"slices"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/clock"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/graph"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/timetable"
)

// FewestTransfers finds the platform path with the fewest transfers (then
// fewest hops) among lines running on the date and realizes it on trains
func (e *Engine) FewestTransfers(ctx context.Context, req Request) (*Journey, error) {
	if err := e.check(&req); err != nil {
		return nil, err
	}
	sd, err := e.ix.ServiceDay(req.Date)
	if err != nil {
		return nil, err
	}
	allow := func(ed graph.Edge) bool {
		for _, n := range []graph.Node{ed.From, ed.To} {
			if n.Kind != graph.Platform {
				continue
			}
			if _, ok := sd.Group(n.Line); !ok {
				return false
			}
		}
		return true
	}
	path, err := graph.ShortestPath(e.graph, graph.EntryNode(req.Origin), graph.ExitNode(req.Destination), allow)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return e.realize(path, req, sd)
}

// ToTrains turns a platform path into a concrete itinerary leaving at
// req.Depart: each run of ride hops boards the earliest train that carries
// the rider to the end of the run, following through trains across joins.
// A run no single train covers is split with a transfer where the train ends.
func (e *Engine) ToTrains(path graph.Path, req Request) (*Journey, error) {
	sd, err := e.ix.ServiceDay(req.Date)
	if err != nil {
		return nil, err
	}
	return e.realize(path, req, sd)
}

type realizer struct {
	e       *Engine
	sd      *timetable.ServiceDay
	req     Request
	now     int
	j       *Journey
	pending *Transfer
}

func (e *Engine) realize(path graph.Path, req Request, sd *timetable.ServiceDay) (*Journey, error) {
	r := &realizer{
		e:   e,
		sd:  sd,
		req: req,
		now: req.Depart.Absolute(),
		j:   &Journey{Origin: req.Origin, Destination: req.Destination},
	}
	edges := path.Edges
	for i := 0; i < len(edges); {
		ed := edges[i]
		switch ed.Kind {
		case graph.Ride, graph.Through:
			nodes := []graph.Node{ed.From}
			for i < len(edges) && (edges[i].Kind == graph.Ride || edges[i].Kind == graph.Through) {
				nodes = append(nodes, edges[i].To)
				i++
			}
			if err := r.ride(nodes); err != nil {
				return nil, err
			}
			continue
		case graph.Transfer, graph.VirtualTransfer:
			r.pending = &Transfer{
				Station: ed.From.Station, ToStation: ed.To.Station,
				FromLine: ed.From.Line, FromDirection: ed.From.Direction,
				ToLine: ed.To.Line, ToDirection: ed.To.Direction,
				Minutes: ed.Minutes, Virtual: ed.Kind == graph.VirtualTransfer,
			}
			r.now += ed.Minutes
			r.j.Transfers++
		case graph.Access:
			if ed.From.Station != ed.To.Station {
				r.pending = &Transfer{
					Station: ed.From.Station, ToStation: ed.To.Station,
					ToLine: ed.To.Line, ToDirection: ed.To.Direction,
					Minutes: ed.Minutes, Virtual: true,
				}
				r.now += ed.Minutes
			}
		case graph.Egress, graph.Walk:
			if ed.From.Station != ed.To.Station {
				walk := &Transfer{
					Station: ed.From.Station, ToStation: ed.To.Station,
					Minutes: ed.Minutes, Virtual: true,
				}
				if len(r.j.Rides()) > 0 {
					walk.FromLine, walk.FromDirection = ed.From.Line, ed.From.Direction
				}
				r.j.Segments = append(r.j.Segments, Segment{Transfer: walk})
				r.now += ed.Minutes
			}
		}
		i++
	}
	r.j.Arrive = clock.FromAbsolute(r.now)
	r.j.Depart = departure(r.j, req.Depart)
	return r.j, nil
}

type reach struct {
	to    int // index into the run's nodes
	chain []*city.Train
	board int // boarding stop index on the first train
	pos   int // alighting stop index on the last train
}

// follow rides a boarded call along the run as far as it goes
func (r *realizer) follow(c timetable.Call, nodes []graph.Node, from int) reach {
	t, pos := c.Train, c.Pos
	chain := []*city.Train{t}
	best := reach{to: from, chain: chain, board: c.Pos, pos: pos}
	for k := from + 1; k < len(nodes); k++ {
		n := nodes[k]
		if n.Station == nodes[k-1].Station {
			next, ok := r.e.ix.Through().Next(t)
			if !ok || pos != len(t.Stops)-1 || next.Line != n.Line || next.Direction != n.Direction || !r.req.Routes.Accepts(next) {
				break
			}
			t, pos = next, 0
			chain = append(slices.Clone(chain), t)
			continue
		}
		if n.Line != t.Line || n.Direction != t.Direction {
			break
		}
		if p := t.Index(n.Station, pos+1); p >= 0 {
			pos = p
			best = reach{to: k, chain: chain, board: c.Pos, pos: p}
		}
	}
	return best
}

func (r *realizer) ride(nodes []graph.Node) error {
	// a through join at either end of the run is not ridden
	for len(nodes) > 1 && nodes[0].Station == nodes[1].Station {
		nodes = nodes[1:]
	}
	for len(nodes) > 1 && nodes[len(nodes)-1].Station == nodes[len(nodes)-2].Station {
		nodes = nodes[:len(nodes)-1]
	}

	last := len(nodes) - 1
	for i := 0; i < last; {
		n := nodes[i]
		group, ok := r.sd.Group(n.Line)
		if !ok {
			return fmt.Errorf("%s has no service: %w", n.Line, ErrUnreachable)
		}
		calls := r.e.ix.Departures(n.Line, n.Direction, group, n.Station, clock.FromAbsolute(r.now), r.req.Routes, 0)
		var (
			best  reach
			found bool
		)
		for _, c := range calls {
			res := r.follow(c, nodes, i)
			if res.to == last {
				best, found = res, true
				break
			}
			if !found && res.to > i {
				best, found = res, true
			}
		}
		if !found {
			return fmt.Errorf("no %s %s train from %s after %s: %w",
				n.Line, n.Direction, n.Station, clock.FromAbsolute(r.now), ErrUnreachable)
		}

		first := best.chain[0]
		end := best.chain[len(best.chain)-1]
		ride := &Ride{
			Line:        first.Line,
			Direction:   first.Direction,
			Trains:      best.chain,
			Board:       first.Stops[best.board],
			Alight:      end.Stops[best.pos],
			BoardIndex:  best.board,
			AlightIndex: best.pos,
		}
		if r.pending != nil {
			r.j.Segments = append(r.j.Segments, Segment{Transfer: r.pending})
			r.pending = nil
		}
		r.j.Segments = append(r.j.Segments, Segment{Ride: ride})
		r.j.InVehicle += ride.Minutes()
		r.now = ride.Alight.Time.Absolute()
		i = best.to
		if i == last {
			break
		}

		// the train ends short of the run: change at this station
		to := nodes[i]
		if nodes[i+1].Station == to.Station {
			i++
			to = nodes[i]
		}
		k := city.TransferKey{FromLine: end.Line, FromDirection: end.Direction, ToLine: to.Line, ToDirection: to.Direction}
		m := r.e.city.TransferMinutes(to.Station, k)
		r.pending = &Transfer{
			Station: to.Station, ToStation: to.Station,
			FromLine: end.Line, FromDirection: end.Direction,
			ToLine: to.Line, ToDirection: to.Direction,
			Minutes: m,
		}
		r.now += m
		r.j.Transfers++
	}
	return nil
}
