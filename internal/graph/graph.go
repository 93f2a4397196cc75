// Package graph builds the static platform graph used by the fewest-transfer
// strategy and runs Dijkstra over it.
package graph

import (
	"cmp"
	"slices"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
)

// NodeKind distinguishes platforms from station entry and exit nodes
type NodeKind int

const (
	Platform NodeKind = iota
	Entry
	Exit
)

// Node is a platform (station, line, direction) or a station entry/exit
type Node struct {
	Kind      NodeKind
	Station   string
	Line      string
	Direction string
}

// Compare orders nodes by station first, then kind, line and direction
func (n Node) Compare(o Node) int {
	return cmp.Or(
		cmp.Compare(n.Station, o.Station),
		cmp.Compare(n.Kind, o.Kind),
		cmp.Compare(n.Line, o.Line),
		cmp.Compare(n.Direction, o.Direction),
	)
}

// EdgeKind tells what moving along an edge means for the rider
type EdgeKind int

const (
	Ride EdgeKind = iota
	Transfer
	VirtualTransfer
	Through
	Access // entry node to platform, or walk from the origin to a paired station
	Egress // platform to exit node, or walk to a paired destination
	Walk   // entry of one station straight to the exit of its virtual partner
)

func (k EdgeKind) String() string {
	switch k {
	case Ride:
		return "ride"
	case Transfer:
		return "transfer"
	case VirtualTransfer:
		return "virtual transfer"
	case Through:
		return "through"
	case Access:
		return "access"
	case Egress:
		return "egress"
	case Walk:
		return "walk"
	}
	return "unknown"
}

// Edge is a directed, weighted connection
type Edge struct {
	From    Node
	To      Node
	Kind    EdgeKind
	Weight  int
	Minutes int // walking minutes for transfers and walks
}

// Options control edge weights
type Options struct {
	// IgnoreDists weighs every ride hop and every transfer as 1
	IgnoreDists bool
	// TransferPenalty is added to every transfer edge
	TransferPenalty int
}

// Graph is an immutable adjacency list
type Graph struct {
	adj   map[Node][]Edge
	edges int
}

// Build derives the platform graph of a city
func Build(c *city.City, opts Options) *Graph {
	g := &Graph{adj: make(map[Node][]Edge)}
	hop := func(metres int) int {
		if opts.IgnoreDists {
			return 1
		}
		return metres
	}
	walk := func(minutes int) int {
		if opts.IgnoreDists {
			return 1
		}
		return minutes
	}

	platforms := make(map[string][]Node)
	for _, name := range c.LineOrder {
		l := c.Lines[name]
		for _, dirName := range l.DirectionOrder {
			d := l.Directions[dirName]
			for _, s := range d.Stations {
				p := Node{Kind: Platform, Station: s, Line: l.Name, Direction: dirName}
				platforms[s] = append(platforms[s], p)
				if next, metres, ok := d.Next(s, l.Loop); ok {
					g.add(Edge{From: p, To: Node{Kind: Platform, Station: next, Line: l.Name, Direction: dirName}, Kind: Ride, Weight: hop(metres)})
				}
			}
		}
	}

	for _, s := range c.StationNames() {
		in, out := Node{Kind: Entry, Station: s}, Node{Kind: Exit, Station: s}
		for _, p := range platforms[s] {
			g.add(Edge{From: in, To: p, Kind: Access})
			g.add(Edge{From: p, To: out, Kind: Egress})
			for _, q := range platforms[s] {
				if p == q {
					continue
				}
				m := c.TransferMinutes(s, key(p, q))
				g.add(Edge{From: p, To: q, Kind: Transfer, Weight: walk(m) + opts.TransferPenalty, Minutes: m})
			}
		}
	}

	for _, v := range c.VirtualTransfers {
		for _, dir := range [][2]string{{v.Pair[0], v.Pair[1]}, {v.Pair[1], v.Pair[0]}} {
			from, to := dir[0], dir[1]
			if m, ok := v.MinMinutes(from, to, nil); ok {
				g.add(Edge{From: Node{Kind: Entry, Station: from}, To: Node{Kind: Exit, Station: to}, Kind: Walk, Weight: walk(m), Minutes: m})
			}
			for _, q := range platforms[to] {
				if m, ok := v.MinMinutes(from, to, boardsOnto(q)); ok {
					g.add(Edge{From: Node{Kind: Entry, Station: from}, To: q, Kind: Access, Weight: walk(m), Minutes: m})
				}
			}
			for _, p := range platforms[from] {
				if m, ok := v.MinMinutes(from, to, alightsFrom(p)); ok {
					g.add(Edge{From: p, To: Node{Kind: Exit, Station: to}, Kind: Egress, Weight: walk(m), Minutes: m})
				}
				for _, q := range platforms[to] {
					if m, ok := v.Minutes(from, to, key(p, q)); ok {
						g.add(Edge{From: p, To: q, Kind: VirtualTransfer, Weight: walk(m) + opts.TransferPenalty, Minutes: m})
					}
				}
			}
		}
	}

	for _, spec := range c.ThroughSpecs {
		for i := 0; i+1 < len(spec.Segments); i++ {
			a, b := spec.Segments[i], spec.Segments[i+1]
			dir := c.Lines[b.Line].Directions[b.Direction]
			junction := dir.Stations[0]
			from := Node{Kind: Platform, Station: junction, Line: a.Line, Direction: a.Direction}
			to := Node{Kind: Platform, Station: junction, Line: b.Line, Direction: b.Direction}
			g.add(Edge{From: from, To: to, Kind: Through})
		}
	}

	for n, edges := range g.adj {
		sortEdges(edges)
		g.adj[n] = edges
	}
	return g
}

func key(p, q Node) city.TransferKey {
	return city.TransferKey{FromLine: p.Line, FromDirection: p.Direction, ToLine: q.Line, ToDirection: q.Direction}
}

func boardsOnto(q Node) func(city.TransferKey) bool {
	return func(k city.TransferKey) bool {
		return k.ToLine == q.Line && (k.ToDirection == "" || k.ToDirection == q.Direction)
	}
}

func alightsFrom(p Node) func(city.TransferKey) bool {
	return func(k city.TransferKey) bool {
		return k.FromLine == p.Line && (k.FromDirection == "" || k.FromDirection == p.Direction)
	}
}

func (g *Graph) add(e Edge) {
	g.adj[e.From] = append(g.adj[e.From], e)
	g.edges++
}

func sortEdges(edges []Edge) {
	slices.SortStableFunc(edges, func(a, b Edge) int {
		return a.To.Compare(b.To)
	})
}

// Edges returns the outgoing edges of a node, ordered by target
func (g *Graph) Edges(n Node) []Edge { return g.adj[n] }

// EntryNode is where a journey from a station starts
func EntryNode(station string) Node { return Node{Kind: Entry, Station: station} }

// ExitNode is where a journey to a station ends
func ExitNode(station string) Node { return Node{Kind: Exit, Station: station} }

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int { return g.edges }

// NodeCount returns the number of nodes with outgoing edges
func (g *Graph) NodeCount() int { return len(g.adj) }
