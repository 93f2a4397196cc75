package graph

import (
	"container/heap"
	"errors"
	"fmt"
)

// ErrUnreachable is returned when no path connects two nodes
var ErrUnreachable = errors.New("unreachable")

// Path is a shortest path with its total weight
type Path struct {
	Weight int
	Edges  []Edge
}

// Nodes returns the node sequence of the path, starting at its source
func (p Path) Nodes() []Node {
	if len(p.Edges) == 0 {
		return nil
	}
	nodes := make([]Node, 0, len(p.Edges)+1)
	nodes = append(nodes, p.Edges[0].From)
	for _, e := range p.Edges {
		nodes = append(nodes, e.To)
	}
	return nodes
}

// StationPath collapses the path into the sequence of stations visited
func (p Path) StationPath() []string {
	var out []string
	for _, n := range p.Nodes() {
		if len(out) == 0 || out[len(out)-1] != n.Station {
			out = append(out, n.Station)
		}
	}
	return out
}

// Transfers counts the changes between rides. Walks from the origin or to
// the destination are not changes.
func (p Path) Transfers() int {
	n := 0
	for _, e := range p.Edges {
		if e.Kind == Transfer || e.Kind == VirtualTransfer {
			n++
		}
	}
	return n
}

type item struct {
	node  Node
	dist  int
	index int
}

type queue []*item

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node.Compare(q[j].node) < 0
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	it := x.(*item)
	it.index = len(*q)
	*q = append(*q, it)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// ShortestPaths runs Dijkstra from src over the edges accepted by allow (nil
// accepts all) and returns a path to every reachable node. Among equal-weight
// paths the one with the lexicographically smaller node sequence wins.
func ShortestPaths(g *Graph, src Node, allow func(Edge) bool) map[Node]Path {
	dist := map[Node]int{src: 0}
	prev := make(map[Node]Edge)
	settled := make(map[Node]bool)

	pq := &queue{}
	heap.Push(pq, &item{node: src})

	for pq.Len() > 0 {
		it := heap.Pop(pq).(*item)
		u := it.node
		if settled[u] || it.dist > dist[u] {
			continue
		}
		settled[u] = true

		for _, e := range g.Edges(u) {
			if allow != nil && !allow(e) {
				continue
			}
			v := e.To
			if settled[v] {
				continue
			}
			nd := dist[u] + e.Weight
			old, seen := dist[v]
			switch {
			case !seen || nd < old:
				dist[v] = nd
				prev[v] = e
				heap.Push(pq, &item{node: v, dist: nd})
			case nd == old && lessPath(trace(prev, src, u, v), trace(prev, src, prev[v].From, v)):
				prev[v] = e
			}
		}
	}

	out := make(map[Node]Path, len(dist))
	for n, d := range dist {
		if n == src {
			out[n] = Path{}
			continue
		}
		var edges []Edge
		for cur := n; cur != src; cur = prev[cur].From {
			edges = append(edges, prev[cur])
		}
		for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
			edges[i], edges[j] = edges[j], edges[i]
		}
		out[n] = Path{Weight: d, Edges: edges}
	}
	return out
}

// trace returns the node sequence from src through pred to n
func trace(prev map[Node]Edge, src, pred, n Node) []Node {
	rev := []Node{n}
	for cur := pred; ; cur = prev[cur].From {
		rev = append(rev, cur)
		if cur == src {
			break
		}
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

func lessPath(a, b []Node) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := a[i].Compare(b[i]); c != 0 {
			return c < 0
		}
	}
	return len(a) < len(b)
}

// ShortestPath returns the shortest path between two nodes
func ShortestPath(g *Graph, src, dst Node, allow func(Edge) bool) (Path, error) {
	paths := ShortestPaths(g, src, allow)
	p, ok := paths[dst]
	if !ok {
		return Path{}, fmt.Errorf("%s to %s: %w", src.Station, dst.Station, ErrUnreachable)
	}
	return p, nil
}
