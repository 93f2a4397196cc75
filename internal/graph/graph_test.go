package graph_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/citytest"
	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/graph"
)

func TestShortestPathDistances(t *testing.T) {
	g := graph.Build(citytest.MustDemo(), graph.Options{})

	p, err := graph.ShortestPath(g, graph.EntryNode("Alpha"), graph.ExitNode("Beta"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Weight != 1200 {
		t.Errorf("expected weight 1200, got %d", p.Weight)
	}
	if got := p.StationPath(); !reflect.DeepEqual(got, []string{"Alpha", "Beta"}) {
		t.Errorf("unexpected station path %v", got)
	}
}

func TestShortestPathFewestTransfers(t *testing.T) {
	g := graph.Build(citytest.MustDemo(), graph.Options{IgnoreDists: true, TransferPenalty: 1000})

	tests := []struct {
		name          string
		from, to      string
		wantStations  []string
		wantTransfers int
	}{
		{"one transfer at Mid", "Alpha", "Zeta", []string{"Alpha", "Beta", "Mid", "Zeta"}, 1},
		{"through running is not a transfer", "Zeta", "Harbor", []string{"Zeta", "South-End", "Harbor"}, 0},
		{"virtual walk only", "East-Gate", "West-Plaza", []string{"East-Gate", "West-Plaza"}, 0},
		{"ride then virtual transfer", "Gamma", "Delta", []string{"Gamma", "East-Gate", "West-Plaza", "Delta"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := graph.ShortestPath(g, graph.EntryNode(tt.from), graph.ExitNode(tt.to), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := p.StationPath(); !reflect.DeepEqual(got, tt.wantStations) {
				t.Errorf("expected %v, got %v", tt.wantStations, got)
			}
			if got := p.Transfers(); got != tt.wantTransfers {
				t.Errorf("expected %d transfers, got %d", tt.wantTransfers, got)
			}
		})
	}
}

func TestThroughEdge(t *testing.T) {
	g := graph.Build(citytest.MustDemo(), graph.Options{IgnoreDists: true, TransferPenalty: 1000})

	p, err := graph.ShortestPath(g, graph.EntryNode("Zeta"), graph.ExitNode("Harbor"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, e := range p.Edges {
		if e.Kind == graph.Through {
			found = true
			if e.Weight != 0 {
				t.Errorf("through join should be free, got %d", e.Weight)
			}
		}
	}
	if !found {
		t.Errorf("expected a through edge in %v", p.Edges)
	}
}

func TestUnreachable(t *testing.T) {
	g := graph.Build(citytest.MustDemo(), graph.Options{})

	for _, pair := range [][2]string{{"Alpha", "Isle-North"}, {"Isle-North", "Alpha"}} {
		_, err := graph.ShortestPath(g, graph.EntryNode(pair[0]), graph.ExitNode(pair[1]), nil)
		if !errors.Is(err, graph.ErrUnreachable) {
			t.Errorf("%s -> %s: expected ErrUnreachable, got %v", pair[0], pair[1], err)
		}
	}
}

func TestAllowFilter(t *testing.T) {
	g := graph.Build(citytest.MustDemo(), graph.Options{})
	noCommuter := func(e graph.Edge) bool {
		return e.From.Line != "Commuter Line" && e.To.Line != "Commuter Line"
	}

	if _, err := graph.ShortestPath(g, graph.EntryNode("Alpha"), graph.ExitNode("Commuter-Park"), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := graph.ShortestPath(g, graph.EntryNode("Alpha"), graph.ExitNode("Commuter-Park"), noCommuter)
	if !errors.Is(err, graph.ErrUnreachable) {
		t.Errorf("expected ErrUnreachable without the Commuter Line, got %v", err)
	}
}

func TestDeterministic(t *testing.T) {
	c := citytest.MustDemo()
	opts := graph.Options{IgnoreDists: true}

	first, err := graph.ShortestPath(graph.Build(c, opts), graph.EntryNode("Ring-C"), graph.ExitNode("Beta"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := graph.ShortestPath(graph.Build(c, opts), graph.EntryNode("Ring-C"), graph.ExitNode("Beta"), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first.Nodes(), again.Nodes()) {
			t.Fatalf("paths differ between runs: %v vs %v", first.Nodes(), again.Nodes())
		}
	}
	// both loop directions take two hops; the Inner platform sorts first
	if got := first.StationPath(); !reflect.DeepEqual(got, []string{"Ring-C", "Ring-D", "Beta"}) {
		t.Errorf("unexpected tie-break %v", got)
	}
}
