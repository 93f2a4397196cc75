package planner

import (
	"cmp"

	"github.com/Mick235711/Beijing-Subway-Tools-sub001/internal/city"
)

type labelKind int

const (
	originLabel labelKind = iota
	aboardLabel
	walkedLabel
	doneLabel
)

// label is one search state. Aboard labels sit on a train at a stop; walked
// labels have finished an out-of-station walk to a paired station and wait
// to board; done labels reached the destination on foot.
type label struct {
	kind      labelKind
	station   string
	time      int // absolute minutes
	transfers int
	inVehicle int

	// aboard
	train   *city.Train
	pos     int
	boarded bool // created by boarding rather than by riding on

	// walked and done
	walkFrom  string
	walkStart int
	prevLine  string // empty when walking from the origin
	prevDir   string

	xfer   *Transfer // transfer taken right before boarding or at the end
	parent *label
	seq    int
}

func (l *label) tieKey() (string, string, string) {
	if l.train == nil {
		return "", "", ""
	}
	return l.train.Line, l.train.Direction, l.train.Code
}

// compare orders labels by arrival, transfers, in-vehicle time, then line,
// direction and train code
func (l *label) compare(o *label) int {
	al, ad, ac := l.tieKey()
	bl, bd, bc := o.tieKey()
	return cmp.Or(
		cmp.Compare(l.time, o.time),
		cmp.Compare(l.transfers, o.transfers),
		cmp.Compare(l.inVehicle, o.inVehicle),
		cmp.Compare(al, bl),
		cmp.Compare(ad, bd),
		cmp.Compare(ac, bc),
		cmp.Compare(l.seq, o.seq),
	)
}

// covers reports whether l is at least as good as o on every criterion
func (l *label) covers(o *label) bool {
	return l.time <= o.time && l.transfers <= o.transfers && l.inVehicle <= o.inVehicle
}

// stateKey groups labels that share a station and arrival context
type stateKey struct {
	kind      labelKind
	station   string
	train     int
	pos       int
	boarded   bool
	walkFrom  string
	walkStart int
	prevLine  string
	prevDir   string
}

func (l *label) key() stateKey {
	k := stateKey{kind: l.kind, station: l.station, train: -1}
	switch l.kind {
	case aboardLabel:
		k.train, k.pos, k.boarded = l.train.ID, l.pos, l.boarded
	case walkedLabel:
		k.walkFrom, k.walkStart, k.prevLine, k.prevDir = l.walkFrom, l.walkStart, l.prevLine, l.prevDir
	}
	return k
}

type labelQueue []*label

func (q labelQueue) Len() int           { return len(q) }
func (q labelQueue) Less(i, j int) bool { return q[i].compare(q[j]) < 0 }
func (q labelQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *labelQueue) Push(x any) { *q = append(*q, x.(*label)) }

func (q *labelQueue) Pop() any {
	old := *q
	n := len(old)
	l := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return l
}
