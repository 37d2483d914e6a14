package trick

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/zpy-online/zpy-server-go/internal/zpy/cards"
)

// Tuple is n identical cards played together.
type Tuple struct {
	Card  cards.Card `json:"card"`
	Arity int        `json:"arity"`
}

// Shape describes a tractor's form: how many adjacent tuples, of what arity.
type Shape struct {
	Len   int `json:"len"`
	Arity int `json:"arity"`
}

// CompareShapes orders shapes by total card count, then by arity.
func CompareShapes(a, b Shape) int {
	if d := a.Len*a.Arity - b.Len*b.Arity; d != 0 {
		return d
	}
	return a.Arity - b.Arity
}

// Tractor is a run of adjacent same-arity tuples, ascending in virtual rank.
// A single tuple is a length-1 tractor.
type Tractor struct {
	Tuples []Tuple `json:"tuples"`
}

// NewTractor validates that the tuples form a tractor under the given
// designator: same arity throughout, strictly adjacent virtual ranks.
func NewTractor(tuples []Tuple, tm cards.TrumpMeta) (Tractor, error) {
	if len(tuples) == 0 {
		return Tractor{}, fmt.Errorf("empty tractor")
	}
	sorted := make([]Tuple, len(tuples))
	copy(sorted, tuples)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Card.VRank < sorted[j].Card.VRank
	})
	arity := sorted[0].Arity
	for i, t := range sorted {
		if t.Arity < 1 {
			return Tractor{}, fmt.Errorf("empty tuple")
		}
		if t.Arity != arity {
			return Tractor{}, fmt.Errorf("mismatched tuple arity")
		}
		if t.Card.VRank != tm.VirtualRank(t.Card.CardBase) {
			return Tractor{}, fmt.Errorf("stale virtual rank")
		}
		if i > 0 && t.Card.VRank != sorted[i-1].Card.VRank+1 {
			return Tractor{}, fmt.Errorf("tuples not adjacent")
		}
	}
	return Tractor{Tuples: sorted}, nil
}

// MustTractor is NewTractor for statically known-good inputs (tests, fixtures).
func MustTractor(tuples []Tuple, tm cards.TrumpMeta) Tractor {
	t, err := NewTractor(tuples, tm)
	if err != nil {
		panic(err)
	}
	return t
}

// CheckTractor verifies an untrusted tractor: it must reconstruct under tm
// and already be in the canonical form NewTractor would produce, so that
// every virtual rank and the tuple order can be trusted downstream.
func CheckTractor(t Tractor, tm cards.TrumpMeta) error {
	rebuilt, err := NewTractor(t.Tuples, tm)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(rebuilt, t) {
		return fmt.Errorf("tractor not in canonical form")
	}
	return nil
}

// Shape returns the tractor's shape.
func (t Tractor) Shape() Shape {
	return Shape{Len: len(t.Tuples), Arity: t.Tuples[0].Arity}
}

// Count returns the total number of cards in the tractor.
func (t Tractor) Count() int {
	n := 0
	for _, tp := range t.Tuples {
		n += tp.Arity
	}
	return n
}

// Base returns the tractor's lowest card.
func (t Tractor) Base() cards.Card { return t.Tuples[0].Card }

// Counts enumerates the tractor as (card, count) pairs.
func (t Tractor) Counts() []cards.Count {
	out := make([]cards.Count, len(t.Tuples))
	for i, tp := range t.Tuples {
		out[i] = cards.Count{Card: tp.Card.CardBase, N: tp.Arity}
	}
	return out
}

// Cards expands the tractor to a flat card sequence.
func (t Tractor) Cards() []cards.CardBase {
	out := make([]cards.CardBase, 0, t.Count())
	for _, tp := range t.Tuples {
		for i := 0; i < tp.Arity; i++ {
			out = append(out, tp.Card.CardBase)
		}
	}
	return out
}

// Beats reports whether a beats b under tm. Only same-shape tractors compare;
// trump beats non-trump, otherwise both must share a suit block and a's base
// must outrank b's.
func (t Tractor) Beats(b Tractor, tm cards.TrumpMeta) bool {
	if CompareShapes(t.Shape(), b.Shape()) != 0 {
		return false
	}
	aTrump, bTrump := tm.IsTrump(t.Base().CardBase), tm.IsTrump(b.Base().CardBase)
	if aTrump != bTrump {
		return aTrump
	}
	if !aTrump && t.Base().Suit != b.Base().Suit {
		return false
	}
	return t.Base().VRank > b.Base().VRank
}

// Ties reports whether t and b are equal-strength plays: same shape, same
// trump or suit block, same base rank. Possible only with multiple decks.
func (t Tractor) Ties(b Tractor, tm cards.TrumpMeta) bool {
	if CompareShapes(t.Shape(), b.Shape()) != 0 {
		return false
	}
	aTrump, bTrump := tm.IsTrump(t.Base().CardBase), tm.IsTrump(b.Base().CardBase)
	if aTrump != bTrump {
		return false
	}
	if !aTrump && t.Base().Suit != b.Base().Suit {
		return false
	}
	return t.Base().VRank == b.Base().VRank
}

// Flight is one or more tractors played together as a single lead.
type Flight struct {
	// Tractors is ordered descending by shape, then by base rank.
	Tractors []Tractor `json:"tractors"`
	Total    int       `json:"total"`
}

// NewFlight assembles a flight, normalizing component order.
func NewFlight(tractors ...Tractor) Flight {
	ts := make([]Tractor, len(tractors))
	copy(ts, tractors)
	sort.Slice(ts, func(i, j int) bool {
		if d := CompareShapes(ts[i].Shape(), ts[j].Shape()); d != 0 {
			return d > 0
		}
		return ts[i].Base().VRank > ts[j].Base().VRank
	})
	total := 0
	for _, t := range ts {
		total += t.Count()
	}
	return Flight{Tractors: ts, Total: total}
}

// CheckFlight verifies an untrusted flight component by component and against
// the normalized assembly, so a forged Total or component order is rejected.
func CheckFlight(f Flight, tm cards.TrumpMeta) error {
	if len(f.Tractors) == 0 {
		return fmt.Errorf("empty flight")
	}
	for _, t := range f.Tractors {
		if err := CheckTractor(t, tm); err != nil {
			return err
		}
	}
	if !reflect.DeepEqual(NewFlight(f.Tractors...), f) {
		return fmt.Errorf("flight not in canonical form")
	}
	return nil
}

// Counts enumerates the flight as (card, count) pairs.
func (f Flight) Counts() []cards.Count {
	var out []cards.Count
	for _, t := range f.Tractors {
		out = append(out, t.Counts()...)
	}
	return out
}

// Cards expands the flight to a flat card sequence.
func (f Flight) Cards() []cards.CardBase {
	out := make([]cards.CardBase, 0, f.Total)
	for _, t := range f.Tractors {
		out = append(out, t.Cards()...)
	}
	return out
}

// Beats reports whether f, as the incumbent play, holds against challenger.
// A challenger only takes the trick by matching the incumbent's component
// shapes and beating it component for component.
func (f Flight) Beats(challenger Flight, tm cards.TrumpMeta) bool {
	if challenger.Total != f.Total || len(challenger.Tractors) != len(f.Tractors) {
		return true
	}
	for i, t := range f.Tractors {
		if !challenger.Tractors[i].Beats(t, tm) {
			return true
		}
	}
	return false
}

// Hand wraps a player's finalized pile with play-legality checks.
type Hand struct {
	pile *cards.CardPile
}

// NewHand adopts the given pile as a hand.
func NewHand(p *cards.CardPile) *Hand {
	return &Hand{pile: p}
}

// Pile exposes the underlying pile.
func (h *Hand) Pile() *cards.CardPile { return h.pile }

// Remove takes cards out of the hand.
func (h *Hand) Remove(c cards.CardBase, n int) {
	h.pile.Remove(c, n)
}

// FollowOK is the renege check: while the hand still holds cards in the
// lead's suit block, a follow of the lead must spend them. The hand is
// inspected before the play is removed from it.
func (h *Hand) FollowOK(lead Flight, play *cards.CardPile, tm cards.TrumpMeta) bool {
	if len(lead.Tractors) == 0 {
		return true
	}
	base := lead.Tractors[0].Base().CardBase
	inBlock := func(c cards.CardBase) bool {
		if tm.IsTrump(base) {
			return tm.IsTrump(c)
		}
		return !tm.IsTrump(c) && c.Suit == base.Suit
	}
	held, played := 0, 0
	for _, ct := range h.pile.Counts() {
		if inBlock(ct.Card) {
			held += ct.N
		}
	}
	for _, ct := range play.Counts() {
		if inBlock(ct.Card) {
			played += ct.N
		}
	}
	required := held
	if lead.Total < required {
		required = lead.Total
	}
	return played >= required
}
