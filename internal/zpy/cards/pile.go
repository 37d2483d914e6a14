package cards

import (
	"encoding/json"
	"sort"
)

// Count is a (card, multiplicity) pair.
type Count struct {
	Card CardBase `json:"card"`
	N    int      `json:"n"`
}

// CardPile is a multiset of cards bound to a trump designator. The designator
// only affects ordering and trump membership; it must be re-bound with Rehash
// whenever the round's designator changes.
type CardPile struct {
	counts map[CardBase]int
	size   int
	tm     TrumpMeta
}

// NewPile builds a pile from the given cards under the given designator.
func NewPile(cs []CardBase, tm TrumpMeta) *CardPile {
	p := &CardPile{counts: make(map[CardBase]int), tm: tm}
	for _, c := range cs {
		p.Insert(c)
	}
	return p
}

// Insert adds one copy of c to the pile.
func (p *CardPile) Insert(c CardBase) {
	p.counts[c]++
	p.size++
}

// Contains reports whether the pile holds at least the given multiset.
func (p *CardPile) Contains(counts []Count) bool {
	need := make(map[CardBase]int, len(counts))
	for _, ct := range counts {
		need[ct.Card] += ct.N
	}
	for c, n := range need {
		if p.counts[c] < n {
			return false
		}
	}
	return true
}

// Remove takes n copies of c out of the pile. Removing more copies than the
// pile holds is a caller bug; the count is clamped at zero.
func (p *CardPile) Remove(c CardBase, n int) {
	have := p.counts[c]
	if n > have {
		n = have
	}
	if n == have {
		delete(p.counts, c)
	} else {
		p.counts[c] = have - n
	}
	p.size -= n
}

// RemoveAll removes an entire multiset from the pile.
func (p *CardPile) RemoveAll(counts []Count) {
	for _, ct := range counts {
		p.Remove(ct.Card, ct.N)
	}
}

// Counts enumerates the pile's (card, count) pairs in the designator's order.
func (p *CardPile) Counts() []Count {
	out := make([]Count, 0, len(p.counts))
	for c, n := range p.counts {
		out = append(out, Count{Card: c, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := p.tm.OrderKey(out[i].Card), p.tm.OrderKey(out[j].Card)
		if ki != kj {
			return ki < kj
		}
		return out[i].Card.Suit < out[j].Card.Suit
	})
	return out
}

// Cards expands the pile back into a flat card sequence in enumeration order.
func (p *CardPile) Cards() []CardBase {
	out := make([]CardBase, 0, p.size)
	for _, ct := range p.Counts() {
		for i := 0; i < ct.N; i++ {
			out = append(out, ct.Card)
		}
	}
	return out
}

// Rehash re-binds the pile to a new trump designator. Every pile must be
// rehashed immediately whenever the round's designator changes.
func (p *CardPile) Rehash(tm TrumpMeta) {
	p.tm = tm
}

// Trump returns the designator the pile is currently bound to.
func (p *CardPile) Trump() TrumpMeta { return p.tm }

// Size returns the number of cards in the pile.
func (p *CardPile) Size() int { return p.size }

// Points sums the point values of every card in the pile.
func (p *CardPile) Points() int {
	total := 0
	for c, n := range p.counts {
		total += c.PointValue() * n
	}
	return total
}

// Clone returns an independent copy of the pile.
func (p *CardPile) Clone() *CardPile {
	out := &CardPile{counts: make(map[CardBase]int, len(p.counts)), size: p.size, tm: p.tm}
	for c, n := range p.counts {
		out.counts[c] = n
	}
	return out
}

type pileJSON struct {
	Counts []Count   `json:"counts"`
	Trump  TrumpMeta `json:"trump"`
}

func (p *CardPile) MarshalJSON() ([]byte, error) {
	return json.Marshal(pileJSON{Counts: p.Counts(), Trump: p.tm})
}

func (p *CardPile) UnmarshalJSON(b []byte) error {
	var pj pileJSON
	if err := json.Unmarshal(b, &pj); err != nil {
		return err
	}
	p.counts = make(map[CardBase]int, len(pj.Counts))
	p.size = 0
	p.tm = pj.Trump
	for _, ct := range pj.Counts {
		p.counts[ct.Card] += ct.N
		p.size += ct.N
	}
	return nil
}
