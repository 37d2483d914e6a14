package cards

import "fmt"

// Suit identifies one of the four French suits, or the joker pseudo-suit.
// The joker suit doubles as the "no trump suit" designator value.
type Suit int

const (
	Clubs Suit = iota
	Diamonds
	Spades
	Hearts
	Jokers
)

var suitNames = map[Suit]string{
	Clubs:    "CLUBS",
	Diamonds: "DIAMONDS",
	Spades:   "SPADES",
	Hearts:   "HEARTS",
	Jokers:   "JOKERS",
}

var suitValues = map[string]Suit{}

func init() {
	for s, name := range suitNames {
		suitValues[name] = s
	}
	for r, name := range rankNames {
		rankValues[name] = r
	}
}

func (s Suit) String() string {
	if name, ok := suitNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SUIT_%d", int(s))
}

// MarshalText serializes the suit by tag for forward compatibility.
func (s Suit) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Suit) UnmarshalText(b []byte) error {
	v, ok := suitValues[string(b)]
	if !ok {
		return fmt.Errorf("unknown suit %q", string(b))
	}
	*s = v
	return nil
}

// Rank is a card rank. Values 2 through 10 are the numeric ranks; the face
// ranks, jokers, and the two virtual trump-rank slots sit above them in
// ascending power order.
type Rank int

const (
	Jack  Rank = 11
	Queen Rank = 12
	King  Rank = 13
	Ace   Rank = 14
	// OffTrump and OnTrump are virtual ranks only: a card whose natural rank
	// matches the trump rank ranks here relative to the current designator.
	OffTrump   Rank = 15
	OnTrump    Rank = 16
	SmallJoker Rank = 17
	BigJoker   Rank = 18
)

var rankNames = map[Rank]string{
	Jack:       "J",
	Queen:      "Q",
	King:       "K",
	Ace:        "A",
	OffTrump:   "OFF_TRUMP",
	OnTrump:    "ON_TRUMP",
	SmallJoker: "SMALL_JOKER",
	BigJoker:   "BIG_JOKER",
}

var rankValues = map[string]Rank{}

func (r Rank) String() string {
	if name, ok := rankNames[r]; ok {
		return name
	}
	return fmt.Sprintf("%d", int(r))
}

func (r Rank) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Rank) UnmarshalText(b []byte) error {
	if v, ok := rankValues[string(b)]; ok {
		*r = v
		return nil
	}
	var n int
	if _, err := fmt.Sscanf(string(b), "%d", &n); err != nil || n < 2 || n > 10 {
		return fmt.Errorf("unknown rank %q", string(b))
	}
	*r = Rank(n)
	return nil
}

// CardBase is a playing card independent of any trump designator.
type CardBase struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// PointValue returns the card's scoring value: fives are worth 5, tens and
// kings 10, everything else 0.
func (c CardBase) PointValue() int {
	switch c.Rank {
	case 5:
		return 5
	case 10, King:
		return 10
	}
	return 0
}

func (c CardBase) String() string {
	if c.Suit == Jokers {
		return c.Rank.String()
	}
	return fmt.Sprintf("%s_%s", c.Rank, c.Suit)
}

// TrumpMeta is the trump designator for a round: the trump suit plus the
// trump rank. A Jokers suit means natural trumps only.
type TrumpMeta struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

// NoTrump returns the sentinel designator used before any bid lands: natural
// trumps only, with the big joker as the (unmatchable) trump rank.
func NoTrump() TrumpMeta {
	return TrumpMeta{Suit: Jokers, Rank: BigJoker}
}

// VirtualRank maps a card's natural rank onto the trump-relative power scale:
// jokers keep their rank, trump-rank cards lift to the virtual slots above
// Ace, and everything else stays put.
func (tm TrumpMeta) VirtualRank(c CardBase) Rank {
	if c.Rank >= SmallJoker {
		return c.Rank
	}
	if c.Rank == tm.Rank {
		if c.Suit == tm.Suit {
			return OnTrump
		}
		return OffTrump
	}
	return c.Rank
}

// IsTrump reports whether the card belongs to the trump block under tm.
func (tm TrumpMeta) IsTrump(c CardBase) bool {
	if c.Rank >= SmallJoker || c.Rank == tm.Rank {
		return true
	}
	return tm.Suit != Jokers && c.Suit == tm.Suit
}

// OrderKey produces a total ordering over cards for display and for
// deterministic pile enumeration: non-trump suits first in suit order, the
// trump block last, each ascending by virtual rank.
func (tm TrumpMeta) OrderKey(c CardBase) int {
	if tm.IsTrump(c) {
		return 100 + int(tm.VirtualRank(c))
	}
	return int(c.Suit)*20 + int(tm.VirtualRank(c))
}

// Card is a playing card bound to a trump designator.
type Card struct {
	CardBase
	VRank Rank `json:"vrank"`
}

// NewCard binds a base card to the given designator.
func NewCard(c CardBase, tm TrumpMeta) Card {
	return Card{CardBase: c, VRank: tm.VirtualRank(c)}
}

// Deck returns n standard 54-card decks in a fixed order.
func Deck(n int) []CardBase {
	deck := make([]CardBase, 0, n*54)
	for i := 0; i < n; i++ {
		for _, suit := range []Suit{Clubs, Diamonds, Spades, Hearts} {
			for rank := Rank(2); rank <= Ace; rank++ {
				deck = append(deck, CardBase{Suit: suit, Rank: rank})
			}
		}
		deck = append(deck,
			CardBase{Suit: Jokers, Rank: SmallJoker},
			CardBase{Suit: Jokers, Rank: BigJoker},
		)
	}
	return deck
}
