package cards

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualRank(t *testing.T) {
	tm := TrumpMeta{Suit: Hearts, Rank: 7}

	t.Run("plain cards keep their rank", func(t *testing.T) {
		assert.Equal(t, Rank(9), tm.VirtualRank(CardBase{Suit: Spades, Rank: 9}))
		assert.Equal(t, Ace, tm.VirtualRank(CardBase{Suit: Hearts, Rank: Ace}))
	})

	t.Run("trump rank lifts above ace", func(t *testing.T) {
		assert.Equal(t, OffTrump, tm.VirtualRank(CardBase{Suit: Clubs, Rank: 7}))
		assert.Equal(t, OnTrump, tm.VirtualRank(CardBase{Suit: Hearts, Rank: 7}))
	})

	t.Run("jokers sit on top", func(t *testing.T) {
		assert.Equal(t, SmallJoker, tm.VirtualRank(CardBase{Suit: Jokers, Rank: SmallJoker}))
		assert.Equal(t, BigJoker, tm.VirtualRank(CardBase{Suit: Jokers, Rank: BigJoker}))
	})
}

func TestIsTrump(t *testing.T) {
	t.Run("suited designator", func(t *testing.T) {
		tm := TrumpMeta{Suit: Spades, Rank: 2}
		assert.True(t, tm.IsTrump(CardBase{Suit: Spades, Rank: 9}))
		assert.True(t, tm.IsTrump(CardBase{Suit: Hearts, Rank: 2}))
		assert.True(t, tm.IsTrump(CardBase{Suit: Jokers, Rank: BigJoker}))
		assert.False(t, tm.IsTrump(CardBase{Suit: Hearts, Rank: 9}))
	})

	t.Run("natural trumps only", func(t *testing.T) {
		tm := TrumpMeta{Suit: Jokers, Rank: 2}
		assert.False(t, tm.IsTrump(CardBase{Suit: Spades, Rank: 9}))
		assert.True(t, tm.IsTrump(CardBase{Suit: Hearts, Rank: 2}))
		assert.True(t, tm.IsTrump(CardBase{Suit: Jokers, Rank: SmallJoker}))
	})
}

func TestPointValue(t *testing.T) {
	assert.Equal(t, 5, CardBase{Suit: Clubs, Rank: 5}.PointValue())
	assert.Equal(t, 10, CardBase{Suit: Clubs, Rank: 10}.PointValue())
	assert.Equal(t, 10, CardBase{Suit: Clubs, Rank: King}.PointValue())
	assert.Equal(t, 0, CardBase{Suit: Clubs, Rank: Ace}.PointValue())
	assert.Equal(t, 0, CardBase{Suit: Jokers, Rank: BigJoker}.PointValue())
}

func TestDeck(t *testing.T) {
	deck := Deck(2)
	require.Len(t, deck, 108)

	points := 0
	for _, c := range deck {
		points += c.PointValue()
	}
	// each deck carries 100 points
	assert.Equal(t, 200, points)
}

func TestCardPile(t *testing.T) {
	tm := TrumpMeta{Suit: Hearts, Rank: 7}
	five := CardBase{Suit: Clubs, Rank: 5}
	king := CardBase{Suit: Hearts, Rank: King}

	t.Run("insert and contains", func(t *testing.T) {
		p := NewPile([]CardBase{five, five, king}, tm)
		assert.Equal(t, 3, p.Size())
		assert.True(t, p.Contains([]Count{{Card: five, N: 2}}))
		assert.False(t, p.Contains([]Count{{Card: five, N: 3}}))
		assert.False(t, p.Contains([]Count{{Card: king, N: 2}}))
	})

	t.Run("remove", func(t *testing.T) {
		p := NewPile([]CardBase{five, five, king}, tm)
		p.Remove(five, 1)
		assert.Equal(t, 2, p.Size())
		assert.True(t, p.Contains([]Count{{Card: five, N: 1}}))
		p.Remove(five, 1)
		assert.False(t, p.Contains([]Count{{Card: five, N: 1}}))
	})

	t.Run("points", func(t *testing.T) {
		p := NewPile([]CardBase{five, five, king}, tm)
		assert.Equal(t, 20, p.Points())
	})

	t.Run("counts are deterministic and trump-ordered", func(t *testing.T) {
		joker := CardBase{Suit: Jokers, Rank: BigJoker}
		p := NewPile([]CardBase{joker, five, king}, tm)
		counts := p.Counts()
		require.Len(t, counts, 3)
		// non-trump first, trump block last, big joker at the very end
		assert.Equal(t, five, counts[0].Card)
		assert.Equal(t, king, counts[1].Card)
		assert.Equal(t, joker, counts[2].Card)
	})

	t.Run("rehash reorders against the new designator", func(t *testing.T) {
		seven := CardBase{Suit: Spades, Rank: 7}
		p := NewPile([]CardBase{seven, king}, tm)
		// under hearts trump, the off-suit 7 is trump and outranks the king
		assert.Equal(t, []Count{{Card: king, N: 1}, {Card: seven, N: 1}}, p.Counts())

		p.Rehash(TrumpMeta{Suit: Spades, Rank: 2})
		// now the king of hearts is plain and the 7 of spades is suited trump
		assert.Equal(t, []Count{{Card: king, N: 1}, {Card: seven, N: 1}}, p.Counts())
		assert.True(t, p.Trump().IsTrump(seven))
		assert.False(t, p.Trump().IsTrump(king))
	})

	t.Run("clone is independent", func(t *testing.T) {
		p := NewPile([]CardBase{five}, tm)
		q := p.Clone()
		q.Insert(king)
		assert.Equal(t, 1, p.Size())
		assert.Equal(t, 2, q.Size())
	})

	t.Run("json round trip", func(t *testing.T) {
		p := NewPile([]CardBase{five, five, king}, tm)
		b, err := json.Marshal(p)
		require.NoError(t, err)

		var q CardPile
		require.NoError(t, json.Unmarshal(b, &q))
		assert.Equal(t, p.Counts(), q.Counts())
		assert.Equal(t, p.Trump(), q.Trump())
	})
}

func TestEnumTags(t *testing.T) {
	b, err := json.Marshal(CardBase{Suit: Hearts, Rank: Ace})
	require.NoError(t, err)
	assert.JSONEq(t, `{"suit":"HEARTS","rank":"A"}`, string(b))

	var c CardBase
	require.NoError(t, json.Unmarshal([]byte(`{"suit":"JOKERS","rank":"BIG_JOKER"}`), &c))
	assert.Equal(t, CardBase{Suit: Jokers, Rank: BigJoker}, c)

	var r Rank
	require.NoError(t, r.UnmarshalText([]byte("10")))
	assert.Equal(t, Rank(10), r)
	assert.Error(t, r.UnmarshalText([]byte("11")))
}
