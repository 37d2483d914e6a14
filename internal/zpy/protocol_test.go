package zpy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zpy-online/zpy-server-go/internal/zpy/cards"
	"github.com/zpy-online/zpy-server-go/internal/zpy/trick"
)

// syncHarness drives one authoritative game alongside a mirrored client per
// viewer, asserting after every action that each client state matches a fresh
// redaction exactly.
type syncHarness struct {
	t      *testing.T
	eng    *Engine
	game   *Game
	views  []PlayerID
	states map[PlayerID]*ClientState
}

func newHarness(t *testing.T, eng *Engine, g *Game, views []PlayerID) *syncHarness {
	h := &syncHarness{
		t:      t,
		eng:    eng,
		game:   g,
		views:  views,
		states: make(map[PlayerID]*ClientState, len(views)),
	}
	for _, v := range views {
		h.states[v] = eng.Redact(g, v)
	}
	return h
}

func (h *syncHarness) step(it Intent) {
	h.t.Helper()

	act, err := h.eng.Listen(h.game, it, it.Player)
	require.Nil(h.t, err, "listen %s", it.Kind)

	effs := make(map[PlayerID]Effect, len(h.views))
	for _, v := range h.views {
		effs[v] = h.eng.RedactAction(h.game, act, v)
	}

	_, err = h.eng.Apply(h.game, act)
	require.Nil(h.t, err, "apply %s", it.Kind)

	for _, v := range h.views {
		next, err := h.eng.ApplyClient(h.states[v], effs[v], v)
		require.Nil(h.t, err, "apply_client %s for %s", it.Kind, v)
		h.states[v] = next
		require.Equal(h.t, h.eng.Redact(h.game, v), next,
			"viewer %s diverged after %s", v, it.Kind)
	}
}

// followCard picks a legal single-card follow from the player's hand.
func followCard(g *Game, p PlayerID) cards.CardBase {
	hand := g.Hand(p)
	for _, c := range hand.Pile().Cards() {
		pile := cards.NewPile([]cards.CardBase{c}, g.Trump())
		if hand.FollowOK(*g.lead, pile, g.Trump()) {
			return c
		}
	}
	return hand.Pile().Cards()[0]
}

func TestProtocolRoundTrip(t *testing.T) {
	eng := NewEngine(nil)
	game := eng.Init(Config{})
	game.SetRand(rand.New(rand.NewSource(11)))

	players := []PlayerID{"alice", "bob", "carol", "dave"}
	h := newHarness(t, eng, game, players)

	for _, p := range players {
		h.step(Intent{Kind: ActAddPlayer, Player: p})
	}
	h.step(Intent{Kind: ActSetDecks, Player: "alice", NDecks: 2})
	h.step(Intent{Kind: ActStartGame, Player: "alice"})
	require.Equal(t, PhaseDraw, game.Phase())

	for game.Phase() == PhaseDraw {
		h.step(Intent{Kind: ActDrawCard, Player: game.CurrentPlayer()})
	}
	require.Equal(t, PhasePrepare, game.Phase())

	// bid the first on-rank card anyone drew
	var bidder PlayerID
	var bid cards.CardBase
	for _, p := range game.Players() {
		for _, c := range game.DrawPile(p).Cards() {
			if c.Rank == startingRank {
				bidder, bid = p, c
				break
			}
		}
		if bidder != "" {
			break
		}
	}
	if bidder != "" {
		h.step(Intent{Kind: ActBidTrump, Player: bidder, Card: &bid, Arity: 1})
		require.Equal(t, bidder, game.Host())
	}

	for _, p := range players {
		h.step(Intent{Kind: ActReady, Player: p})
	}
	require.Equal(t, PhaseKitty, game.Phase())

	host := game.Host()
	discard := game.DrawPile(host).Cards()[:game.KittySize()]
	h.step(Intent{Kind: ActReplaceKitty, Player: host, Kitty: discard})

	var friend cards.CardBase
	for _, c := range cards.Deck(1) {
		if game.Trump().VirtualRank(c) <= cards.Ace {
			friend = c
			break
		}
	}
	h.step(Intent{
		Kind: ActCallFriends, Player: host,
		Friends: []FriendCall{{Card: friend, Nth: 1}},
	})
	require.Equal(t, PhaseLead, game.Phase())

	// play the round out on single-card tricks
	for game.Phase() == PhaseLead || game.Phase() == PhaseFollow {
		p := game.CurrentPlayer()
		var c cards.CardBase
		if game.Phase() == PhaseLead {
			c = game.Hand(p).Pile().Cards()[0]
		} else {
			c = followCard(game, p)
		}
		play := single(game.Trump(), c)
		kind := ActFollowPlay
		if game.Phase() == PhaseLead {
			kind = ActLeadPlay
		}
		h.step(Intent{Kind: kind, Player: p, Play: &play})
	}
	require.Equal(t, PhaseFinish, game.Phase())

	// every point the deal contained is either in a trick or in the kitty
	total := 0
	for _, p := range players {
		total += game.Points(p)
	}
	for _, cs := range h.states {
		kittyPoints := 0
		require.Len(t, cs.Kitty, game.KittySize())
		for _, c := range cs.Kitty {
			kittyPoints += c.PointValue()
		}
		assert.Equal(t, game.NDecks()*100, total+kittyPoints)
	}

	h.step(Intent{Kind: ActStartRound, Player: "alice"})
	assert.Equal(t, PhaseDraw, game.Phase())
	assert.Equal(t, 2, game.Round())
}

func TestProtocolFlyRoundTrip(t *testing.T) {
	players := []PlayerID{"alice", "bob", "carol", "dave"}
	newFixture := func() *Game {
		return playFixture(RuleModifiers{}, map[PlayerID][]cards.CardBase{
			"alice": {
				cb(cards.Spades, cards.King), cb(cards.Spades, cards.King),
				cb(cards.Spades, 9), cb(cards.Hearts, 3),
			},
			"bob":   {cb(cards.Spades, cards.Ace), cb(cards.Spades, 3), cb(cards.Clubs, 3), cb(cards.Clubs, 4)},
			"carol": {cb(cards.Spades, 4), cb(cards.Spades, 6), cb(cards.Diamonds, 3), cb(cards.Diamonds, 4)},
			"dave":  {cb(cards.Spades, 7), cb(cards.Spades, 8), cb(cards.Clubs, 5), cb(cards.Clubs, 6)},
		})
	}
	lead := func(g *Game) trick.Flight {
		return trick.NewFlight(
			tuple(g.tr, cb(cards.Spades, cards.King), 2),
			tuple(g.tr, cb(cards.Spades, 9), 1),
		)
	}

	t.Run("contested flight", func(t *testing.T) {
		eng := NewEngine(nil)
		g := newFixture()
		h := newHarness(t, eng, g, players)

		play := lead(g)
		h.step(Intent{Kind: ActLeadPlay, Player: "alice", Play: &play})
		require.Equal(t, PhaseFly, g.Phase())

		reveal := tuple(g.tr, cb(cards.Spades, cards.Ace), 1)
		h.step(Intent{Kind: ActContestFly, Player: "bob", Reveal: &reveal})
		require.Equal(t, PhaseFollow, g.Phase())
		assert.Equal(t, 1, g.lead.Total)
	})

	t.Run("tied contest", func(t *testing.T) {
		eng := NewEngine(nil)
		g := playFixture(RuleModifiers{}, map[PlayerID][]cards.CardBase{
			"alice": {
				cb(cards.Spades, cards.King), cb(cards.Spades, cards.King),
				cb(cards.Spades, 9), cb(cards.Hearts, 3),
			},
			"bob":   {cb(cards.Spades, 9), cb(cards.Clubs, 3), cb(cards.Clubs, 4), cb(cards.Clubs, 5)},
			"carol": {cb(cards.Spades, 4), cb(cards.Spades, 6), cb(cards.Diamonds, 3), cb(cards.Diamonds, 4)},
			"dave":  {cb(cards.Spades, 7), cb(cards.Spades, 8), cb(cards.Clubs, 6), cb(cards.Clubs, 7)},
		})
		h := newHarness(t, eng, g, players)

		play := lead(g)
		h.step(Intent{Kind: ActLeadPlay, Player: "alice", Play: &play})

		// bob's second-deck copy of the spade 9 contests the single
		reveal := tuple(g.tr, cb(cards.Spades, 9), 1)
		h.step(Intent{Kind: ActContestFly, Player: "bob", Reveal: &reveal})
		require.Equal(t, PhaseFollow, g.Phase())
		assert.Equal(t, 1, g.lead.Total)
	})

	t.Run("passed flight", func(t *testing.T) {
		eng := NewEngine(nil)
		g := newFixture()
		h := newHarness(t, eng, g, players)

		play := lead(g)
		h.step(Intent{Kind: ActLeadPlay, Player: "alice", Play: &play})
		for _, p := range []PlayerID{"bob", "carol", "dave"} {
			h.step(Intent{Kind: ActPassContest, Player: p})
		}
		require.Equal(t, PhaseFollow, g.Phase())
		assert.Equal(t, 3, g.lead.Total)
	})
}

func TestListen(t *testing.T) {
	eng := NewEngine(nil)
	g := eng.Init(Config{})

	t.Run("identity enforced", func(t *testing.T) {
		_, err := eng.Listen(g, Intent{Kind: ActAddPlayer, Player: "alice"}, "bob")
		require.NotNil(t, err)
		assert.Equal(t, ErrWrongPlayer, err.Kind)
	})

	t.Run("payload required", func(t *testing.T) {
		_, err := eng.Listen(g, Intent{Kind: ActBidTrump, Player: "alice"}, "alice")
		require.NotNil(t, err)
		assert.Equal(t, ErrInvalidArgument, err.Kind)

		_, err = eng.Listen(g, Intent{Kind: ActLeadPlay, Player: "alice"}, "alice")
		require.NotNil(t, err)
		assert.Equal(t, ErrInvalidArgument, err.Kind)
	})

	t.Run("start game draws the seating", func(t *testing.T) {
		for _, p := range []PlayerID{"alice", "bob", "carol", "dave"} {
			require.Nil(t, g.AddPlayer(p))
		}
		act, err := eng.Listen(g, Intent{Kind: ActStartGame, Player: "alice"}, "alice")
		require.Nil(t, err)
		assert.ElementsMatch(t, g.Players(), act.Order)
	})
}

func TestPredict(t *testing.T) {
	eng := NewEngine(nil)

	t.Run("hidden outcomes are unknown", func(t *testing.T) {
		g := drawFixture(map[PlayerID][]cards.CardBase{"alice": {cb(cards.Clubs, 3)}})
		cs := eng.Redact(g, "alice")

		pred := eng.Predict(cs, Intent{Kind: ActDrawCard, Player: "alice"}, "alice")
		assert.False(t, pred.Known)

		reveal := tuple(g.tr, cb(cards.Spades, 3), 1)
		pred = eng.Predict(cs, Intent{Kind: ActContestFly, Player: "alice", Reveal: &reveal}, "alice")
		assert.False(t, pred.Known)
	})

	t.Run("completing ready is unknown without the kitty", func(t *testing.T) {
		g := drawFixture(nil)
		g.phase = PhasePrepare
		g.consensus["alice"] = true
		g.consensus["bob"] = true
		g.consensus["carol"] = true

		pred := eng.Predict(eng.Redact(g, "dave"), Intent{Kind: ActReady, Player: "dave"}, "dave")
		assert.False(t, pred.Known)

		// a non-completing ready is predictable
		pred = eng.Predict(eng.Redact(g, "carol"), Intent{Kind: ActReady, Player: "carol"}, "carol")
		assert.True(t, pred.Known)
		assert.Nil(t, pred.Err)
	})

	t.Run("bid prediction matches the authoritative effect", func(t *testing.T) {
		g := drawFixture(map[PlayerID][]cards.CardBase{
			"alice": {cb(cards.Spades, 2), cb(cards.Spades, 2)},
		})
		card := cb(cards.Spades, 2)
		it := Intent{Kind: ActBidTrump, Player: "alice", Card: &card, Arity: 2}

		pred := eng.Predict(eng.Redact(g, "alice"), it, "alice")
		require.True(t, pred.Known)
		require.Nil(t, pred.Err)

		act, err := eng.Listen(g, it, "alice")
		require.Nil(t, err)
		assert.Equal(t, eng.RedactAction(g, act, "alice"), pred.Effect)
	})

	t.Run("rejections mirror the engine", func(t *testing.T) {
		g := drawFixture(map[PlayerID][]cards.CardBase{
			"alice": {cb(cards.Spades, 2)},
		})
		card := cb(cards.Hearts, 2)
		it := Intent{Kind: ActBidTrump, Player: "alice", Card: &card, Arity: 1}

		pred := eng.Predict(eng.Redact(g, "alice"), it, "alice")
		require.True(t, pred.Known)
		require.NotNil(t, pred.Err)
		assert.Equal(t, ErrInvalidPlay, pred.Err.Kind)

		serr := g.BidTrump("alice", card, 1)
		require.NotNil(t, serr)
		assert.Equal(t, pred.Err.Kind, serr.Kind)
	})

	t.Run("acting for another player is rejected", func(t *testing.T) {
		g := drawFixture(nil)
		pred := eng.Predict(eng.Redact(g, "alice"), Intent{Kind: ActReady, Player: "bob"}, "alice")
		require.True(t, pred.Known)
		require.NotNil(t, pred.Err)
		assert.Equal(t, ErrWrongPlayer, pred.Err.Kind)
	})
}
