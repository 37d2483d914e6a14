package zpy

import (
	"github.com/zpy-online/zpy-server-go/internal/zpy/cards"
	"github.com/zpy-online/zpy-server-go/internal/zpy/trick"
)

// Phase returns the current phase.
func (g *Game) Phase() Phase { return g.phase }

// Rules returns the game's rule modifiers.
func (g *Game) Rules() RuleModifiers { return g.rules }

// Owner returns the game owner.
func (g *Game) Owner() PlayerID { return g.owner }

// Host returns the current round's host, or "" before one is assigned.
func (g *Game) Host() PlayerID { return g.host }

// Players returns the player roster, in turn order once the game has started.
func (g *Game) Players() []PlayerID {
	return append([]PlayerID(nil), g.players...)
}

// NumPlayers returns the roster size.
func (g *Game) NumPlayers() int { return len(g.players) }

// Rank returns a player's current rank.
func (g *Game) Rank(p PlayerID) cards.Rank { return g.ranks[p] }

// NDecks returns the configured deck count.
func (g *Game) NDecks() int { return g.ndecks }

// Round returns the round counter; zero before the game has started.
func (g *Game) Round() int { return g.round }

// Trump returns the current trump designator.
func (g *Game) Trump() cards.TrumpMeta { return g.tr }

// DeckSize returns the number of undrawn cards.
func (g *Game) DeckSize() int { return len(g.deck) }

// KittySize returns the kitty size.
func (g *Game) KittySize() int { return len(g.kitty) }

// Bids returns the accepted bid history; the last entry is the current leader.
func (g *Game) Bids() []Bid {
	return append([]Bid(nil), g.bids...)
}

// DrawPile returns a player's transient draw pile, or nil outside DRAW/PREPARE.
func (g *Game) DrawPile(p PlayerID) *cards.CardPile { return g.draws[p] }

// Hand returns a player's finalized hand, or nil before kitty resolution.
func (g *Game) Hand(p PlayerID) *trick.Hand { return g.hands[p] }

// Points returns a player's trick point total for the round.
func (g *Game) Points(p PlayerID) int { return g.points[p] }

// Friends returns the friend-call slots with their remaining join counts.
func (g *Game) Friends() []FriendCall {
	return append([]FriendCall(nil), g.friends...)
}

// CurrentPlayer returns the player whose turn it is.
func (g *Game) CurrentPlayer() PlayerID {
	if len(g.players) == 0 {
		return ""
	}
	return g.players[g.current]
}

// Leader returns the current trick leader.
func (g *Game) Leader() PlayerID { return g.leader }

// Winning returns the current best play's owner.
func (g *Game) Winning() PlayerID { return g.winning }

// OnHostTeam reports whether a player has joined the host team.
func (g *Game) OnHostTeam(p PlayerID) bool { return g.hostTeam[p] }

// OnAtkTeam reports whether a player is on the attacking team.
func (g *Game) OnAtkTeam(p PlayerID) bool { return g.atkTeam[p] }

// Reneged reports whether a renege has been detected against the player this
// round. Enforcement beyond RenegeForbid is left to table policy.
func (g *Game) Reneged(p PlayerID) bool { return g.reneges[p] }
