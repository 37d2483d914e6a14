package zpy

import (
	"fmt"

	"github.com/zpy-online/zpy-server-go/internal/protocol"
	"github.com/zpy-online/zpy-server-go/internal/zpy/cards"
)

// PlayerID identifies a player for the lifetime of a game.
type PlayerID = protocol.UserID

// Phase is the round state machine's current phase.
type Phase int

const (
	PhaseInit    Phase = iota // assembling players
	PhaseDraw                 // drawing cards; bidding on trump
	PhasePrepare              // last chance to bid or request a redeal
	PhaseKitty                // host discarding a new kitty
	PhaseFriend               // host naming friends
	PhaseLead                 // player leading a trick
	PhaseFly                  // waiting to see if a lead flies
	PhaseFollow               // players following a lead
	PhaseFinish               // end-of-round
)

var phaseNames = map[Phase]string{
	PhaseInit:    "INIT",
	PhaseDraw:    "DRAW",
	PhasePrepare: "PREPARE",
	PhaseKitty:   "KITTY",
	PhaseFriend:  "FRIEND",
	PhaseLead:    "LEAD",
	PhaseFly:     "FLY",
	PhaseFollow:  "FOLLOW",
	PhaseFinish:  "FINISH",
}

var phaseValues = map[string]Phase{}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	v, ok := phaseValues[string(b)]
	if !ok {
		return fmt.Errorf("unknown phase %q", string(b))
	}
	*p = v
	return nil
}

// ActionKind tags every player action the engine understands. Other layers
// serialize these by tag, never by position.
type ActionKind int

const (
	ActAddPlayer ActionKind = iota
	ActSetDecks
	ActStartGame
	ActDrawCard
	ActBidTrump
	ActRequestRedeal
	ActReady
	ActReplaceKitty
	ActCallFriends
	ActLeadPlay
	ActContestFly
	ActPassContest
	ActFollowPlay
	ActStartRound
)

var actionNames = map[ActionKind]string{
	ActAddPlayer:     "ADD_PLAYER",
	ActSetDecks:      "SET_DECKS",
	ActStartGame:     "START_GAME",
	ActDrawCard:      "DRAW_CARD",
	ActBidTrump:      "BID_TRUMP",
	ActRequestRedeal: "REQUEST_REDEAL",
	ActReady:         "READY",
	ActReplaceKitty:  "REPLACE_KITTY",
	ActCallFriends:   "CALL_FRIENDS",
	ActLeadPlay:      "LEAD_PLAY",
	ActContestFly:    "CONTEST_FLY",
	ActPassContest:   "PASS_CONTEST",
	ActFollowPlay:    "FOLLOW_PLAY",
	ActStartRound:    "START_ROUND",
}

var actionValues = map[string]ActionKind{}

func init() {
	for p, name := range phaseNames {
		phaseValues[name] = p
	}
	for a, name := range actionNames {
		actionValues[name] = a
	}
}

func (a ActionKind) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("ACTION_%d", int(a))
}

func (a ActionKind) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *ActionKind) UnmarshalText(b []byte) error {
	v, ok := actionValues[string(b)]
	if !ok {
		return fmt.Errorf("unknown action %q", string(b))
	}
	*a = v
	return nil
}

// RenegeRule selects how a detected renege is handled.
type RenegeRule int

const (
	RenegeAccuse   RenegeRule = iota // reneges are tracked; other players call them out
	RenegeForbid                     // disallow plays that would renege
	RenegeAutoLose                   // reneges immediately cause players to lose
	RenegeUndoOne                    // players may undo their renege before the trick ends
)

// RankSkipRule selects how rank promotion treats barrier ranks.
type RankSkipRule int

const (
	RankSkipPlayOnce RankSkipRule = iota // must play 5,10,J,K once before ranking past
	RankSkipNoSkip                       // must stop at 5,10,J,K before passing
	RankSkipNoPass                       // must win on 5,10,J,K to pass
	RankSkipNoRule                       // freely skip any rank
)

// KittyMultiplierRule selects the kitty point multiplier function.
type KittyMultiplierRule int

const (
	KittyMultExp  KittyMultiplierRule = iota // 2^n
	KittyMultMult                            // 2*n
)

// RuleModifiers is the immutable per-game rules configuration.
type RuleModifiers struct {
	Renege RenegeRule          `json:"renege"`
	Rank   RankSkipRule        `json:"rank"`
	Kitty  KittyMultiplierRule `json:"kitty"`
}

// Bid is one accepted trump bid: a card tuple shown by a player.
type Bid struct {
	Player PlayerID       `json:"player"`
	Card   cards.CardBase `json:"card"`
	Arity  int            `json:"arity"`
}

// FriendCall names a card identity whose Nth play recruits the player who
// plays it onto the host team. Nth counts down as matching cards land.
type FriendCall struct {
	Card cards.CardBase `json:"card"`
	Nth  int            `json:"nth"`
}

// startingRank is the rank every player begins the game at.
const startingRank = cards.Rank(2)

// nfriends is the host team size (minus the host) for n players.
func nfriends(n int) int {
	return int(0.35 * float64(n))
}

// kittySize computes the set-aside kitty size: the deal remainder, bumped by
// the player count into the range (4, 10].
func kittySize(deckLen, nplayers int) int {
	sz := deckLen % nplayers
	if sz == 0 {
		sz = nplayers
	}
	for sz > 10 {
		sz -= nplayers
	}
	for sz <= 4 {
		sz += nplayers
	}
	return sz
}

// rankAfter applies a promotion delta under the configured skip rule.
// Promotion stops at barrier ranks (5, 10, J, K) under the rules that halt
// there, and never climbs past Ace.
func rankAfter(r cards.Rank, delta int, rule RankSkipRule) cards.Rank {
	for i := 0; i < delta; i++ {
		if r >= cards.Ace {
			return cards.Ace
		}
		r++
		if rule == RankSkipNoSkip || rule == RankSkipNoPass {
			switch r {
			case 5, 10, cards.Jack, cards.King:
				return r
			}
		}
	}
	return r
}
