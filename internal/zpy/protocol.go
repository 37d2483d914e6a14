package zpy

import (
	"math/rand"
	"time"

	"github.com/zpy-online/zpy-server-go/internal/protocol"
	"github.com/zpy-online/zpy-server-go/internal/zpy/cards"
	"github.com/zpy-online/zpy-server-go/internal/zpy/trick"
	"go.uber.org/zap"
)

// Config constructs a game.
type Config struct {
	Rules RuleModifiers `json:"rules"`
}

// Intent is an untrusted, viewer-submitted request to act. Exactly the fields
// relevant to Kind are set.
type Intent struct {
	Kind    ActionKind       `json:"kind"`
	Player  PlayerID         `json:"player"`
	NDecks  int              `json:"ndecks,omitempty"`
	Card    *cards.CardBase  `json:"card,omitempty"`
	Arity   int              `json:"arity,omitempty"`
	Kitty   []cards.CardBase `json:"kitty,omitempty"`
	Friends []FriendCall     `json:"friends,omitempty"`
	Play    *trick.Flight    `json:"play,omitempty"`
	Reveal  *trick.Tractor   `json:"reveal,omitempty"`
}

// Action is a validated intent lifted for authoritative application. Server
// randomness (the seating permutation) is drawn at lift time so that applying
// a recorded action is deterministic.
type Action struct {
	Intent
	Order []PlayerID `json:"order,omitempty"`
}

// Effect is the per-viewer consequence of an accepted action. Hidden payloads
// (a drawn card, kitty contents) are present only for entitled viewers.
type Effect struct {
	Kind    ActionKind       `json:"kind"`
	Player  PlayerID         `json:"player"`
	NDecks  int              `json:"ndecks,omitempty"`
	Card    *cards.CardBase  `json:"card,omitempty"`
	Arity   int              `json:"arity,omitempty"`
	Kitty   []cards.CardBase `json:"kitty,omitempty"`
	Friends []FriendCall     `json:"friends,omitempty"`
	Play    *trick.Flight    `json:"play,omitempty"`
	Reveal  *trick.Tractor   `json:"reveal,omitempty"`
	Order   []PlayerID       `json:"order,omitempty"`
	Trump   *cards.TrumpMeta `json:"trump,omitempty"`
}

// Engine is the ZPY instantiation of the generic protocol contract.
type Engine struct {
	logger *zap.Logger
	rng    *rand.Rand
}

var _ protocol.Engine[Config, Intent, *Game, Action, *ClientState, Effect, *Error] = (*Engine)(nil)

// NewEngine builds the protocol engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Init constructs the initial authoritative state.
func (e *Engine) Init(cfg Config) *Game {
	return NewGame(cfg.Rules, e.logger)
}

// Listen validates and lifts an intent into an action.
func (e *Engine) Listen(g *Game, it Intent, who protocol.UserID) (Action, *Error) {
	if it.Player != who {
		return Action{}, errWrongPlayer("cannot act on another player's behalf")
	}
	if err := requirePayload(it); err != nil {
		return Action{}, err
	}
	act := Action{Intent: it}
	if it.Kind == ActStartGame {
		order := g.Players()
		e.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		act.Order = order
	}
	return act, nil
}

func requirePayload(it Intent) *Error {
	switch it.Kind {
	case ActBidTrump:
		if it.Card == nil {
			return errInvalidArg("bid has no card")
		}
	case ActLeadPlay, ActFollowPlay:
		if it.Play == nil {
			return errInvalidArg("no play given")
		}
	case ActContestFly:
		if it.Reveal == nil {
			return errInvalidArg("no reveal given")
		}
	}
	return nil
}

// Apply performs the authoritative transition for an action.
func (e *Engine) Apply(g *Game, act Action) (*Game, *Error) {
	if err := requirePayload(act.Intent); err != nil {
		return g, err
	}
	var err *Error
	switch act.Kind {
	case ActAddPlayer:
		err = g.AddPlayer(act.Player)
	case ActSetDecks:
		err = g.SetDecks(act.Player, act.NDecks)
	case ActStartGame:
		err = g.StartGameOrder(act.Player, act.Order)
	case ActDrawCard:
		err = g.DrawCard(act.Player)
	case ActBidTrump:
		err = g.BidTrump(act.Player, *act.Card, act.Arity)
	case ActRequestRedeal:
		err = g.RequestRedeal(act.Player)
	case ActReady:
		err = g.Ready(act.Player)
	case ActReplaceKitty:
		err = g.ReplaceKitty(act.Player, act.Kitty)
	case ActCallFriends:
		err = g.CallFriends(act.Player, act.Friends)
	case ActLeadPlay:
		err = g.LeadPlay(act.Player, *act.Play)
	case ActContestFly:
		err = g.ContestFly(act.Player, *act.Reveal)
	case ActPassContest:
		err = g.PassContest(act.Player)
	case ActFollowPlay:
		err = g.FollowPlay(act.Player, *act.Play)
	case ActStartRound:
		err = g.StartRound(act.Player)
	default:
		err = errInvalidArg("unknown action kind")
	}
	return g, err
}

// consensus-completion helpers, evaluated against the pre-action state.

func (g *Game) consensusCompletes(p PlayerID) bool {
	if g.consensus[p] {
		return len(g.consensus) == len(g.players)
	}
	return len(g.consensus)+1 == len(g.players)
}

func (g *Game) followEndsRound() bool {
	return g.phase == PhaseFollow &&
		len(g.plays)+1 == len(g.players) &&
		g.hands[g.leader] != nil &&
		g.hands[g.leader].Pile().Size() == 0
}

func (g *Game) kittyVisible(who PlayerID) bool {
	if g.phase == PhaseFinish {
		return true
	}
	return who == g.host && g.host != "" && g.phase >= PhaseKitty
}

// RedactAction produces the viewer's entitled version of an accepted action's
// consequence. It must be evaluated against the pre-application state.
func (e *Engine) RedactAction(g *Game, act Action, who protocol.UserID) Effect {
	eff := Effect{Kind: act.Kind, Player: act.Player}
	switch act.Kind {
	case ActSetDecks:
		eff.NDecks = act.NDecks
	case ActStartGame:
		eff.Order = append([]PlayerID(nil), act.Order...)
	case ActDrawCard:
		// the drawn card is visible to the drawer only
		if who == act.Player && len(g.deck) > 0 {
			c := g.deck[len(g.deck)-1]
			eff.Card = &c
		}
	case ActBidTrump:
		eff.Card = act.Card
		eff.Arity = act.Arity
	case ActReady:
		if !g.consensusCompletes(act.Player) {
			break
		}
		host := g.host
		if len(g.bids) == 0 {
			if host == "" {
				host = g.players[g.current]
			}
			// the flip is public; the designator it selects goes to everyone
			flip := g.FlipTrump()
			eff.Trump = &flip
		}
		if who == host {
			eff.Kitty = append([]cards.CardBase(nil), g.kitty...)
		}
	case ActReplaceKitty:
		if who == act.Player {
			eff.Kitty = append([]cards.CardBase(nil), act.Kitty...)
		}
	case ActCallFriends:
		eff.Friends = append([]FriendCall(nil), act.Friends...)
	case ActLeadPlay:
		eff.Play = act.Play
	case ActContestFly:
		eff.Reveal = act.Reveal
	case ActFollowPlay:
		eff.Play = act.Play
		if g.followEndsRound() {
			// the kitty is scored publicly at round end
			eff.Kitty = append([]cards.CardBase(nil), g.kitty...)
		}
	}
	return eff
}

// Redact produces the subset of authoritative state the viewer is entitled to
// observe: own cards in full, others' as counts, deck and kitty as counts
// until revealed.
func (e *Engine) Redact(g *Game, who protocol.UserID) *ClientState {
	cs := &ClientState{
		Phase:     g.phase,
		Rules:     g.rules,
		Owner:     g.owner,
		Players:   append([]PlayerID(nil), g.players...),
		Ranks:     make(map[PlayerID]cards.Rank, len(g.ranks)),
		NDecks:    g.ndecks,
		Round:     g.round,
		Order:     make(map[PlayerID]int, len(g.order)),
		Consensus: make(map[PlayerID]bool, len(g.consensus)),
		DeckSize:  len(g.deck),
		KittySize: len(g.kitty),
		Bids:      append([]Bid(nil), g.bids...),
		Draws:     make(map[PlayerID]int, len(g.draws)),
		Current:   g.current,
		Host:      g.host,
		Trump:     g.tr,
		Hands:     make(map[PlayerID]int, len(g.hands)),
		Points:    make(map[PlayerID]int, len(g.points)),
		Friends:   append([]FriendCall(nil), g.friends...),
		Joins:     g.joins,
		HostTeam:  make(map[PlayerID]bool, len(g.hostTeam)),
		AtkTeam:   make(map[PlayerID]bool, len(g.atkTeam)),
		Leader:    g.leader,
		Plays:     make(map[PlayerID]trick.Flight, len(g.plays)),
		Winning:   g.winning,
	}
	for p, r := range g.ranks {
		cs.Ranks[p] = r
	}
	for p, i := range g.order {
		cs.Order[p] = i
	}
	for p := range g.consensus {
		cs.Consensus[p] = true
	}
	for p, pile := range g.draws {
		cs.Draws[p] = pile.Size()
	}
	if pile := g.draws[who]; pile != nil {
		cs.MyDraw = pile.Clone()
	}
	for p, h := range g.hands {
		cs.Hands[p] = h.Pile().Size()
	}
	if h := g.hands[who]; h != nil {
		cs.MyHand = h.Pile().Clone()
	}
	for p := range g.hostTeam {
		cs.HostTeam[p] = true
	}
	for p := range g.atkTeam {
		cs.AtkTeam[p] = true
	}
	if g.lead != nil {
		lead := *g.lead
		cs.Lead = &lead
	}
	for p, f := range g.plays {
		cs.Plays[p] = f
	}
	for p, pts := range g.points {
		cs.Points[p] = pts
	}
	if g.kittyVisible(who) {
		cs.Kitty = append([]cards.CardBase(nil), g.kitty...)
	}
	return cs
}

// Predict computes the most likely authoritative answer to the viewer's own
// intent from visible state alone. Outcomes that depend on hidden information
// (the next deck card, the kitty, other hands, contest races) are unknown.
func (e *Engine) Predict(cs *ClientState, it Intent, me protocol.UserID) protocol.Prediction[Effect, *Error] {
	reject := func(err *Error) protocol.Prediction[Effect, *Error] {
		return protocol.Rejected[Effect, *Error](err)
	}
	if it.Player != me {
		return reject(errWrongPlayer("cannot act on another player's behalf"))
	}
	if err := requirePayload(it); err != nil {
		return reject(err)
	}
	eff := Effect{Kind: it.Kind, Player: it.Player}

	switch it.Kind {
	case ActAddPlayer:
		if err := cs.inPhase(PhaseInit); err != nil {
			return reject(err)
		}
		for _, p := range cs.Players {
			if p == it.Player {
				return reject(errDuplicate("already joined game"))
			}
		}
	case ActSetDecks:
		if err := cs.inPhase(PhaseInit); err != nil {
			return reject(err)
		}
		if me != cs.Owner {
			return reject(errWrongPlayer("game owner only"))
		}
		if it.NDecks <= 0 {
			return reject(errInvalidArg("non-positive number of decks"))
		}
		eff.NDecks = it.NDecks
	case ActStartGame:
		// seating is drawn server-side
		return protocol.Unknown[Effect, *Error]()
	case ActDrawCard:
		if err := cs.inPhase(PhaseDraw); err != nil {
			return reject(err)
		}
		if me != cs.Players[cs.Current] {
			return reject(errOutOfTurn())
		}
		// the drawn card is hidden until the server answers
		return protocol.Unknown[Effect, *Error]()
	case ActBidTrump:
		if err := cs.predictBid(it, me); err != nil {
			return reject(err)
		}
		eff.Card = it.Card
		eff.Arity = it.Arity
	case ActRequestRedeal:
		if err := cs.inPhase(PhasePrepare); err != nil {
			return reject(err)
		}
		if cs.MyDraw == nil || cs.MyDraw.Points() > cs.NDecks*5 {
			return reject(errInvalidPlay("too many points for redeal"))
		}
	case ActReady:
		if err := cs.inPhase(PhasePrepare); err != nil {
			return reject(err)
		}
		if cs.readyWouldComplete(me) && (len(cs.Bids) == 0 || me == cs.Host) {
			// completing ready reveals the kitty (flip or host deal)
			return protocol.Unknown[Effect, *Error]()
		}
	case ActReplaceKitty:
		if err := cs.inPhase(PhaseKitty); err != nil {
			return reject(err)
		}
		if me != cs.Host {
			return reject(errWrongPlayer("host only"))
		}
		if len(it.Kitty) != cs.KittySize {
			return reject(errInvalidPlay("kitty has incorrect size"))
		}
		pile := cards.NewPile(it.Kitty, cs.Trump)
		if cs.MyDraw == nil || !cs.MyDraw.Contains(pile.Counts()) {
			return reject(errInvalidPlay("kitty not part of hand"))
		}
		eff.Kitty = append([]cards.CardBase(nil), it.Kitty...)
	case ActCallFriends:
		if err := cs.predictFriends(it, me); err != nil {
			return reject(err)
		}
		eff.Friends = append([]FriendCall(nil), it.Friends...)
	case ActLeadPlay:
		if err := cs.inPhase(PhaseLead); err != nil {
			return reject(err)
		}
		if err := cs.predictPlay(it, me); err != nil {
			return reject(err)
		}
		eff.Play = it.Play
	case ActContestFly:
		// the verdict races other contests; let the server order them
		return protocol.Unknown[Effect, *Error]()
	case ActPassContest:
		if err := cs.inPhase(PhaseFly); err != nil {
			return reject(err)
		}
	case ActFollowPlay:
		if err := cs.inPhase(PhaseFollow); err != nil {
			return reject(err)
		}
		if err := cs.predictPlay(it, me); err != nil {
			return reject(err)
		}
		if cs.Lead != nil && it.Play.Total != cs.Lead.Total {
			return reject(errInvalidPlay("incorrectly sized play"))
		}
		if cs.Lead != nil && cs.MyHand != nil && cs.Rules.Renege == RenegeForbid {
			pile := cards.NewPile(it.Play.Cards(), cs.Trump)
			if !trick.NewHand(cs.MyHand).FollowOK(*cs.Lead, pile, cs.Trump) {
				return reject(errInvalidPlay("play reneges on the lead"))
			}
		}
		eff.Play = it.Play
	case ActStartRound:
		if err := cs.inPhase(PhaseFinish); err != nil {
			return reject(err)
		}
		if me != cs.Owner {
			return reject(errWrongPlayer("game owner only"))
		}
		if len(cs.Players) < 4 {
			return reject(errInvalidPlay("must have at least 4 players"))
		}
	}
	return protocol.Predicted[Effect, *Error](eff)
}

// ApplyClient reconciles a viewer's state with a confirmed effect.
func (e *Engine) ApplyClient(cs *ClientState, eff Effect, me protocol.UserID) (*ClientState, *Error) {
	next := cs.Clone()
	if err := next.apply(eff, me); err != nil {
		return cs, err
	}
	return next, nil
}
