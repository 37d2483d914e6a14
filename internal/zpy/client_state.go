package zpy

import (
	"github.com/zpy-online/zpy-server-go/internal/zpy/cards"
	"github.com/zpy-online/zpy-server-go/internal/zpy/trick"
)

// ClientState is the per-viewer projection of a Game: public fields verbatim,
// the viewer's own cards in full, everyone else's as counts, and the deck and
// kitty as counts until revealed. A viewer that applies every confirmed
// effect holds exactly the state a fresh redaction would produce.
type ClientState struct {
	Phase     Phase                    `json:"phase"`
	Rules     RuleModifiers            `json:"rules"`
	Owner     PlayerID                 `json:"owner"`
	Players   []PlayerID               `json:"players"`
	Ranks     map[PlayerID]cards.Rank  `json:"ranks"`
	NDecks    int                      `json:"ndecks"`
	Round     int                      `json:"round"`
	Order     map[PlayerID]int         `json:"order"`
	Consensus map[PlayerID]bool        `json:"consensus"`
	DeckSize  int                      `json:"deck_size"`
	KittySize int                      `json:"kitty_size"`
	Kitty     []cards.CardBase         `json:"kitty,omitempty"`
	Bids      []Bid                    `json:"bids"`
	Draws     map[PlayerID]int         `json:"draws"`
	MyDraw    *cards.CardPile          `json:"my_draw,omitempty"`
	Current   int                      `json:"current"`
	Host      PlayerID                 `json:"host"`
	Trump     cards.TrumpMeta          `json:"trump"`
	Hands     map[PlayerID]int         `json:"hands"`
	MyHand    *cards.CardPile          `json:"my_hand,omitempty"`
	Points    map[PlayerID]int         `json:"points"`
	Friends   []FriendCall             `json:"friends"`
	Joins     int                      `json:"joins"`
	HostTeam  map[PlayerID]bool        `json:"host_team"`
	AtkTeam   map[PlayerID]bool        `json:"atk_team"`
	Leader    PlayerID                 `json:"leader"`
	Lead      *trick.Flight            `json:"lead,omitempty"`
	Plays     map[PlayerID]trick.Flight `json:"plays"`
	Winning   PlayerID                 `json:"winning"`
}

// Clone returns an independent deep copy.
func (cs *ClientState) Clone() *ClientState {
	out := *cs
	out.Players = append([]PlayerID(nil), cs.Players...)
	out.Ranks = copyMap(cs.Ranks)
	out.Order = copyMap(cs.Order)
	out.Consensus = copyMap(cs.Consensus)
	out.Kitty = append([]cards.CardBase(nil), cs.Kitty...)
	out.Bids = append([]Bid(nil), cs.Bids...)
	out.Draws = copyMap(cs.Draws)
	out.Hands = copyMap(cs.Hands)
	out.Points = copyMap(cs.Points)
	out.Friends = append([]FriendCall(nil), cs.Friends...)
	out.HostTeam = copyMap(cs.HostTeam)
	out.AtkTeam = copyMap(cs.AtkTeam)
	out.Plays = copyMap(cs.Plays)
	if cs.MyDraw != nil {
		out.MyDraw = cs.MyDraw.Clone()
	}
	if cs.MyHand != nil {
		out.MyHand = cs.MyHand.Clone()
	}
	if cs.Lead != nil {
		lead := *cs.Lead
		out.Lead = &lead
	}
	return &out
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (cs *ClientState) inPhase(ps ...Phase) *Error {
	for _, p := range ps {
		if cs.Phase == p {
			return nil
		}
	}
	return errInvalidPlay("action not valid in phase " + cs.Phase.String())
}

func (cs *ClientState) nextIdx(idx int) int {
	if idx+1 < len(cs.Players) {
		return idx + 1
	}
	return 0
}

func (cs *ClientState) readyWouldComplete(p PlayerID) bool {
	if cs.Consensus[p] {
		return len(cs.Consensus) == len(cs.Players)
	}
	return len(cs.Consensus)+1 == len(cs.Players)
}

// predictBid mirrors the engine's bid validation against visible state.
func (cs *ClientState) predictBid(it Intent, me PlayerID) *Error {
	if err := cs.inPhase(PhaseDraw, PhasePrepare); err != nil {
		return err
	}
	if it.Arity < 1 {
		return errInvalidArg("bid is empty")
	}
	if cs.MyDraw == nil || !cs.MyDraw.Contains([]cards.Count{{Card: *it.Card, N: it.Arity}}) {
		return errInvalidPlay("bid not part of hand")
	}
	rankHolder := cs.Host
	if rankHolder == "" {
		rankHolder = me
	}
	if it.Card.Rank <= cards.Ace && it.Card.Rank != cs.Ranks[rankHolder] {
		return errInvalidPlay("invalid trump bid")
	}
	if len(cs.Bids) > 0 {
		prev := cs.Bids[len(cs.Bids)-1]
		switch {
		case me == prev.Player:
			if it.Card.Suit != prev.Card.Suit || it.Arity <= prev.Arity {
				return errInvalidPlay("cannot overturn own bid")
			}
		case it.Arity > prev.Arity:
		case it.Arity == prev.Arity && prev.Card.Rank <= cards.Ace && it.Card.Rank >= cards.SmallJoker:
		default:
			return errInvalidPlay("bid too low")
		}
	}
	return nil
}

func (cs *ClientState) predictFriends(it Intent, me PlayerID) *Error {
	if err := cs.inPhase(PhaseFriend); err != nil {
		return err
	}
	if me != cs.Host {
		return errWrongPlayer("host only")
	}
	if len(it.Friends) != nfriends(len(cs.Players)) {
		return errInvalidPlay("wrong number of friends called")
	}
	for _, f := range it.Friends {
		if f.Nth < 1 || f.Nth > cs.NDecks {
			return errInvalidArg("friend index out of bounds")
		}
		if cs.Trump.VirtualRank(f.Card) > cards.Ace {
			return errInvalidPlay("no natural trump friend calls allowed")
		}
	}
	return nil
}

func (cs *ClientState) predictPlay(it Intent, me PlayerID) *Error {
	if me != cs.Players[cs.Current] {
		return errOutOfTurn()
	}
	if err := trick.CheckFlight(*it.Play, cs.Trump); err != nil {
		return errInvalidPlay("malformed play: " + err.Error())
	}
	pile := cards.NewPile(it.Play.Cards(), cs.Trump)
	if cs.MyHand == nil || !cs.MyHand.Contains(pile.Counts()) {
		return errInvalidPlay("play not part of hand")
	}
	return nil
}

// resetClient mirrors the engine's resetRound on the visible projection.
func (cs *ClientState) resetClient(starting PlayerID, isHost bool) {
	cs.Round++
	cs.Consensus = make(map[PlayerID]bool)

	deckLen := cs.NDecks * 54
	cs.KittySize = kittySize(deckLen, len(cs.Players))
	cs.DeckSize = deckLen - cs.KittySize
	cs.Kitty = nil

	cs.Bids = nil
	cs.Current = cs.Order[starting]

	if isHost {
		cs.Host = starting
		cs.Trump = cards.TrumpMeta{Suit: cards.Jokers, Rank: cs.Ranks[starting]}
	} else {
		cs.Host = ""
		cs.Trump = cards.NoTrump()
	}
	cs.Draws = make(map[PlayerID]int, len(cs.Players))
	cs.Points = make(map[PlayerID]int, len(cs.Players))
	for _, p := range cs.Players {
		cs.Draws[p] = 0
		cs.Points[p] = 0
	}
	cs.MyDraw = cards.NewPile(nil, cs.Trump)
	cs.Hands = make(map[PlayerID]int)
	cs.MyHand = nil
	cs.Friends = nil
	cs.Joins = 0
	cs.HostTeam = make(map[PlayerID]bool)
	cs.AtkTeam = make(map[PlayerID]bool)
	cs.Leader = ""
	cs.Lead = nil
	cs.Plays = make(map[PlayerID]trick.Flight)
	cs.Winning = ""
	cs.Phase = PhaseDraw
}

// commitClient mirrors the engine's commitPlay: hand bookkeeping, winner
// update, friend-join detection.
func (cs *ClientState) commitClient(player PlayerID, play trick.Flight, me PlayerID) {
	cs.Hands[player] -= play.Total
	if player == me && cs.MyHand != nil {
		cs.MyHand.RemoveAll(cards.NewPile(play.Cards(), cs.Trump).Counts())
	}
	cs.Plays[player] = play

	if cs.Winning == "" || !cs.Plays[cs.Winning].Beats(play, cs.Trump) {
		cs.Winning = player
	}

	for _, tractor := range play.Tractors {
		for _, ct := range tractor.Counts() {
			for i := range cs.Friends {
				f := &cs.Friends[i]
				if f.Nth <= 0 || f.Card != ct.Card {
					continue
				}
				f.Nth -= ct.N
				if f.Nth > 0 {
					continue
				}
				f.Nth = 0
				cs.HostTeam[player] = true
				cs.Joins++
				if cs.Joins == nfriends(len(cs.Players)) {
					for _, p := range cs.Players {
						if !cs.HostTeam[p] {
							cs.AtkTeam[p] = true
						}
					}
				}
			}
		}
	}
}

// apply replays a confirmed effect onto the projection.
func (cs *ClientState) apply(eff Effect, me PlayerID) *Error {
	switch eff.Kind {
	case ActAddPlayer:
		cs.Players = append(cs.Players, eff.Player)
		if len(cs.Players) == 1 {
			cs.Owner = eff.Player
		}
		cs.Ranks[eff.Player] = startingRank

	case ActSetDecks:
		cs.NDecks = eff.NDecks

	case ActStartGame:
		cs.Players = append([]PlayerID(nil), eff.Order...)
		cs.Order = make(map[PlayerID]int, len(cs.Players))
		for i, p := range cs.Players {
			cs.Order[p] = i
		}
		cs.resetClient(cs.Owner, false)

	case ActDrawCard:
		cs.Draws[eff.Player]++
		cs.DeckSize--
		if eff.Player == me {
			if eff.Card == nil {
				return errInvalidArg("drawn card missing from own effect")
			}
			cs.MyDraw.Insert(*eff.Card)
		}
		if cs.DeckSize == 0 {
			cs.Phase = PhasePrepare
		}
		cs.Current = cs.nextIdx(cs.Current)

	case ActBidTrump:
		if eff.Card == nil {
			return errInvalidArg("bid card missing from effect")
		}
		if len(cs.Bids) == 0 && cs.Host == "" {
			cs.Host = eff.Player
		}
		cs.Bids = append(cs.Bids, Bid{Player: eff.Player, Card: *eff.Card, Arity: eff.Arity})
		cs.Trump = cards.TrumpMeta{Suit: eff.Card.Suit, Rank: eff.Card.Rank}
		if cs.MyDraw != nil {
			cs.MyDraw.Rehash(cs.Trump)
		}

	case ActRequestRedeal:
		cs.resetClient(eff.Player, false)

	case ActReady:
		cs.Consensus[eff.Player] = true
		if len(cs.Consensus) != len(cs.Players) {
			break
		}
		cs.Consensus = make(map[PlayerID]bool)
		if len(cs.Bids) == 0 {
			if cs.Host == "" {
				cs.Host = cs.Players[cs.Current]
			}
			if eff.Trump == nil {
				return errInvalidArg("flip designator missing from effect")
			}
			cs.Trump = *eff.Trump
			if cs.MyDraw != nil {
				cs.MyDraw.Rehash(cs.Trump)
			}
		}
		cs.Draws[cs.Host] += cs.KittySize
		if me == cs.Host {
			if len(eff.Kitty) != cs.KittySize {
				return errInvalidArg("kitty missing from host effect")
			}
			for _, c := range eff.Kitty {
				cs.MyDraw.Insert(c)
			}
			cs.Kitty = append([]cards.CardBase(nil), eff.Kitty...)
		}
		cs.Phase = PhaseKitty

	case ActReplaceKitty:
		if me == eff.Player {
			pile := cards.NewPile(eff.Kitty, cs.Trump)
			cs.MyDraw.RemoveAll(pile.Counts())
			cs.Kitty = append([]cards.CardBase(nil), eff.Kitty...)
		}
		cs.Draws[eff.Player] -= cs.KittySize
		cs.Hands = copyMap(cs.Draws)
		cs.MyHand = cs.MyDraw
		cs.MyDraw = nil
		cs.Draws = make(map[PlayerID]int)
		cs.Phase = PhaseFriend

	case ActCallFriends:
		cs.Friends = append([]FriendCall(nil), eff.Friends...)
		cs.HostTeam[cs.Host] = true
		cs.Leader = cs.Host
		cs.Current = cs.Order[cs.Leader]
		cs.Phase = PhaseLead

	case ActLeadPlay:
		if eff.Play == nil {
			return errInvalidArg("play missing from effect")
		}
		play := *eff.Play
		cs.Lead = &play
		cs.Current = cs.nextIdx(cs.Order[cs.Leader])
		if len(play.Tractors) > 1 {
			cs.Consensus[eff.Player] = true
			cs.Phase = PhaseFly
			break
		}
		cs.commitClient(eff.Player, play, me)
		cs.Phase = PhaseFollow

	case ActContestFly:
		if eff.Reveal == nil || cs.Lead == nil {
			return errInvalidArg("reveal missing from effect")
		}
		cs.Consensus = make(map[PlayerID]bool)
		for _, component := range cs.Lead.Tractors {
			if !eff.Reveal.Beats(component, cs.Trump) && !eff.Reveal.Ties(component, cs.Trump) {
				continue
			}
			forced := trick.NewFlight(component)
			cs.Lead = &forced
			cs.commitClient(cs.Leader, forced, me)
			break
		}
		cs.Phase = PhaseFollow

	case ActPassContest:
		cs.Consensus[eff.Player] = true
		if len(cs.Consensus) != len(cs.Players) {
			break
		}
		cs.Consensus = make(map[PlayerID]bool)
		cs.commitClient(cs.Leader, *cs.Lead, me)
		cs.Phase = PhaseFollow

	case ActFollowPlay:
		if eff.Play == nil {
			return errInvalidArg("play missing from effect")
		}
		cs.Current = cs.nextIdx(cs.Current)
		cs.commitClient(eff.Player, *eff.Play, me)
		if len(cs.Plays) == len(cs.Players) {
			cs.collectTrickClient(eff)
		}

	case ActStartRound:
		cs.resetClient(cs.Host, true)

	default:
		return errInvalidArg("unknown effect kind")
	}
	return nil
}

func (cs *ClientState) collectTrickClient(eff Effect) {
	for _, p := range cs.Players {
		for _, ct := range cs.Plays[p].Counts() {
			cs.Points[cs.Winning] += ct.Card.PointValue() * ct.N
		}
	}
	if cs.Hands[cs.Leader] == 0 {
		cs.finishClient(eff)
		return
	}
	cs.Leader = cs.Winning
	cs.Current = cs.Order[cs.Leader]
	cs.Winning = ""
	cs.Lead = nil
	cs.Plays = make(map[PlayerID]trick.Flight)
	cs.Phase = PhaseLead
}

func (cs *ClientState) finishClient(eff Effect) {
	// the kitty is revealed for scoring
	cs.Kitty = append([]cards.CardBase(nil), eff.Kitty...)

	atkPoints := 0
	for _, p := range cs.Players {
		if cs.AtkTeam[p] {
			atkPoints += cs.Points[p]
		}
	}
	if cs.AtkTeam[cs.Winning] {
		kittyPoints := 0
		for _, c := range cs.Kitty {
			kittyPoints += c.PointValue()
		}
		atkPoints += kittyPoints * kittyMultiplier(cs.Plays[cs.Winning], cs.Rules.Kitty)
	}

	delta := atkPoints/(cs.NDecks*20) - 2
	if atkPoints == 0 {
		delta--
	}
	winners := cs.HostTeam
	if delta >= 0 {
		winners = cs.AtkTeam
	}
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	for p := range winners {
		cs.Ranks[p] = rankAfter(cs.Ranks[p], abs, cs.Rules.Rank)
	}

	next := cs.nextIdx(cs.Order[cs.Host])
	for {
		if p := cs.Players[next]; cs.HostTeam[p] {
			cs.Host = p
			break
		}
		next = cs.nextIdx(next)
	}
	cs.Phase = PhaseFinish
}
