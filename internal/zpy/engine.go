package zpy

import (
	"math/rand"
	"time"

	"github.com/zpy-online/zpy-server-go/internal/zpy/cards"
	"github.com/zpy-online/zpy-server-go/internal/zpy/trick"
	"go.uber.org/zap"
)

// Game is the authoritative round state machine for one ZPY game. It is
// single-writer: callers must serialize all action methods externally (see
// table.Manager); no internal locking is performed.
type Game struct {
	phase Phase
	rules RuleModifiers

	// game-scoped state: survives reset_round
	owner   PlayerID
	players []PlayerID // in turn order once the game has started
	ranks   map[PlayerID]cards.Rank
	ndecks  int

	// round-scoped state: overwritten by resetRound
	round     int
	order     map[PlayerID]int
	consensus map[PlayerID]bool
	deck      []cards.CardBase
	kitty     []cards.CardBase
	bids      []Bid
	draws     map[PlayerID]*cards.CardPile
	current   int
	host      PlayerID
	tr        cards.TrumpMeta
	hands     map[PlayerID]*trick.Hand
	points    map[PlayerID]int
	friends   []FriendCall
	joins     int
	hostTeam  map[PlayerID]bool
	atkTeam   map[PlayerID]bool
	leader    PlayerID
	lead      *trick.Flight
	plays     map[PlayerID]trick.Flight
	winning   PlayerID
	reneges   map[PlayerID]bool

	rng    *rand.Rand
	logger *zap.Logger
}

// NewGame constructs a game in PhaseInit under the given rule modifiers.
func NewGame(rules RuleModifiers, logger *zap.Logger) *Game {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Game{
		phase:     PhaseInit,
		rules:     rules,
		ranks:     make(map[PlayerID]cards.Rank),
		order:     make(map[PlayerID]int),
		consensus: make(map[PlayerID]bool),
		draws:     make(map[PlayerID]*cards.CardPile),
		hands:     make(map[PlayerID]*trick.Hand),
		points:    make(map[PlayerID]int),
		hostTeam:  make(map[PlayerID]bool),
		atkTeam:   make(map[PlayerID]bool),
		plays:     make(map[PlayerID]trick.Flight),
		reneges:   make(map[PlayerID]bool),
		tr:        cards.NoTrump(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:    logger,
	}
}

// SetRand replaces the game's randomness source. Intended for tests.
func (g *Game) SetRand(r *rand.Rand) { g.rng = r }

func (g *Game) inPhase(ps ...Phase) *Error {
	for _, p := range ps {
		if g.phase == p {
			return nil
		}
	}
	return errInvalidPlay("action not valid in phase " + g.phase.String())
}

func (g *Game) setPhase(p Phase) {
	g.logger.Debug("phase transition",
		zap.Stringer("from", g.phase),
		zap.Stringer("to", p),
		zap.Int("round", g.round),
	)
	g.phase = p
}

// AddPlayer appends a new player. The first joiner becomes the game owner.
func (g *Game) AddPlayer(player PlayerID) *Error {
	if err := g.inPhase(PhaseInit); err != nil {
		return err
	}
	for _, p := range g.players {
		if p == player {
			return errDuplicate("already joined game")
		}
	}
	if len(g.players) == 0 {
		g.owner = player
	}
	g.players = append(g.players, player)
	g.ranks[player] = startingRank
	return nil
}

// SetDecks sets the number of decks. Game owner only.
func (g *Game) SetDecks(player PlayerID, ndecks int) *Error {
	if err := g.inPhase(PhaseInit); err != nil {
		return err
	}
	if player != g.owner {
		return errWrongPlayer("game owner only")
	}
	if ndecks <= 0 {
		return errInvalidArg("non-positive number of decks")
	}
	g.ndecks = ndecks
	return nil
}

// StartGame randomly seats the players and begins the first round's draw.
// Game owner only.
func (g *Game) StartGame(player PlayerID) *Error {
	order := make([]PlayerID, len(g.players))
	copy(order, g.players)
	g.rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return g.StartGameOrder(player, order)
}

// StartGameOrder is StartGame with an explicit seating permutation, so that a
// recorded action replays deterministically.
func (g *Game) StartGameOrder(player PlayerID, order []PlayerID) *Error {
	if err := g.inPhase(PhaseInit); err != nil {
		return err
	}
	if player != g.owner {
		return errWrongPlayer("game owner only")
	}
	if len(g.players) < 4 {
		return errInvalidPlay("must have at least 4 players")
	}
	if !isPermutation(order, g.players) {
		return errInvalidArg("seating is not a permutation of the players")
	}
	g.players = order
	for i, p := range g.players {
		g.order[p] = i
	}
	g.resetRound(g.owner, false)
	g.setPhase(PhaseDraw)
	return nil
}

func isPermutation(a, b []PlayerID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[PlayerID]bool, len(a))
	for _, p := range a {
		seen[p] = true
	}
	for _, p := range b {
		if !seen[p] {
			return false
		}
	}
	return true
}

// resetRound rebuilds all round-scoped state: new shuffle, new kitty, cleared
// bids and teams. Ranks and the player roster persist across rounds.
func (g *Game) resetRound(starting PlayerID, isHost bool) {
	g.round++
	g.consensus = make(map[PlayerID]bool)

	g.deck = cards.Deck(g.ndecks)
	g.rng.Shuffle(len(g.deck), func(i, j int) {
		g.deck[i], g.deck[j] = g.deck[j], g.deck[i]
	})

	sz := kittySize(len(g.deck), len(g.players))
	g.kitty = make([]cards.CardBase, 0, sz)
	for i := 0; i < sz; i++ {
		g.kitty = append(g.kitty, g.deck[len(g.deck)-1])
		g.deck = g.deck[:len(g.deck)-1]
	}

	g.bids = nil
	g.draws = make(map[PlayerID]*cards.CardPile)
	g.current = g.order[starting]

	if isHost {
		g.host = starting
		g.tr = cards.TrumpMeta{Suit: cards.Jokers, Rank: g.ranks[starting]}
	} else {
		g.host = ""
		g.tr = cards.NoTrump()
	}
	g.hands = make(map[PlayerID]*trick.Hand)
	g.points = make(map[PlayerID]int)
	g.friends = nil
	g.joins = 0
	g.hostTeam = make(map[PlayerID]bool)
	g.atkTeam = make(map[PlayerID]bool)

	g.leader = ""
	g.lead = nil
	g.plays = make(map[PlayerID]trick.Flight)
	g.winning = ""
	g.reneges = make(map[PlayerID]bool)

	for _, p := range g.players {
		g.draws[p] = cards.NewPile(nil, g.tr)
		g.points[p] = 0
	}

	g.logger.Debug("round reset",
		zap.Int("round", g.round),
		zap.Int("kitty_size", sz),
		zap.String("starting", string(starting)),
		zap.Bool("is_host", isHost),
	)
}

func (g *Game) nextIdx(idx int) int {
	if idx+1 < len(g.players) {
		return idx + 1
	}
	return 0
}

// DrawCard pops one card from the deck into the caller's draw pile. The deck
// emptying moves the round to PhasePrepare.
func (g *Game) DrawCard(player PlayerID) *Error {
	if err := g.inPhase(PhaseDraw); err != nil {
		return err
	}
	if player != g.players[g.current] {
		return errOutOfTurn()
	}
	c := g.deck[len(g.deck)-1]
	g.deck = g.deck[:len(g.deck)-1]
	g.draws[player].Insert(c)

	if len(g.deck) == 0 {
		g.setPhase(PhasePrepare)
	}
	g.current = g.nextIdx(g.current)
	return nil
}

// BidTrump places a trump bid, re-indexing every draw pile against the new
// designator when accepted. The first accepted bid of a bid-for-host draw
// assigns the host.
func (g *Game) BidTrump(player PlayerID, card cards.CardBase, arity int) *Error {
	if err := g.inPhase(PhaseDraw, PhasePrepare); err != nil {
		return err
	}
	if arity < 1 {
		return errInvalidArg("bid is empty")
	}
	if !g.draws[player].Contains([]cards.Count{{Card: card, N: arity}}) {
		return errInvalidPlay("bid not part of hand")
	}

	// non-joker bids must match the host's rank, or the bidder's own in a
	// bid-for-host draw
	rankHolder := g.host
	if rankHolder == "" {
		rankHolder = player
	}
	if card.Rank <= cards.Ace && card.Rank != g.ranks[rankHolder] {
		return errInvalidPlay("invalid trump bid")
	}

	if len(g.bids) > 0 {
		prev := g.bids[len(g.bids)-1]
		switch {
		case player == prev.Player:
			if card.Suit != prev.Card.Suit || arity <= prev.Arity {
				return errInvalidPlay("cannot overturn own bid")
			}
		case arity > prev.Arity:
			// strictly bigger always wins
		case arity == prev.Arity && prev.Card.Rank <= cards.Ace && card.Rank >= cards.SmallJoker:
			// joker tier breaks arity ties against off-trump-rank bids
		default:
			return errInvalidPlay("bid too low")
		}
	} else if g.host == "" {
		g.host = player
	}

	g.bids = append(g.bids, Bid{Player: player, Card: card, Arity: arity})
	g.tr = cards.TrumpMeta{Suit: card.Suit, Rank: card.Rank}
	for _, pile := range g.draws {
		pile.Rehash(g.tr)
	}
	g.logger.Debug("bid accepted",
		zap.String("player", string(player)),
		zap.Stringer("card", card),
		zap.Int("arity", arity),
	)
	return nil
}

// RequestRedeal rejects a low-point deal: permitted only while the
// requester's draw pile holds at most ndecks*5 points. Fully resets the round
// with the requester as the new starting player.
func (g *Game) RequestRedeal(player PlayerID) *Error {
	if err := g.inPhase(PhasePrepare); err != nil {
		return err
	}
	if g.draws[player].Points() > g.ndecks*5 {
		return errInvalidPlay("too many points for redeal")
	}
	g.resetRound(player, false)
	g.setPhase(PhaseDraw)
	return nil
}

// Ready marks the caller as done bidding. Once everyone is ready the kitty
// resolves: with no accepted bid the kitty is flipped to pick the trump, then
// in all cases the kitty enters the host's pile and the phase moves to KITTY.
func (g *Game) Ready(player PlayerID) *Error {
	if err := g.inPhase(PhasePrepare); err != nil {
		return err
	}
	g.consensus[player] = true
	if len(g.consensus) != len(g.players) {
		return nil
	}
	g.consensus = make(map[PlayerID]bool)

	if len(g.bids) == 0 {
		if g.host == "" {
			g.host = g.players[g.current]
		}
		flip := g.FlipTrump()
		g.tr = flip
		for _, pile := range g.draws {
			pile.Rehash(g.tr)
		}
		g.logger.Debug("kitty flipped for trump", zap.Stringer("suit", flip.Suit))
	}

	for _, c := range g.kitty {
		g.draws[g.host].Insert(c)
	}
	g.setPhase(PhaseKitty)
	return nil
}

// FlipTrump computes the designator a no-bid kitty flip would select: the
// kitty's highest card under a natural-trump-only ordering at the host's (or
// would-be host's) rank.
func (g *Game) FlipTrump() cards.TrumpMeta {
	host := g.host
	if host == "" {
		host = g.players[g.current]
	}
	ctx := cards.TrumpMeta{Suit: cards.Jokers, Rank: g.ranks[host]}
	var best cards.Card
	for i, c := range g.kitty {
		card := cards.NewCard(c, ctx)
		if i == 0 || card.VRank > best.VRank {
			best = card
		}
	}
	return cards.TrumpMeta{Suit: best.Suit, Rank: best.Rank}
}

// ReplaceKitty is the host discarding a replacement kitty of the original's
// exact size. Every draw pile then finalizes into a hand and the phase moves
// to FRIEND.
func (g *Game) ReplaceKitty(player PlayerID, kitty []cards.CardBase) *Error {
	if err := g.inPhase(PhaseKitty); err != nil {
		return err
	}
	if player != g.host {
		return errWrongPlayer("host only")
	}
	if len(kitty) != len(g.kitty) {
		return errInvalidPlay("kitty has incorrect size")
	}
	pile := cards.NewPile(kitty, g.tr)
	if !g.draws[player].Contains(pile.Counts()) {
		return errInvalidPlay("kitty not part of hand")
	}

	g.draws[player].RemoveAll(pile.Counts())
	g.kitty = append([]cards.CardBase(nil), kitty...)

	for _, p := range g.players {
		g.hands[p] = trick.NewHand(g.draws[p])
	}
	// cleared mostly to prevent bugs; hands own the piles now
	g.draws = make(map[PlayerID]*cards.CardPile)
	g.setPhase(PhaseFriend)
	return nil
}

// CallFriends is the host declaring exactly nfriends friend cards. The host
// joins the host team, becomes trick leader, and play begins.
func (g *Game) CallFriends(player PlayerID, friends []FriendCall) *Error {
	if err := g.inPhase(PhaseFriend); err != nil {
		return err
	}
	if player != g.host {
		return errWrongPlayer("host only")
	}
	if len(friends) != nfriends(len(g.players)) {
		return errInvalidPlay("wrong number of friends called")
	}
	for _, f := range friends {
		if f.Nth < 1 || f.Nth > g.ndecks {
			g.friends = nil
			return errInvalidArg("friend index out of bounds")
		}
		if g.tr.VirtualRank(f.Card) > cards.Ace {
			g.friends = nil
			return errInvalidPlay("no natural trump friend calls allowed")
		}
	}
	g.friends = append([]FriendCall(nil), friends...)

	g.hostTeam[g.host] = true
	g.leader = g.host
	g.current = g.order[g.leader]
	g.setPhase(PhaseLead)
	return nil
}

// initPlay validates the caller's turn, the play's structure, and its
// containment in their hand, returning the play as a pile. It does not
// mutate. The flight arrives from the wire, so its tractors, virtual ranks,
// and total are all unverified until reconstructed here.
func (g *Game) initPlay(player PlayerID, play trick.Flight) (*cards.CardPile, *Error) {
	if player != g.players[g.current] {
		return nil, errOutOfTurn()
	}
	if err := trick.CheckFlight(play, g.tr); err != nil {
		return nil, errInvalidPlay("malformed play: " + err.Error())
	}
	pile := cards.NewPile(play.Cards(), g.tr)
	if !g.hands[player].Pile().Contains(pile.Counts()) {
		return nil, errInvalidPlay("play not part of hand")
	}
	return pile, nil
}

// commitPlay removes the play from the player's hand, records it, updates the
// current winner, and runs friend-join detection.
func (g *Game) commitPlay(player PlayerID, play trick.Flight, pile *cards.CardPile) {
	g.hands[player].Pile().RemoveAll(pile.Counts())
	g.plays[player] = play

	if g.winning == "" || !g.plays[g.winning].Beats(play, g.tr) {
		g.winning = player
	}

	for _, tractor := range play.Tractors {
		for _, ct := range tractor.Counts() {
			for i := range g.friends {
				f := &g.friends[i]
				if f.Nth <= 0 || f.Card != ct.Card {
					continue
				}
				f.Nth -= ct.N
				if f.Nth > 0 {
					continue
				}
				f.Nth = 0
				g.hostTeam[player] = true
				g.joins++
				if g.joins == nfriends(len(g.players)) {
					// partition finalized; some joins may have been redundant
					for _, p := range g.players {
						if !g.hostTeam[p] {
							g.atkTeam[p] = true
						}
					}
				}
			}
		}
	}
}

// LeadPlay opens a trick. A flight of more than one tractor is withheld and
// opens a contest window (PhaseFly); anything else commits immediately.
func (g *Game) LeadPlay(player PlayerID, play trick.Flight) *Error {
	if err := g.inPhase(PhaseLead); err != nil {
		return err
	}
	pile, err := g.initPlay(player, play)
	if err != nil {
		return err
	}
	g.lead = &play
	g.current = g.nextIdx(g.order[g.leader])

	if len(play.Tractors) > 1 {
		g.consensus[player] = true
		g.setPhase(PhaseFly)
		return nil
	}
	g.commitPlay(player, play, pile)
	g.setPhase(PhaseFollow)
	return nil
}

// ContestFly reveals a play that beats or equals a component of the pending
// flight. On success the flight collapses to that component and the shrunk
// play is committed on the leader's behalf.
func (g *Game) ContestFly(player PlayerID, reveal trick.Tractor) *Error {
	if err := g.inPhase(PhaseFly); err != nil {
		return err
	}
	if player == g.leader {
		return errWrongPlayer("cannot contest own flight")
	}
	if err := trick.CheckTractor(reveal, g.tr); err != nil {
		return errInvalidPlay("malformed reveal: " + err.Error())
	}
	if !g.hands[player].Pile().Contains(reveal.Counts()) {
		return errInvalidPlay("reveal not part of hand")
	}
	for _, component := range g.lead.Tractors {
		// a held copy of a component contests it too
		if !reveal.Beats(component, g.tr) && !reveal.Ties(component, g.tr) {
			continue
		}
		g.consensus = make(map[PlayerID]bool)

		forced := trick.NewFlight(component)
		g.lead = &forced
		g.commitPlay(g.leader, forced, cards.NewPile(forced.Cards(), g.tr))
		g.setPhase(PhaseFollow)
		return nil
	}
	return errInvalidPlay("reveal does not contest flight")
}

// PassContest waives the caller's contest. Once every player has passed the
// flight stands and is committed for the leader.
func (g *Game) PassContest(player PlayerID) *Error {
	if err := g.inPhase(PhaseFly); err != nil {
		return err
	}
	g.consensus[player] = true
	if len(g.consensus) != len(g.players) {
		return nil
	}
	g.consensus = make(map[PlayerID]bool)

	lead := *g.lead
	g.commitPlay(g.leader, lead, cards.NewPile(lead.Cards(), g.tr))
	g.setPhase(PhaseFollow)
	return nil
}

// FollowPlay follows the lead with an equal-sized play. The last follow of a
// trick collects it, and an exhausted leader hand ends the round.
func (g *Game) FollowPlay(player PlayerID, play trick.Flight) *Error {
	if err := g.inPhase(PhaseFollow); err != nil {
		return err
	}
	pile, err := g.initPlay(player, play)
	if err != nil {
		return err
	}
	if play.Total != g.lead.Total {
		return errInvalidPlay("incorrectly sized play")
	}

	renege := !g.hands[player].FollowOK(*g.lead, pile, g.tr)
	if renege && g.rules.Renege == RenegeForbid {
		return errInvalidPlay("play reneges on the lead")
	}

	g.current = g.nextIdx(g.current)
	if renege {
		g.reneges[player] = true
	}
	g.commitPlay(player, play, pile)

	if len(g.plays) == len(g.players) {
		g.collectTrick()
	}
	return nil
}

// collectTrick credits every played point to the trick winner, then either
// scores the round or hands the lead to the winner.
func (g *Game) collectTrick() {
	for _, p := range g.players {
		play := g.plays[p]
		for _, ct := range play.Counts() {
			g.points[g.winning] += ct.Card.PointValue() * ct.N
		}
	}
	if g.hands[g.leader].Pile().Size() == 0 {
		g.finishRound()
		return
	}
	g.leader = g.winning
	g.current = g.order[g.leader]
	g.winning = ""
	g.lead = nil
	g.plays = make(map[PlayerID]trick.Flight)
	g.setPhase(PhaseLead)
}

// finishRound scores the attacking team, promotes the winning side, and
// selects the next host.
func (g *Game) finishRound() {
	atkPoints := 0
	for _, p := range g.players {
		if g.atkTeam[p] {
			atkPoints += g.points[p]
		}
	}
	if g.atkTeam[g.winning] {
		kittyPoints := 0
		for _, c := range g.kitty {
			kittyPoints += c.PointValue()
		}
		atkPoints += kittyPoints * kittyMultiplier(g.plays[g.winning], g.rules.Kitty)
	}

	// number of ranks the attacking team ascends
	delta := atkPoints/(g.ndecks*20) - 2
	if atkPoints == 0 {
		delta--
	}

	winners := g.hostTeam
	if delta >= 0 {
		winners = g.atkTeam
	}
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	for p := range winners {
		g.ranks[p] = rankAfter(g.ranks[p], abs, g.rules.Rank)
	}

	next := g.nextIdx(g.order[g.host])
	for {
		if p := g.players[next]; g.hostTeam[p] {
			g.host = p
			break
		}
		next = g.nextIdx(next)
	}

	g.logger.Info("round finished",
		zap.Int("round", g.round),
		zap.Int("atk_points", atkPoints),
		zap.Int("delta", delta),
		zap.String("next_host", string(g.host)),
	)
	g.setPhase(PhaseFinish)
}

// kittyMultiplier is the configured function of the winning play's largest
// tractor size.
func kittyMultiplier(play trick.Flight, rule KittyMultiplierRule) int {
	size := 0
	for _, t := range play.Tractors {
		if c := t.Count(); c > size {
			size = c
		}
	}
	if rule == KittyMultMult {
		return 2 * size
	}
	mult := 1
	for i := 0; i < size; i++ {
		mult *= 2
	}
	return mult
}

// StartRound begins the next round with the previous host as the starting
// player and host-designate. Game owner only.
func (g *Game) StartRound(player PlayerID) *Error {
	if err := g.inPhase(PhaseFinish); err != nil {
		return err
	}
	if player != g.owner {
		return errWrongPlayer("game owner only")
	}
	if len(g.players) < 4 {
		return errInvalidPlay("must have at least 4 players")
	}
	g.resetRound(g.host, true)
	g.setPhase(PhaseDraw)
	return nil
}
