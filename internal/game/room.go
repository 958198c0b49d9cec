// internal/game/room.go
package game

import (
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jason-s-yu/palavras/internal/cache"
	"github.com/jason-s-yu/palavras/internal/wordnorm"
	"github.com/sirupsen/logrus"
)

// RoomState is the phase a room is in.
type RoomState string

const (
	StateWaiting       RoomState = "waiting"
	StateChoosingWords RoomState = "choosing_words"
	StatePlaying       RoomState = "playing"
	StateFinished      RoomState = "finished"
)

const (
	MaxPlayers     = 2
	WordsPerPlayer = 5
	MinNameLen     = 2
	MaxNameLen     = 20
	MinWordLen     = 2
	MaxWordLen     = 25
	MaxChatLen     = 300

	chatHistoryLimit = 50
	chatTimeLayout   = "15:04:05"
)

// Player is a seat in a room, bound to one live connection.
type Player struct {
	ConnID      uuid.UUID
	Name        string
	WordsChosen bool
	JoinedAt    time.Time
}

// ActionSink receives round action records. Publish must not block.
type ActionSink interface {
	Publish(rec cache.GameActionRecord)
}

type wordList struct {
	original []string
	lower    []string
}

// Room holds the authoritative state of one two-player match.
//
// Every exported method except NewRoom assumes the caller holds Mu.
type Room struct {
	Code             string
	CreatedAt        time.Time
	State            RoomState
	Players          []*Player
	CurrentTurn      uuid.UUID
	Challenges       map[uuid.UUID]*Challenge
	LastAction       *ActionResult
	Winner           string
	WasDisconnection bool
	RoundID          uuid.UUID
	ChatHistory      []ChatMessage

	Mu sync.Mutex

	// SendFn delivers an event to a single connection. It is called with Mu
	// held and must not block.
	SendFn     func(connID uuid.UUID, ev GameEvent)
	ActionSink ActionSink
	Logger     *logrus.Logger

	submissions  map[uuid.UUID]wordList
	roundWords   map[string][]string
	finish       *GameFinishedPayload
	lastActivity time.Time
	closed       bool
	actionIndex  int
	random       Random
	now          func() time.Time
}

// NewRoom returns an empty room in the waiting state.
func NewRoom(code string, now func() time.Time, random Random) *Room {
	if now == nil {
		now = time.Now
	}
	if random == nil {
		random = CryptoRandom{}
	}
	t := now()
	return &Room{
		Code:         code,
		CreatedAt:    t,
		State:        StateWaiting,
		Players:      make([]*Player, 0, MaxPlayers),
		Challenges:   make(map[uuid.UUID]*Challenge),
		submissions:  make(map[uuid.UUID]wordList),
		lastActivity: t,
		random:       random,
		now:          now,
		Logger:       logrus.StandardLogger(),
	}
}

// Closed reports whether the room was reaped. A closed room rejects all events.
func (r *Room) Closed() bool { return r.closed }

// LastActivity is the time of the last membership change or game action.
func (r *Room) LastActivity() time.Time { return r.lastActivity }

func (r *Room) touch() { r.lastActivity = r.now() }

// Player returns the player bound to connID, or nil.
func (r *Room) Player(connID uuid.UUID) *Player {
	for _, p := range r.Players {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

func (r *Room) opponent(connID uuid.UUID) *Player {
	for _, p := range r.Players {
		if p.ConnID != connID {
			return p
		}
	}
	return nil
}

// AddPlayer seats a new player. Reaching two players while waiting starts the
// word selection phase.
func (r *Room) AddPlayer(connID uuid.UUID, name string) (*Player, error) {
	if r.closed {
		return nil, ErrRoomClosed
	}
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < MinNameLen || n > MaxNameLen {
		return nil, ErrInvalidName
	}
	if r.Player(connID) != nil {
		return nil, ErrAlreadyInRoom
	}
	if len(r.Players) >= MaxPlayers {
		return nil, ErrRoomFull
	}
	for _, p := range r.Players {
		if strings.EqualFold(p.Name, name) {
			return nil, ErrNameTaken
		}
	}

	p := &Player{ConnID: connID, Name: name, JoinedAt: r.now()}
	r.Players = append(r.Players, p)
	r.touch()

	r.send(connID, GameEvent{Type: EventJoinedRoom, Payload: JoinedRoomPayload{
		RoomID:     r.Code,
		PlayerName: name,
		IsCreator:  len(r.Players) == 1,
	}})
	r.broadcastPlayers()

	switch {
	case r.State == StateWaiting && len(r.Players) == MaxPlayers:
		r.State = StateChoosingWords
		r.broadcast(GameEvent{Type: EventStartChoosingWords, Payload: MessagePayload{
			Message: fmt.Sprintf("Escolham suas %d palavras!", WordsPerPlayer),
		}})
	case r.State == StateFinished && r.finish != nil:
		r.send(connID, GameEvent{Type: EventGameFinished, Payload: *r.finish})
	}
	r.sendChatHistory(connID)
	return p, nil
}

// SubmitWords records a player's word chain. The round starts as soon as both
// seated players have submitted.
func (r *Room) SubmitWords(connID uuid.UUID, words []string) error {
	p := r.Player(connID)
	if p == nil {
		return ErrNotInRoom
	}
	if r.State == StatePlaying || r.State == StateFinished {
		return ErrWordsLocked
	}
	if len(words) != WordsPerPlayer {
		return ErrInvalidWordCount
	}

	list := wordList{
		original: make([]string, WordsPerPlayer),
		lower:    make([]string, WordsPerPlayer),
	}
	for i, w := range words {
		if n := runeLenTrimmed(w); n < MinWordLen || n > MaxWordLen {
			return fmt.Errorf("%w (palavra %d)", ErrInvalidWordLength, i+1)
		}
		list.original[i] = strings.TrimSpace(w)
		list.lower[i] = strings.ToLower(list.original[i])
	}

	r.submissions[connID] = list
	p.WordsChosen = true
	r.touch()

	waiting := MaxPlayers - len(r.Players)
	for _, other := range r.Players {
		if !other.WordsChosen {
			waiting++
		}
	}
	r.broadcast(GameEvent{Type: EventWordsSubmitted, Payload: WordsSubmittedPayload{
		PlayerName: p.Name,
		WaitingFor: waiting,
	}})
	r.broadcastPlayers()

	if len(r.Players) == MaxPlayers && waiting == 0 {
		return r.InitializeRound()
	}
	return nil
}

// InitializeRound builds both challenges from the submitted words, picks who
// goes first and moves the room to playing.
func (r *Room) InitializeRound() error {
	if len(r.Players) != MaxPlayers {
		return fmt.Errorf("%w: round needs %d players, room %s has %d", ErrInternal, MaxPlayers, r.Code, len(r.Players))
	}
	a, b := r.Players[0], r.Players[1]
	wa, okA := r.submissions[a.ConnID]
	wb, okB := r.submissions[b.ConnID]
	if !okA || !okB {
		return fmt.Errorf("%w: missing word submission in room %s", ErrInternal, r.Code)
	}

	r.Challenges = map[uuid.UUID]*Challenge{
		a.ConnID: NewChallenge(wb.original, wb.lower),
		b.ConnID: NewChallenge(wa.original, wa.lower),
	}
	r.roundWords = map[string][]string{
		a.Name: append([]string(nil), wa.original...),
		b.Name: append([]string(nil), wb.original...),
	}
	r.RoundID = uuid.New()
	r.actionIndex = 0
	r.Winner = ""
	r.WasDisconnection = false
	r.finish = nil

	first := r.Players[r.random.Intn(MaxPlayers)]
	r.CurrentTurn = first.ConnID
	r.State = StatePlaying
	r.LastAction = &ActionResult{
		Type:       "round_started",
		PlayerName: first.Name,
		Message:    fmt.Sprintf("O jogo começou! %s começa.", first.Name),
	}
	r.touch()

	r.logAction(first.Name, "round_start", map[string]interface{}{
		"players":    []string{a.Name, b.Name},
		"first_turn": first.Name,
	})
	r.Logger.WithFields(logrus.Fields{"room": r.Code, "round": r.RoundID}).Info("Round started")

	r.broadcastPlayers()
	r.broadcastDisplays()
	return nil
}

// GuessOutcome describes how a guess was resolved.
type GuessOutcome struct {
	Correct   bool
	Finished  bool
	WordIndex int
	Hint      string
}

// Guess resolves a guess by the player whose turn it is. A correct guess keeps
// the turn; a wrong one reveals another letter and passes the turn.
func (r *Room) Guess(connID uuid.UUID, text string) (GuessOutcome, error) {
	if r.State != StatePlaying {
		return GuessOutcome{}, ErrGameNotActive
	}
	p := r.Player(connID)
	if p == nil {
		return GuessOutcome{}, ErrNotInRoom
	}
	if r.CurrentTurn != connID {
		return GuessOutcome{}, ErrNotYourTurn
	}
	guess := strings.TrimSpace(text)
	if guess == "" {
		return GuessOutcome{}, ErrEmptyGuess
	}
	ch, ok := r.Challenges[connID]
	if !ok || ch.Done() {
		r.forceFinish("missing challenge for current player")
		return GuessOutcome{}, fmt.Errorf("%w: no active challenge for %s in room %s", ErrInternal, p.Name, r.Code)
	}

	idx := ch.GuessIndex
	r.touch()

	if r.matches(guess, ch.CurrentTarget()) {
		word := ch.Targets[idx]
		ch.Solve()
		out := GuessOutcome{Correct: true, WordIndex: idx}
		r.logAction(p.Name, "guess_correct", map[string]interface{}{
			"guess":      guess,
			"word_index": idx,
		})

		if ch.Done() {
			out.Finished = true
			r.LastAction = &ActionResult{
				Type:       "game_won",
				PlayerName: p.Name,
				Word:       strings.ToUpper(word),
				WordIndex:  idx,
				Message:    fmt.Sprintf("%s acertou %s e venceu o jogo!", p.Name, strings.ToUpper(word)),
			}
			r.finishRound(p, false)
			return out, nil
		}

		out.Hint = ch.CurrentHint()
		r.LastAction = &ActionResult{
			Type:       "correct_guess",
			PlayerName: p.Name,
			Word:       strings.ToUpper(word),
			WordIndex:  idx,
			Message:    fmt.Sprintf("%s acertou: %s! Continua jogando.", p.Name, strings.ToUpper(word)),
		}
		r.broadcastPlayers()
		r.broadcastDisplays()
		return out, nil
	}

	ch.RevealMore()
	next := r.opponent(connID)
	if next == nil {
		r.forceFinish("opponent missing while playing")
		return GuessOutcome{}, fmt.Errorf("%w: no opponent for %s in room %s", ErrInternal, p.Name, r.Code)
	}
	r.CurrentTurn = next.ConnID

	out := GuessOutcome{WordIndex: idx, Hint: ch.CurrentHint()}
	r.LastAction = &ActionResult{
		Type:       "incorrect_guess",
		PlayerName: p.Name,
		Guess:      strings.ToUpper(guess),
		WordIndex:  idx,
		Message:    fmt.Sprintf("%s errou (%s). Vez de %s.", p.Name, strings.ToUpper(guess), next.Name),
	}
	r.logAction(p.Name, "guess_incorrect", map[string]interface{}{
		"guess":      guess,
		"word_index": idx,
		"revealed":   ch.Revealed[idx],
	})
	r.broadcastPlayers()
	r.broadcastDisplays()
	return out, nil
}

// ResetRound clears a finished round so the same players can play again.
func (r *Room) ResetRound() error {
	if r.State != StateFinished {
		return ErrGameNotFinished
	}
	r.Challenges = make(map[uuid.UUID]*Challenge)
	r.submissions = make(map[uuid.UUID]wordList)
	r.roundWords = nil
	for _, p := range r.Players {
		p.WordsChosen = false
	}
	r.CurrentTurn = uuid.Nil
	r.LastAction = nil
	r.Winner = ""
	r.WasDisconnection = false
	r.RoundID = uuid.Nil
	r.finish = nil
	r.touch()

	if len(r.Players) == MaxPlayers {
		r.State = StateChoosingWords
	} else {
		r.State = StateWaiting
	}
	r.broadcastPlayers()
	if r.State == StateChoosingWords {
		r.broadcast(GameEvent{Type: EventStartChoosingWords, Payload: MessagePayload{
			Message: "Nova partida! Escolham novas palavras.",
		}})
	}
	return nil
}

// RemovePlayer unseats the player bound to connID. Leaving a game in progress
// forfeits it to the remaining player.
func (r *Room) RemovePlayer(connID uuid.UUID) (*Player, bool) {
	idx := -1
	for i, p := range r.Players {
		if p.ConnID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}
	removed := r.Players[idx]
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	delete(r.submissions, connID)
	r.touch()

	switch r.State {
	case StatePlaying:
		if len(r.Players) == 1 {
			winner := r.Players[0]
			r.LastAction = &ActionResult{
				Type:       "player_left",
				PlayerName: removed.Name,
				Message:    fmt.Sprintf("%s saiu da partida. %s venceu!", removed.Name, winner.Name),
			}
			r.finishRound(winner, true)
		}
	case StateChoosingWords:
		if len(r.Players) < MaxPlayers {
			r.State = StateWaiting
		}
	}
	r.broadcastPlayers()
	return removed, true
}

// Chat appends a message from connID to the room history and broadcasts it.
func (r *Room) Chat(connID uuid.UUID, message string) (ChatMessage, error) {
	p := r.Player(connID)
	if p == nil {
		return ChatMessage{}, ErrNotInRoom
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatMessage{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > MaxChatLen {
		return ChatMessage{}, ErrMessageTooLong
	}
	msg := ChatMessage{
		PlayerName: p.Name,
		Message:    message,
		Timestamp:  r.now().Format(chatTimeLayout),
	}
	r.ChatHistory = append(r.ChatHistory, msg)
	if len(r.ChatHistory) > chatHistoryLimit {
		r.ChatHistory = append([]ChatMessage(nil), r.ChatHistory[len(r.ChatHistory)-chatHistoryLimit:]...)
	}
	r.touch()
	r.broadcast(GameEvent{Type: EventNewChatMessage, Payload: msg})
	return msg, nil
}

// Sync re-sends everything a client needs to redraw the room.
func (r *Room) Sync(connID uuid.UUID) error {
	if r.Player(connID) == nil {
		return ErrNotInRoom
	}
	r.send(connID, GameEvent{Type: EventPlayersUpdate, Payload: PlayersUpdatePayload{Players: r.PlayerViews()}})
	switch r.State {
	case StateChoosingWords:
		r.send(connID, GameEvent{Type: EventStartChoosingWords, Payload: MessagePayload{
			Message: fmt.Sprintf("Escolham suas %d palavras!", WordsPerPlayer),
		}})
	case StatePlaying:
		r.send(connID, GameEvent{Type: EventUpdateGameDisplay, Payload: r.DisplayFor(connID)})
	case StateFinished:
		if _, ok := r.Challenges[connID]; ok {
			r.send(connID, GameEvent{Type: EventUpdateGameDisplay, Payload: r.DisplayFor(connID)})
		}
		if r.finish != nil {
			r.send(connID, GameEvent{Type: EventGameFinished, Payload: *r.finish})
		}
	}
	r.sendChatHistory(connID)
	return nil
}

// AnswerKey lists each player's words for the round that just ended, including
// the words of a player who has since left.
func (r *Room) AnswerKey() (AnswerKeyPayload, error) {
	if r.State != StateFinished {
		return AnswerKeyPayload{}, ErrGameNotFinished
	}
	key := AnswerKeyPayload{WordsByPlayer: make(map[string][]string, len(r.roundWords))}
	for name, words := range r.roundWords {
		key.WordsByPlayer[name] = append([]string(nil), words...)
	}
	return key, nil
}

// PlayerViews is the player list as shown to clients.
func (r *Room) PlayerViews() []PlayerView {
	views := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		views = append(views, PlayerView{
			Name:          p.Name,
			WordsChosen:   p.WordsChosen,
			IsCurrentTurn: r.State == StatePlaying && p.ConnID == r.CurrentTurn,
		})
	}
	return views
}

// DisplayFor builds the board for one viewer. Words that have not been guessed
// yet are only shown as hints.
func (r *Room) DisplayFor(connID uuid.UUID) GameDisplay {
	d := GameDisplay{LastActionResult: r.LastAction}
	p := r.Player(connID)
	if p != nil {
		d.ViewingForPlayerName = p.Name
	}
	ch, ok := r.Challenges[connID]
	if !ok {
		return d
	}

	n := len(ch.TargetsLower)
	d.InitialsToDisplay = make([]string, n)
	d.WordsForProgress = make([]string, n)
	d.CompletedMask = append([]bool(nil), ch.Completed...)
	for i := 0; i < n; i++ {
		if ch.Completed[i] {
			d.InitialsToDisplay[i] = strings.ToUpper(ch.Targets[i])
			d.WordsForProgress[i] = ch.Targets[i]
			continue
		}
		d.InitialsToDisplay[i] = Hint(ch.TargetsLower[i], ch.Revealed[i])
	}
	if n > 0 {
		d.KeywordToDisplay = strings.ToUpper(ch.Targets[0])
	}
	d.ActiveWordIndex = ch.GuessIndex
	d.CurrentHint = ch.CurrentHint()
	d.IsYourTurn = r.State == StatePlaying && r.CurrentTurn == connID
	return d
}

// RoomSummary is a read-only snapshot used by the HTTP status endpoint.
type RoomSummary struct {
	Code      string       `json:"code"`
	State     RoomState    `json:"state"`
	Players   []PlayerView `json:"players"`
	CreatedAt time.Time    `json:"created_at"`
	Winner    string       `json:"winner,omitempty"`
}

func (r *Room) Summary() RoomSummary {
	return RoomSummary{
		Code:      r.Code,
		State:     r.State,
		Players:   r.PlayerViews(),
		CreatedAt: r.CreatedAt,
		Winner:    r.Winner,
	}
}

func (r *Room) matches(guess, target string) bool {
	return wordnorm.WordsEqual(guess, target)
}

// finishRound ends the round with winner. forfeit marks a win by the opponent
// leaving.
func (r *Room) finishRound(winner *Player, forfeit bool) {
	r.State = StateFinished
	r.Winner = winner.Name
	r.WasDisconnection = forfeit

	var sequence []string
	if ch, ok := r.Challenges[winner.ConnID]; ok {
		sequence = append([]string(nil), ch.Targets...)
	}
	msg := fmt.Sprintf("%s venceu o jogo!", winner.Name)
	if forfeit {
		msg = fmt.Sprintf("%s venceu! O adversário saiu da partida.", winner.Name)
	}
	r.finish = &GameFinishedPayload{
		WinnerName:         winner.Name,
		Message:            msg,
		FinalWordsSequence: sequence,
		WasDisconnection:   forfeit,
	}

	r.logAction(winner.Name, cache.ActionRoundEnd, map[string]interface{}{
		"winner":            winner.Name,
		"was_disconnection": forfeit,
	})
	r.Logger.WithFields(logrus.Fields{
		"room":    r.Code,
		"round":   r.RoundID,
		"winner":  winner.Name,
		"forfeit": forfeit,
	}).Info("Round finished")

	r.broadcastPlayers()
	r.broadcastDisplays()
	r.broadcast(GameEvent{Type: EventGameFinished, Payload: *r.finish})
}

// forceFinish puts a room whose invariants broke into a terminal state.
func (r *Room) forceFinish(reason string) {
	r.Logger.WithFields(logrus.Fields{"room": r.Code, "state": r.State}).Errorf("Invariant violation: %s", reason)
	r.State = StateFinished
	r.CurrentTurn = uuid.Nil
	r.finish = &GameFinishedPayload{Message: "Partida encerrada por erro interno."}
	r.broadcastPlayers()
	r.broadcast(GameEvent{Type: EventGameFinished, Payload: *r.finish})
}

func (r *Room) send(connID uuid.UUID, ev GameEvent) {
	if r.SendFn != nil {
		r.SendFn(connID, ev)
	}
}

func (r *Room) broadcast(ev GameEvent) {
	for _, p := range r.Players {
		r.send(p.ConnID, ev)
	}
}

func (r *Room) broadcastPlayers() {
	r.broadcast(GameEvent{Type: EventPlayersUpdate, Payload: PlayersUpdatePayload{Players: r.PlayerViews()}})
}

func (r *Room) broadcastDisplays() {
	for _, p := range r.Players {
		if _, ok := r.Challenges[p.ConnID]; ok {
			r.send(p.ConnID, GameEvent{Type: EventUpdateGameDisplay, Payload: r.DisplayFor(p.ConnID)})
		}
	}
}

func (r *Room) sendChatHistory(connID uuid.UUID) {
	for _, msg := range r.ChatHistory {
		r.send(connID, GameEvent{Type: EventNewChatMessage, Payload: msg})
	}
}

// logAction hands a round action to the sink. Actions outside a round are not
// recorded.
func (r *Room) logAction(actor, actionType string, payload map[string]interface{}) {
	if r.ActionSink == nil || r.RoundID == uuid.Nil {
		return
	}
	r.actionIndex++
	if payload == nil {
		payload = make(map[string]interface{})
	}
	r.ActionSink.Publish(cache.GameActionRecord{
		RoundID:       r.RoundID,
		RoomCode:      r.Code,
		ActionIndex:   r.actionIndex,
		ActorName:     actor,
		ActionType:    actionType,
		ActionPayload: payload,
		Timestamp:     r.now().UnixMilli(),
	})
}
