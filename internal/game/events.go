// internal/game/events.go
package game

// GameEventType names an outbound event.
type GameEventType string

const (
	EventJoinedRoom         GameEventType = "joined_room"
	EventPlayersUpdate      GameEventType = "players_update"
	EventStartChoosingWords GameEventType = "start_choosing_words"
	EventWordsSubmitted     GameEventType = "words_submitted"
	EventUpdateGameDisplay  GameEventType = "update_game_display"
	EventGameFinished       GameEventType = "game_finished"
	EventNewChatMessage     GameEventType = "new_chat_message"
	EventAnswerKey          GameEventType = "answer_key"
	EventLeftRoom           GameEventType = "left_room"
	EventRoomClosed         GameEventType = "room_closed"
	EventPong               GameEventType = "pong"
	EventError              GameEventType = "error"
)

// GameEvent is the envelope written to clients.
type GameEvent struct {
	Type    GameEventType `json:"type"`
	Payload interface{}   `json:"payload,omitempty"`
}

// --- Event Payload Struct Definitions ---

type JoinedRoomPayload struct {
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
	IsCreator  bool   `json:"is_creator"`
}

// PlayerView is one row of the player list shown in the lobby sidebar.
type PlayerView struct {
	Name          string `json:"name"`
	WordsChosen   bool   `json:"words_chosen"`
	IsCurrentTurn bool   `json:"is_current_turn"`
}

type PlayersUpdatePayload struct {
	Players []PlayerView `json:"players"`
}

type MessagePayload struct {
	Message string `json:"message"`
}

type WordsSubmittedPayload struct {
	PlayerName string `json:"player_name"`
	WaitingFor int    `json:"waiting_for"`
}

// ActionResult summarizes the last thing that happened in the round. Clients
// turn it into a toast.
type ActionResult struct {
	Type       string `json:"type"`
	PlayerName string `json:"player_name,omitempty"`
	Guess      string `json:"guess,omitempty"`
	Word       string `json:"word,omitempty"`
	WordIndex  int    `json:"word_index,omitempty"`
	Message    string `json:"message"`
}

// GameDisplay is the per-viewer board. Unsolved words are only ever sent as
// hints.
type GameDisplay struct {
	ViewingForPlayerName string        `json:"viewing_for_player_name"`
	KeywordToDisplay     string        `json:"keyword_to_display"`
	InitialsToDisplay    []string      `json:"initials_to_display"`
	WordsForProgress     []string      `json:"all_target_words_original_for_progress"`
	CompletedMask        []bool        `json:"completed_mask_for_progress"`
	ActiveWordIndex      int           `json:"active_word_idx_being_guessed"`
	CurrentHint          string        `json:"current_hint"`
	IsYourTurn           bool          `json:"is_your_turn"`
	LastActionResult     *ActionResult `json:"last_action_result,omitempty"`
}

type GameFinishedPayload struct {
	WinnerName         string   `json:"winner_name"`
	Message            string   `json:"message"`
	FinalWordsSequence []string `json:"final_words_sequence"`
	WasDisconnection   bool     `json:"was_disconnection"`
}

// ChatMessage is stored in the room history and broadcast as is.
type ChatMessage struct {
	PlayerName string `json:"player_name"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
}

type AnswerKeyPayload struct {
	WordsByPlayer map[string][]string `json:"words_by_player"`
}
