// internal/game/errors.go
package game

import "errors"

// ErrorKind classifies a GameError so the gateway can decide who hears about it.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindNotFound
	KindStateConflict
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStateConflict:
		return "state_conflict"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// GameError is a player-facing failure. Message is shown to the player as is.
type GameError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

// Is matches on Code so wrapped copies still compare equal to the sentinels.
func (e *GameError) Is(target error) bool {
	var ge *GameError
	if !errors.As(target, &ge) {
		return false
	}
	return e.Code == ge.Code
}

var (
	ErrInvalidName       = &GameError{KindValidation, "invalid_name", "Nome deve ter entre 2 e 20 caracteres"}
	ErrInvalidWordCount  = &GameError{KindValidation, "invalid_word_count", "Você deve enviar exatamente 5 palavras"}
	ErrInvalidWordLength = &GameError{KindValidation, "invalid_word_length", "Cada palavra deve ter entre 2 e 25 caracteres"}
	ErrEmptyGuess        = &GameError{KindValidation, "empty_guess", "Palpite vazio"}
	ErrEmptyMessage      = &GameError{KindValidation, "empty_message", "Mensagem vazia"}
	ErrMessageTooLong    = &GameError{KindValidation, "message_too_long", "Mensagem muito longa"}
	ErrUnknownEvent      = &GameError{KindValidation, "unknown_event", "Evento desconhecido"}
	ErrMalformedPayload  = &GameError{KindValidation, "malformed_payload", "Mensagem inválida"}

	ErrRoomNotFound = &GameError{KindNotFound, "room_not_found", "Sala não encontrada"}
	ErrNotInRoom    = &GameError{KindNotFound, "not_in_room", "Você não está em uma sala"}

	ErrRoomFull        = &GameError{KindStateConflict, "room_full", "Sala cheia"}
	ErrNameTaken       = &GameError{KindStateConflict, "name_taken", "Já existe um jogador com esse nome na sala"}
	ErrAlreadyInRoom   = &GameError{KindStateConflict, "already_in_room", "Você já está em uma sala"}
	ErrRoomClosed      = &GameError{KindStateConflict, "room_closed", "Sala encerrada"}
	ErrWordsLocked     = &GameError{KindStateConflict, "words_locked", "As palavras não podem ser alteradas agora"}
	ErrNotYourTurn     = &GameError{KindStateConflict, "not_your_turn", "Não é sua vez!"}
	ErrGameNotActive   = &GameError{KindStateConflict, "game_not_active", "O jogo não está em andamento"}
	ErrGameNotFinished = &GameError{KindStateConflict, "game_not_finished", "O jogo ainda não terminou"}

	ErrInternal = &GameError{KindInternal, "internal", "Erro interno do servidor"}
)

// KindOf returns the kind of the first GameError in err's chain. Errors that
// are not GameErrors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}
