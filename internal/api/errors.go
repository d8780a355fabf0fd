package api

import (
	"errors"

	"github.com/xaenox/tracely/internal/chat"
	"github.com/xaenox/tracely/internal/llm"
	"github.com/xaenox/tracely/internal/recommend"
	"github.com/xaenox/tracely/internal/storage"
)

// Kind is the failure class of an operation.
type Kind string

const (
	KindAuthenticationRequired Kind = "authentication_required"
	KindValidation             Kind = "validation_error"
	KindNotFound               Kind = "not_found"
	KindUpstreamModel          Kind = "upstream_model_failure"
	KindStorage                Kind = "storage_failure"
)

// Diagnostic error strings returned in the error field.
const (
	errAuthenticationRequired = "Authentication required"
	errInvalidMessageType     = "Invalid message type"
	errMissingFactFields      = "Missing fact_id or fact_text"
	errMissingFactID          = "Missing fact_id"
	errFactNotFound           = "Fact not found"
	errInvalidFactContent     = "Invalid fact content"
	errNoValidTags            = "No valid tags provided"
	errNoFacts                = "No facts available for this user"
	errParseResponse          = "Failed to parse AI response"
	errEmptyMessage           = "Missing message"
	errProfilesUnavailable    = "Profile storage not configured"
)

// User facing messages.
const (
	msgAuthenticationRequired = "Devi essere autenticato per usare questa funzione."
	msgProfileAuthRequired    = "Devi essere autenticato per salvare il profilo."
	msgInvalidMessageType     = "Tipo di messaggio non riconosciuto."
	msgProcessingError        = "Si è verificato un errore nell'elaborazione del messaggio."
	msgNoFactExtracted        = "L'input non contiene informazioni utili da salvare."
	msgSaveError              = "Errore nel salvare il fatto nel database."
	msgFactsUnavailable       = "Non è stato possibile recuperare i fatti. Riprova più tardi."
	msgMissingFields          = "Richiesta incompleta: specifica il fatto da modificare."
	msgFactNotFound           = "Il fatto richiesto non esiste più."
	msgInvalidFactContent     = "Il nuovo testo non contiene informazioni utili da salvare."
	msgFactUpdated            = "Fatto aggiornato con successo."
	msgFactDeleted            = "Fatto eliminato con successo."
	msgNoValidTags            = "Nessuna delle categorie selezionate è valida."
	msgNoFacts                = "Aggiungi alcuni fatti sulla tua partner per ricevere suggerimenti personalizzati."
	msgRecommendationFailure  = "Non sono riuscito a generare suggerimenti. Riprova."
	msgChatFailure            = "Mi dispiace, si è verificato un errore. Riprova."
	msgChatCleared            = "Conversazione cancellata. Rimossi %d messaggi."
	msgNoChat                 = "Nessuna conversazione attiva da cancellare."
	msgChatUnavailable        = "Non è stato possibile recuperare la conversazione."
	msgProfileSaved           = "Profilo utente salvato con successo."
	msgProfileError           = "Errore nel salvare il profilo utente."
	msgCardsUnavailable       = "Non è stato possibile generare le card. Riprova più tardi."
)

// Classify maps an error returned by the internal packages to its Kind.
func Classify(err error) Kind {
	var parseErr *recommend.ParseError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return KindNotFound
	case errors.Is(err, recommend.ErrNoValidTags),
		errors.Is(err, chat.ErrEmptyMessage):
		return KindValidation
	case errors.Is(err, llm.ErrTimeout),
		errors.Is(err, llm.ErrTransport),
		errors.Is(err, llm.ErrEmptyResponse),
		errors.As(err, &parseErr):
		return KindUpstreamModel
	default:
		return KindStorage
	}
}
