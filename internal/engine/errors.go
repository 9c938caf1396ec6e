package engine

import (
	"errors"
	"fmt"
)

// Error kinds. Every *Error unwraps to exactly one of them.
var (
	ErrInvalidAuthentication = errors.New("invalid authentication")
	ErrNotFound              = errors.New("not found")
	ErrInvalidOwnership      = errors.New("invalid ownership")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrCapacityExceeded      = errors.New("capacity exceeded")
	ErrUpdateConflict        = errors.New("update conflict")
	ErrInvalidInput          = errors.New("invalid input")
)

// Messages are part of the public contract; clients match on them.
const (
	msgInvalidAuthentication = "Token invalide ou utilisateur non identifié"
	msgSprintNotFound        = "Sprint non trouvé avec l'ID: %s"
	msgUserStoryNotFound     = "User Story non trouvée avec l'ID: %s"
	msgProjectNotFound       = "Projet non trouvé avec l'ID: %s"
	msgDependencyNotFound    = "Dépendance non trouvée : %s"
	msgSprintOwnership       = "Le Sprint n'appartient pas à ce projet"
	msgUserStoryOwnership    = "La User Story n'appartient pas à ce projet"
	msgActivateNotPlanned    = "Seul un sprint planifié (PLANNED) peut être activé"
	msgCancelFinished        = "Impossible d'annuler un sprint déjà terminé ou archivé"
	msgArchiveNotFinished    = "Seuls les sprints terminés ou annulés peuvent être archivés"
	msgSprintArchived        = "Un sprint archivé ne peut plus être modifié"
	msgBlockedWithoutDeps    = "Une US ne peut être BLOCKED sans dépendances non terminées"
	msgAssignClosedSprint    = "Impossible d'assigner une User Story à un sprint terminé, annulé ou archivé"
	msgNotInSprint           = "La User Story n'est assignée à aucun sprint"
	msgCapacityExceeded      = "La capacité du sprint est insuffisante pour cette User Story"
	msgSprintCapacityTooLow  = "La capacité du sprint est insuffisante pour les User Stories assignées"
	msgUpdateConflict        = "Conflit de mise à jour détecté. Veuillez réessayer."
)

// Error is a domain failure with a fixed, user-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Message: msg}
}

func invalidInput(format string, args ...any) *Error {
	return newError(ErrInvalidInput, format, args...)
}

func conflict() *Error {
	return newError(ErrUpdateConflict, msgUpdateConflict)
}
