package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sprintline/internal/domain"
	"sprintline/internal/repo"
)

// Notifier receives entries once they are stored. Implementations must not block.
type Notifier interface {
	Notify(entry domain.HistoryEntry)
}

// Recorder appends audit entries after the change they describe has been
// committed. A failed write is logged and dropped; it never undoes the change.
type Recorder struct {
	Repo     repo.Repo
	Notifier Notifier
	Log      zerolog.Logger
}

func (r Recorder) Record(ctx context.Context, entries ...domain.HistoryEntry) {
	for _, h := range entries {
		if err := r.Repo.InsertHistory(ctx, nil, h); err != nil {
			r.Log.Error().Err(err).
				Str("subject_kind", string(h.SubjectKind)).
				Str("subject_id", h.SubjectID).
				Str("action", string(h.Action)).
				Msg("history: record failed")
			continue
		}
		r.Log.Debug().Str("subject_id", h.SubjectID).Str("action", string(h.Action)).Str("actor", h.ActorID).Msg("history: recorded")
		if r.Notifier != nil {
			r.Notifier.Notify(h)
		}
	}
}

// NewEntry builds an entry with a fresh id, timestamped at now.
func NewEntry(kind domain.SubjectKind, subjectID string, action domain.Action, actorID, description string, now time.Time) domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:          uuid.NewString(),
		SubjectKind: kind,
		SubjectID:   subjectID,
		Action:      action,
		ActorID:     actorID,
		Description: description,
		TS:          now.UTC().Format(time.RFC3339),
	}
}
