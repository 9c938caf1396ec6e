package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sprintline/internal/domain"
)

const dateLayout = "2006-01-02"

// SprintCreateOptions are parameters for creating a sprint.
type SprintCreateOptions struct {
	ID        string
	ProjectID string
	Name      string
	StartDate string
	EndDate   string
	Goal      string
	Capacity  int
}

func validateSprintFields(name, start, end string, capacity int) error {
	if strings.TrimSpace(name) == "" {
		return invalidInput("Le nom du sprint est obligatoire")
	}
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return invalidInput("Date de début invalide : %s", start)
	}
	en, err := time.Parse(dateLayout, end)
	if err != nil {
		return invalidInput("Date de fin invalide : %s", end)
	}
	if en.Before(s) {
		return invalidInput("La date de fin doit être postérieure à la date de début")
	}
	if capacity < 0 {
		return invalidInput("La capacité doit être positive ou nulle")
	}
	return nil
}

// CreateSprint plans a new sprint in a project.
func (e Engine) CreateSprint(ctx context.Context, token string, opts SprintCreateOptions) (domain.Sprint, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.Sprint{}, err
	}
	if err := validateSprintFields(opts.Name, opts.StartDate, opts.EndDate, opts.Capacity); err != nil {
		return domain.Sprint{}, err
	}
	var out domain.Sprint
	err = e.run(ctx, actor, func(o *op) error {
		if _, err := e.loadProject(ctx, o.tx, opts.ProjectID); err != nil {
			return err
		}
		s := domain.Sprint{
			ID:        opts.ID,
			ProjectID: opts.ProjectID,
			Name:      strings.TrimSpace(opts.Name),
			StartDate: opts.StartDate,
			EndDate:   opts.EndDate,
			Goal:      opts.Goal,
			Capacity:  opts.Capacity,
			Status:    domain.SprintPlanned,
			CreatedBy: actor,
			CreatedAt: o.ts(),
			UpdatedAt: o.ts(),
		}
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		out, err = e.Repo.InsertSprint(ctx, o.tx, s)
		if err != nil {
			return fmt.Errorf("insert sprint: %w", err)
		}
		o.record(domain.SubjectSprint, s.ID, domain.ActionCreate, "Sprint créé : "+s.Name)
		return nil
	})
	return out, err
}

// SprintUpdateOptions carries the fields to change; nil leaves a field as is.
type SprintUpdateOptions struct {
	ID        string
	ProjectID string
	Name      *string
	StartDate *string
	EndDate   *string
	Goal      *string
	Capacity  *int
	Version   int64
}

// UpdateSprint edits a sprint's planning fields. A new capacity must still
// hold the stories already assigned. Archived sprints are frozen.
func (e Engine) UpdateSprint(ctx context.Context, token string, opts SprintUpdateOptions) (domain.Sprint, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.Sprint{}, err
	}
	var out domain.Sprint
	err = e.run(ctx, actor, func(o *op) error {
		s, err := e.loadSprint(ctx, o.tx, opts.ProjectID, opts.ID)
		if err != nil {
			return err
		}
		if err := expectVersion(opts.Version, s.Version); err != nil {
			return err
		}
		if s.Status == domain.SprintArchived {
			return newError(ErrInvalidTransition, msgSprintArchived)
		}
		if opts.Name != nil {
			s.Name = strings.TrimSpace(*opts.Name)
		}
		if opts.StartDate != nil {
			s.StartDate = *opts.StartDate
		}
		if opts.EndDate != nil {
			s.EndDate = *opts.EndDate
		}
		if opts.Goal != nil {
			s.Goal = *opts.Goal
		}
		if opts.Capacity != nil {
			s.Capacity = *opts.Capacity
		}
		if err := validateSprintFields(s.Name, s.StartDate, s.EndDate, s.Capacity); err != nil {
			return err
		}
		res, err := e.checkCapacity(ctx, o.tx, s, "", 0)
		if err != nil {
			return err
		}
		if res == CapacityExceeded {
			return newError(ErrCapacityExceeded, msgSprintCapacityTooLow)
		}
		out, err = e.saveSprint(ctx, o, s)
		if err != nil {
			return err
		}
		o.record(domain.SubjectSprint, s.ID, domain.ActionUpdate, "Sprint mis à jour : "+s.Name)
		return nil
	})
	return out, err
}

// DeleteSprint removes a sprint and returns its stories to the backlog.
func (e Engine) DeleteSprint(ctx context.Context, token, projectID, sprintID string) error {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return err
	}
	return e.run(ctx, actor, func(o *op) error {
		s, err := e.loadSprint(ctx, o.tx, projectID, sprintID)
		if err != nil {
			return err
		}
		if err := e.returnToBacklog(ctx, o, s, true); err != nil {
			return err
		}
		if err := guard(e.Repo.DeleteSprint(ctx, o.tx, s)); err != nil {
			return err
		}
		o.record(domain.SubjectSprint, s.ID, domain.ActionDelete, "Sprint supprimé : "+s.Name)
		return nil
	})
}

// ActivateSprint starts a PLANNED sprint. Stories whose dependencies are all
// DONE move to IN_PROGRESS; the others keep their status.
func (e Engine) ActivateSprint(ctx context.Context, token, projectID, sprintID string) (domain.Sprint, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.Sprint{}, err
	}
	var out domain.Sprint
	err = e.run(ctx, actor, func(o *op) error {
		s, err := e.loadSprint(ctx, o.tx, projectID, sprintID)
		if err != nil {
			return err
		}
		if s.Status != domain.SprintPlanned {
			return newError(ErrInvalidTransition, msgActivateNotPlanned)
		}
		stories, err := e.Repo.ListUserStoriesBySprint(ctx, o.tx, s.ID)
		if err != nil {
			return err
		}
		for _, u := range stories {
			if u.Status == domain.StoryDone || u.Status == domain.StoryInProgress {
				continue
			}
			state, err := e.evaluateDependencies(ctx, o.tx, u)
			if err != nil {
				return err
			}
			if state != Unconstrained {
				continue
			}
			u.Status = domain.StoryInProgress
			if _, err := e.saveStory(ctx, o, u); err != nil {
				return err
			}
		}
		s.Status = domain.SprintActive
		out, err = e.saveSprint(ctx, o, s)
		if err != nil {
			return err
		}
		o.record(domain.SubjectSprint, s.ID, domain.ActionActivate, "Sprint activé : "+s.Name)
		return nil
	})
	return out, err
}

// sprintOver reports whether the sprint's last day has ended at now.
func sprintOver(s domain.Sprint, now time.Time) bool {
	end, err := time.ParseInLocation(dateLayout, s.EndDate, now.Location())
	if err != nil {
		return false
	}
	return !now.Before(end.AddDate(0, 0, 1))
}

// UpdateSprintStatus force-completes an ACTIVE sprint whose end date has
// passed. Unfinished stories go back to the backlog; DONE ones stay.
func (e Engine) UpdateSprintStatus(ctx context.Context, token, projectID, sprintID string) (domain.Sprint, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.Sprint{}, err
	}
	var out domain.Sprint
	err = e.run(ctx, actor, func(o *op) error {
		s, err := e.loadSprint(ctx, o.tx, projectID, sprintID)
		if err != nil {
			return err
		}
		out = s
		if s.Status != domain.SprintActive || !sprintOver(s, o.now.UTC()) {
			return nil
		}
		if err := e.returnToBacklog(ctx, o, s, false); err != nil {
			return err
		}
		s.Status = domain.SprintCompleted
		out, err = e.saveSprint(ctx, o, s)
		if err != nil {
			return err
		}
		o.record(domain.SubjectSprint, s.ID, domain.ActionUpdateStatus,
			fmt.Sprintf("Sprint terminé, date de fin dépassée (%s) : %s", s.EndDate, s.Name))
		return nil
	})
	return out, err
}

// CheckAndUpdateSprintStatus completes an ACTIVE sprint once every story in
// it is DONE. The stories stay in place.
func (e Engine) CheckAndUpdateSprintStatus(ctx context.Context, token, projectID, sprintID string) (domain.Sprint, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.Sprint{}, err
	}
	var out domain.Sprint
	err = e.run(ctx, actor, func(o *op) error {
		s, err := e.loadSprint(ctx, o.tx, projectID, sprintID)
		if err != nil {
			return err
		}
		out, err = e.completeIfAllDone(ctx, o, s)
		return err
	})
	return out, err
}

func (e Engine) completeIfAllDone(ctx context.Context, o *op, s domain.Sprint) (domain.Sprint, error) {
	if s.Status != domain.SprintActive {
		return s, nil
	}
	stories, err := e.Repo.ListUserStoriesBySprint(ctx, o.tx, s.ID)
	if err != nil {
		return s, err
	}
	if len(stories) == 0 {
		return s, nil
	}
	for _, u := range stories {
		if u.Status != domain.StoryDone {
			return s, nil
		}
	}
	s.Status = domain.SprintCompleted
	saved, err := e.saveSprint(ctx, o, s)
	if err != nil {
		return s, err
	}
	o.record(domain.SubjectSprint, s.ID, domain.ActionUpdateStatus, "Sprint terminé, toutes les User Stories sont terminées : "+s.Name)
	return saved, nil
}

// CancelSprint stops a PLANNED or ACTIVE sprint and returns all its stories
// to the backlog.
func (e Engine) CancelSprint(ctx context.Context, token, projectID, sprintID string) (domain.Sprint, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.Sprint{}, err
	}
	var out domain.Sprint
	err = e.run(ctx, actor, func(o *op) error {
		s, err := e.loadSprint(ctx, o.tx, projectID, sprintID)
		if err != nil {
			return err
		}
		switch s.Status {
		case domain.SprintCompleted, domain.SprintArchived, domain.SprintCanceled:
			return newError(ErrInvalidTransition, msgCancelFinished)
		}
		if err := e.returnToBacklog(ctx, o, s, true); err != nil {
			return err
		}
		s.Status = domain.SprintCanceled
		out, err = e.saveSprint(ctx, o, s)
		if err != nil {
			return err
		}
		o.record(domain.SubjectSprint, s.ID, domain.ActionCancel, "Sprint annulé : "+s.Name)
		return nil
	})
	return out, err
}

// ArchiveSprint retires a COMPLETED or CANCELED sprint.
func (e Engine) ArchiveSprint(ctx context.Context, token, projectID, sprintID string) (domain.Sprint, error) {
	actor, err := e.authenticate(ctx, token)
	if err != nil {
		return domain.Sprint{}, err
	}
	var out domain.Sprint
	err = e.run(ctx, actor, func(o *op) error {
		s, err := e.loadSprint(ctx, o.tx, projectID, sprintID)
		if err != nil {
			return err
		}
		if s.Status != domain.SprintCompleted && s.Status != domain.SprintCanceled {
			return newError(ErrInvalidTransition, msgArchiveNotFinished)
		}
		s.Status = domain.SprintArchived
		out, err = e.saveSprint(ctx, o, s)
		if err != nil {
			return err
		}
		o.record(domain.SubjectSprint, s.ID, domain.ActionArchive, "Sprint archivé : "+s.Name)
		return nil
	})
	return out, err
}

// returnToBacklog unassigns the sprint's stories and resets them to BACKLOG.
// With includeDone false, DONE stories stay in the sprint.
func (e Engine) returnToBacklog(ctx context.Context, o *op, s domain.Sprint, includeDone bool) error {
	stories, err := e.Repo.ListUserStoriesBySprint(ctx, o.tx, s.ID)
	if err != nil {
		return err
	}
	for _, u := range stories {
		if u.Status == domain.StoryDone && !includeDone {
			continue
		}
		u.SprintID = nil
		u.Status = domain.StoryBacklog
		if _, err := e.saveStory(ctx, o, u); err != nil {
			return err
		}
	}
	return nil
}
