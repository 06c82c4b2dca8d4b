package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"goplanit/internal/adapters/observability"
	"goplanit/internal/app"
	"goplanit/internal/domain"
)

// Runner executes one pipeline run: the strict step sequence that turns
// a stored preference into a persisted itinerary. Steps are safe to
// re-run; a retried run that finds the generation already cached or the
// itinerary already persisted simply repeats the writes with identical
// values (last-writer-wins, same payload).
type Runner struct {
	repo        domain.PreferenceRepository
	gen         domain.ItineraryGenerator
	mail        domain.Mailer
	status      *app.StatusWriter
	frontendURL string
}

func NewRunner(repo domain.PreferenceRepository, gen domain.ItineraryGenerator, mail domain.Mailer, status *app.StatusWriter, frontendURL string) *Runner {
	return &Runner{repo: repo, gen: gen, mail: mail, status: status, frontendURL: frontendURL}
}

// Run performs the step sequence for one trigger. Any returned error is
// retryable by the dispatcher; the error status has already been
// written to the cache by then.
func (r *Runner) Run(ctx context.Context, ev domain.PreferenceCreatedEvent) error {
	id := ev.PreferenceID

	r.status.Set(ctx, id, domain.ProcessingStatus{
		Status: domain.StatusStarted, Progress: 10, Message: "Itinerary generation started.",
	})

	var pref domain.Preference
	if err := r.step(ctx, id, "fetch-preference", func(ctx context.Context) error {
		var err error
		pref, err = r.repo.FindByID(ctx, id)
		return err
	}); err != nil {
		return err
	}

	r.status.Set(ctx, id, domain.ProcessingStatus{
		Status: domain.StatusGenerating, Progress: 30, Message: "Fetching travel data...",
	})

	var itinerary domain.Itinerary
	if err := r.step(ctx, id, "generate-itinerary", func(ctx context.Context) error {
		var err error
		itinerary, err = r.gen.Generate(ctx, pref)
		return err
	}); err != nil {
		return err
	}

	r.status.Set(ctx, id, domain.ProcessingStatus{
		Status: domain.StatusGenerating, Progress: 50, Message: "Itinerary generated.",
	})
	r.status.Set(ctx, id, domain.ProcessingStatus{
		Status: domain.StatusSaving, Progress: 80, Message: "Saving itinerary...",
	})

	if err := r.step(ctx, id, "save-itinerary", func(ctx context.Context) error {
		_, err := r.repo.UpdateItinerary(ctx, id, itinerary)
		return err
	}); err != nil {
		return err
	}

	// Decoupled from the run outcome: the itinerary is already durable,
	// and re-running the whole sequence to resend an email would drag a
	// completed preference back to in-progress.
	if err := r.notify(ctx, pref, itinerary); err != nil {
		log.Warn().Str("preference_id", id).Err(err).Msg("notification failed")
	}

	r.status.Clear(ctx, id)
	return nil
}

func (r *Runner) step(ctx context.Context, id, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	if err != nil {
		observability.ObservePipelineStep(name, "error", time.Since(start))
		log.Error().Str("preference_id", id).Str("step", name).Err(err).Msg("pipeline step failed")
		r.status.Set(ctx, id, domain.ProcessingStatus{
			Status:   domain.StatusError,
			Progress: 0,
			Message:  "Itinerary generation failed.",
			Error:    err.Error(),
		})
		return fmt.Errorf("step %s: %w", name, err)
	}
	observability.ObservePipelineStep(name, "ok", time.Since(start))
	return nil
}

func (r *Runner) notify(ctx context.Context, pref domain.Preference, it domain.Itinerary) error {
	if pref.Email == "" {
		return nil
	}
	dest := it.Destination
	if dest == "" {
		dest = pref.DestinationLocationCode
	}
	subject := fmt.Sprintf("Your %s itinerary is ready!", dest)
	body := fmt.Sprintf(
		"Hello,\n\n"+
			"Your personalized %d-day itinerary for %s has been generated and is ready for review.\n\n"+
			"View it here: %s/itinerary/%s\n\n"+
			"Safe travels!\n\nThe GoPlanIt Team",
		len(it.Days), dest, r.frontendURL, pref.ID,
	)
	return r.mail.Send(ctx, pref.Email, subject, body)
}
