package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"goplanit/internal/domain"
)

// ValidationError marks intake failures the HTTP layer maps to 400.
type ValidationError struct{ msg string }

func (e ValidationError) Error() string { return e.msg }

func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Publisher hands a trigger to the pipeline dispatcher. Emission is
// synchronous (the trigger is queued before intake responds), execution
// is not.
type Publisher interface {
	Publish(ev domain.PreferenceCreatedEvent)
}

type CreatePreferenceInput struct {
	UserID                   string             `json:"userId"`
	Email                    string             `json:"email"`
	TravelDates              domain.TravelDates `json:"travelDates"`
	Budget                   float64            `json:"budget"`
	Interests                []string           `json:"interests"`
	TransportPreferences     []string           `json:"transportPreferences"`
	AccommodationPreferences []string           `json:"accommodationPreferences"`
	Destination              string             `json:"destination"`
	OriginCity               string             `json:"originCity"`
	OriginLocationCode       string             `json:"originLocationCode"`
	DestinationLocationCode  string             `json:"destinationLocationCode"`
	Travelers                int                `json:"travelers"`
	TripType                 string             `json:"tripType"`
}

type CreatePreferenceResult struct {
	ID                      string `json:"id"`
	Message                 string `json:"message"`
	EstimatedProcessingTime string `json:"estimatedProcessingTime"`
	StatusEndpoint          string `json:"statusEndpoint"`
}

type IntakeService struct {
	repo domain.PreferenceRepository
	pub  Publisher
}

func NewIntakeService(repo domain.PreferenceRepository, pub Publisher) *IntakeService {
	return &IntakeService{repo: repo, pub: pub}
}

// CreatePreference validates the request, persists it and triggers the
// itinerary pipeline. Validation failures never enter the pipeline.
func (s *IntakeService) CreatePreference(ctx context.Context, in CreatePreferenceInput) (CreatePreferenceResult, error) {
	pref := domain.Preference{
		UserID:                   in.UserID,
		Email:                    in.Email,
		TravelDates:              in.TravelDates,
		Budget:                   in.Budget,
		Interests:                in.Interests,
		TransportPreferences:     in.TransportPreferences,
		AccommodationPreferences: in.AccommodationPreferences,
		Destination:              in.Destination,
		OriginCity:               in.OriginCity,
		OriginLocationCode:       in.OriginLocationCode,
		DestinationLocationCode:  in.DestinationLocationCode,
		Travelers:                in.Travelers,
		TripType:                 domain.TripType(in.TripType),
	}
	if pref.Travelers == 0 {
		pref.Travelers = 1
	}
	if pref.TripType == "" {
		pref.TripType = domain.TripLeisure
	}
	if err := pref.ValidateNew(time.Now()); err != nil {
		return CreatePreferenceResult{}, ValidationError{msg: err.Error()}
	}

	id, err := s.repo.Create(ctx, pref)
	if err != nil {
		return CreatePreferenceResult{}, fmt.Errorf("create preference: %w", err)
	}

	s.pub.Publish(domain.PreferenceCreatedEvent{PreferenceID: id, UserID: pref.UserID})
	log.Info().Str("preference_id", id).Str("user_id", pref.UserID).Msg("preference created, pipeline triggered")

	return CreatePreferenceResult{
		ID:                      id,
		Message:                 "Preference saved; AI-powered itinerary with real travel data will be generated.",
		EstimatedProcessingTime: "2-3 minutes",
		StatusEndpoint:          "/preferences/" + id + "/status",
	}, nil
}

// UpdatePreference applies the restricted field subset. Dates, location
// codes and the itinerary are never client-mutable.
func (s *IntakeService) UpdatePreference(ctx context.Context, id string, u domain.PreferenceUpdate) (domain.Preference, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.Preference{}, err
	}
	if u.Budget != nil && *u.Budget < 0 {
		return domain.Preference{}, ValidationError{msg: "budget must be non-negative"}
	}
	return s.repo.UpdateFields(ctx, id, u)
}
