package domain

import (
	"context"
	"time"
)

type PreferenceRepository interface {
	// Write paths
	Create(ctx context.Context, p Preference) (string, error)
	UpdateItinerary(ctx context.Context, id string, it Itinerary) (Preference, error)
	UpdateFields(ctx context.Context, id string, u PreferenceUpdate) (Preference, error)

	// Read paths. Once UpdateItinerary returns, FindByID observes the
	// itinerary (read-after-write on the same id).
	FindByID(ctx context.Context, id string) (Preference, error)
	ListByUser(ctx context.Context, userID string, pg PageQuery) (PreferencesPage, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// GetOrCompute serves key from cache when present, otherwise computes
// the value, back-fills the cache and returns it. Cache failures are
// ignored on both sides; only compute errors propagate.
func GetOrCompute[T any](ctx context.Context, c Cache, key string, ttlSec int, compute func(context.Context) (T, error)) (T, error) {
	var cached T
	if ok, err := c.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	fresh, err := compute(ctx)
	if err != nil {
		return fresh, err
	}
	_ = c.Set(ctx, key, fresh, ttlSec)
	return fresh, nil
}

// TravelDataClient is the gateway to the external travel-data provider.
// Every method may fail independently; callers absorb single-lookup
// failures and proceed with whatever resolved.
type TravelDataClient interface {
	SearchCitiesBatch(ctx context.Context, queries []string) ([]*CityInfo, error)
	SearchActivities(ctx context.Context, lat, lon float64, radiusKM int) ([]AvailableActivity, error)
	PredictTripPurpose(ctx context.Context, originCode, destCode string, departure, ret time.Time) (*TripPurpose, error)
	SearchTransfers(ctx context.Context, q TransferQuery) ([]TransferOption, error)
}

type TransferQuery struct {
	StartLocationCode string
	EndCityName       string
	EndCountryCode    string
	TransferType      string
	StartDateTime     time.Time
	Passengers        int
}

// TextGenerator is the single-shot generative-model call. The returned
// text may still be wrapped in a markdown code fence.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// ItineraryGenerator produces a validated plan for a preference,
// reusing a cached result for the same preference id within the TTL.
type ItineraryGenerator interface {
	Generate(ctx context.Context, pref Preference) (Itinerary, error)
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Read models & queries

type PageQuery struct {
	Page  int
	Limit int
}

type PreferencesPage struct {
	Items []Preference
	Total int64
}
