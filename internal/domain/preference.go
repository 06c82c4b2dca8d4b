package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

type TripType string

const (
	TripLeisure  TripType = "LEISURE"
	TripBusiness TripType = "BUSINESS"
)

const (
	MinTravelers = 1
	MaxTravelers = 9
)

type TravelDates struct {
	Start time.Time `json:"start" bson:"start"`
	End   time.Time `json:"end" bson:"end"`
}

// UnmarshalJSON accepts RFC 3339 timestamps or bare dates; clients send
// both.
func (d *TravelDates) UnmarshalJSON(b []byte) error {
	var raw struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var err error
	if raw.Start != "" {
		if d.Start, err = parseDate(raw.Start); err != nil {
			return fmt.Errorf("travelDates.start: %w", err)
		}
	}
	if raw.End != "" {
		if d.End, err = parseDate(raw.End); err != nil {
			return fmt.Errorf("travelDates.end: %w", err)
		}
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// Preference is the durable record of one trip request. The itinerary
// field is attached once by the pipeline and never mutated afterwards.
type Preference struct {
	ID                       string      `json:"id" bson:"_id,omitempty"`
	UserID                   string      `json:"userId" bson:"userId"`
	Email                    string      `json:"email" bson:"email"`
	TravelDates              TravelDates `json:"travelDates" bson:"travelDates"`
	Budget                   float64     `json:"budget" bson:"budget"`
	Interests                []string    `json:"interests,omitempty" bson:"interests,omitempty"`
	TransportPreferences     []string    `json:"transportPreferences,omitempty" bson:"transportPreferences,omitempty"`
	AccommodationPreferences []string    `json:"accommodationPreferences,omitempty" bson:"accommodationPreferences,omitempty"`
	Destination              string      `json:"destination,omitempty" bson:"destination,omitempty"`
	OriginCity               string      `json:"originCity,omitempty" bson:"originCity,omitempty"`
	OriginLocationCode       string      `json:"originLocationCode" bson:"originLocationCode"`
	DestinationLocationCode  string      `json:"destinationLocationCode" bson:"destinationLocationCode"`
	Travelers                int         `json:"travelers" bson:"travelers"`
	TripType                 TripType    `json:"tripType" bson:"tripType"`
	Itinerary                *Itinerary  `json:"itinerary,omitempty" bson:"itinerary,omitempty"`
	CreatedAt                time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt                time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// TripDays derives the itinerary length from the date span, minimum 1.
func (p Preference) TripDays() int {
	d := int(p.TravelDates.End.Sub(p.TravelDates.Start).Hours() / 24)
	if p.TravelDates.End.Sub(p.TravelDates.Start)%(24*time.Hour) != 0 {
		d++
	}
	if d < 1 {
		d = 1
	}
	return d
}

// PreferenceUpdate carries the restricted field subset a client may
// change after creation. Nil means "leave unchanged".
type PreferenceUpdate struct {
	Interests                []string
	Budget                   *float64
	TransportPreferences     []string
	AccommodationPreferences []string
}

func (u PreferenceUpdate) Empty() bool {
	return u.Interests == nil && u.Budget == nil &&
		u.TransportPreferences == nil && u.AccommodationPreferences == nil
}

var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

var (
	ErrNotFound  = errors.New("preference not found")
	ErrInvalidID = errors.New("invalid preference ID format")
)

// ValidateID enforces the 24-character hex identifier shape before any
// store lookup, so malformed ids become 400s rather than 404s.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}

// ValidateNew checks the intake invariants: required fields, future
// start, start strictly before end, bounded traveler count.
func (p Preference) ValidateNew(now time.Time) error {
	if p.UserID == "" || p.Email == "" || p.TravelDates.Start.IsZero() || p.TravelDates.End.IsZero() {
		return errors.New("missing required fields: userId, email, travelDates.start, travelDates.end")
	}
	if p.OriginLocationCode == "" || p.DestinationLocationCode == "" {
		return errors.New("missing required location codes for travel planning")
	}
	if !p.TravelDates.Start.Before(p.TravelDates.End) {
		return errors.New("end date must be after start date")
	}
	if p.TravelDates.Start.Before(now) {
		return errors.New("start date cannot be in the past")
	}
	if p.Budget < 0 {
		return errors.New("budget must be non-negative")
	}
	if p.Travelers < MinTravelers || p.Travelers > MaxTravelers {
		return fmt.Errorf("travelers must be between %d and %d", MinTravelers, MaxTravelers)
	}
	if p.TripType != TripLeisure && p.TripType != TripBusiness {
		return fmt.Errorf("tripType must be %s or %s", TripLeisure, TripBusiness)
	}
	return nil
}
