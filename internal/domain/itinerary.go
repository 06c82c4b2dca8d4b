package domain

import "fmt"

type Price struct {
	Amount   string `json:"amount" bson:"amount"`
	Currency string `json:"currency" bson:"currency"`
}

type Coordinates struct {
	Latitude  string `json:"latitude" bson:"latitude"`
	Longitude string `json:"longitude" bson:"longitude"`
}

type Activity struct {
	Time        string       `json:"time" bson:"time"`
	Title       string       `json:"title" bson:"title"`
	Description string       `json:"description" bson:"description"`
	Location    string       `json:"location,omitempty" bson:"location,omitempty"`
	Link        string       `json:"link,omitempty" bson:"link,omitempty"`
	ProviderID  string       `json:"amadeusId,omitempty" bson:"amadeusId,omitempty"`
	Rating      string       `json:"rating,omitempty" bson:"rating,omitempty"`
	Price       *Price       `json:"price,omitempty" bson:"price,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty" bson:"coordinates,omitempty"`
}

type Day struct {
	Day        int        `json:"day" bson:"day"`
	Activities []Activity `json:"activities" bson:"activities"`
}

type SuggestedBooking struct {
	Type string `json:"type" bson:"type"` // hotel | transport | activity
	Name string `json:"name" bson:"name"`
	Link string `json:"link" bson:"link"`
}

type CityInfo struct {
	Name        string  `json:"name" bson:"name"`
	IATACode    string  `json:"iataCode" bson:"iataCode"`
	CountryCode string  `json:"countryCode" bson:"countryCode"`
	StateCode   string  `json:"stateCode,omitempty" bson:"stateCode,omitempty"`
	Latitude    float64 `json:"latitude" bson:"latitude"`
	Longitude   float64 `json:"longitude" bson:"longitude"`
}

type TripPurpose struct {
	Result      TripType `json:"result" bson:"result"`
	Probability string   `json:"probability" bson:"probability"`
}

type AvailableActivity struct {
	ID          string      `json:"id" bson:"id"`
	Name        string      `json:"name" bson:"name"`
	Description string      `json:"description" bson:"description"`
	Rating      string      `json:"rating" bson:"rating"`
	Price       Price       `json:"price" bson:"price"`
	Coordinates Coordinates `json:"coordinates" bson:"coordinates"`
	BookingLink string      `json:"bookingLink" bson:"bookingLink"`
}

type Vehicle struct {
	Description string `json:"description" bson:"description"`
	Seats       int    `json:"seats" bson:"seats"`
}

type Distance struct {
	Value float64 `json:"value" bson:"value"`
	Unit  string  `json:"unit" bson:"unit"`
}

type TransferOption struct {
	ID           string   `json:"id" bson:"id"`
	TransferType string   `json:"transferType" bson:"transferType"`
	Price        Price    `json:"price" bson:"price"`
	Vehicle      Vehicle  `json:"vehicle" bson:"vehicle"`
	Distance     Distance `json:"distance" bson:"distance"`
}

// Itinerary is the generated day-by-day plan. Enrichment fields are
// present only when the corresponding lookup actually resolved.
type Itinerary struct {
	Destination         string              `json:"destination" bson:"destination"`
	Days                []Day               `json:"days" bson:"days"`
	Notes               string              `json:"notes,omitempty" bson:"notes,omitempty"`
	BudgetTips          []string            `json:"budgetTips,omitempty" bson:"budgetTips,omitempty"`
	SuggestedBookings   []SuggestedBooking  `json:"suggestedBookings,omitempty" bson:"suggestedBookings,omitempty"`
	CityInfo            *CityInfo           `json:"cityInfo,omitempty" bson:"cityInfo,omitempty"`
	TripPurpose         *TripPurpose        `json:"tripPurpose,omitempty" bson:"tripPurpose,omitempty"`
	AvailableActivities []AvailableActivity `json:"availableActivities,omitempty" bson:"availableActivities,omitempty"`
	TransferOptions     []TransferOption    `json:"transferOptions,omitempty" bson:"transferOptions,omitempty"`
}

// Validate enforces the structural invariants of a generated plan:
// the day count must match the trip span and day indices must run
// 1..N without gaps.
func (it Itinerary) Validate(wantDays int) error {
	if len(it.Days) == 0 {
		return fmt.Errorf("itinerary has no days")
	}
	if len(it.Days) != wantDays {
		return fmt.Errorf("itinerary has %d days, want %d", len(it.Days), wantDays)
	}
	for i, d := range it.Days {
		if d.Day != i+1 {
			return fmt.Errorf("day %d has index %d, want %d", i, d.Day, i+1)
		}
		for j, a := range d.Activities {
			if a.Time == "" || a.Title == "" {
				return fmt.Errorf("day %d activity %d is missing time or title", d.Day, j)
			}
		}
	}
	return nil
}
