package planner

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"goplanit/internal/domain"
)

const (
	fallbackInterests     = "general sightseeing"
	fallbackTransport     = "public transport"
	fallbackAccommodation = "budget hotels"
)

const promptHeader = `You are a world-class professional travel planner AI with deep expertise in personalized trip planning.

Your task: Generate a detailed, day-by-day travel itinerary perfectly tailored to the user's preferences using REAL activity data.

REQUIREMENTS:
- Respond with a single JSON object only.
- Do NOT include any markdown syntax, code fences, comments, explanations, or extraneous text.
- PRIORITIZE using the real activities provided below in your itinerary
- Include actual booking links and location coordinates when available
- Strictly adhere to the following JSON schema:

{
  "destination": string,
  "days": [
    {
      "day": number,
      "activities": [
        {
          "time": string,
          "title": string,
          "description": string,
          "location"?: string,
          "link"?: string,
          "amadeusId"?: string,
          "rating"?: string,
          "price"?: { "amount": string, "currency": string },
          "coordinates"?: { "latitude": string, "longitude": string }
        }
      ]
    }
  ],
  "notes"?: string,
  "budgetTips"?: string[],
  "suggestedBookings"?: [
    { "type": "hotel" | "transport" | "activity", "name": string, "link": string }
  ]
}`

const promptFooter = `ADDITIONAL INSTRUCTIONS:
- Use the real activities provided above whenever possible
- Include amadeusId, rating, price, and coordinates for real activities
- Provide actual booking links from the activity data
- Suggest realistic timing and logistics between activities
- If information is unavailable, omit optional fields gracefully
- Ensure all dates and times are realistic and feasible within each day
- The "days" array MUST contain exactly the requested number of days, numbered sequentially from 1

Strictly output valid JSON only - no extra text.`

func joinOr(vals []string, fallback string) string {
	if len(vals) == 0 {
		return fallback
	}
	return strings.Join(vals, ", ")
}

// buildPrompt embeds the trip parameters and whatever enrichment data
// resolved, explicitly steering the model toward real data over
// invention.
func buildPrompt(pref domain.Preference, enr enrichment) string {
	var b strings.Builder
	b.WriteString(promptHeader)

	fmt.Fprintf(&b, "\n\nINPUT DETAILS:\n- Number of days: %d\n- Approximate budget: %.0f USD\n- Interests: %s\n- Transport preferences: %s\n- Accommodation preferences: %s",
		pref.TripDays(),
		pref.Budget,
		joinOr(pref.Interests, fallbackInterests),
		joinOr(pref.TransportPreferences, fallbackTransport),
		joinOr(pref.AccommodationPreferences, fallbackAccommodation),
	)

	if enr.city != nil {
		fmt.Fprintf(&b, "\n\nDESTINATION INFO: %s, %s (IATA: %s)",
			enr.city.Name, enr.city.CountryCode, enr.city.IATACode)
	}

	if enr.purpose != nil {
		conf := ""
		if p, err := strconv.ParseFloat(enr.purpose.Probability, 64); err == nil {
			conf = fmt.Sprintf(" (%d%% confidence)", int(math.Round(p*100)))
		}
		fmt.Fprintf(&b, "\n\nTRIP PURPOSE ANALYSIS: This trip is predicted to be %s%s",
			strings.ToLower(string(enr.purpose.Result)), conf)
	}

	if len(enr.activities) > 0 {
		b.WriteString("\n\nREAL AVAILABLE ACTIVITIES (use these in your itinerary):")
		for _, a := range enr.activities {
			fmt.Fprintf(&b, "\n- %s: %s (Rating: %s/5, Price: %s %s)",
				a.Name, a.Description, a.Rating, a.Price.Amount, a.Price.Currency)
		}
	}

	b.WriteString("\n\n")
	b.WriteString(promptFooter)
	return b.String()
}
