package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"goplanit/internal/domain"
)

const activityRadiusKM = 20

// Generator builds a prompt from a preference plus gateway enrichment,
// invokes the generative model and validates the plan it returns. The
// model is non-deterministic, so results are cached by preference id;
// pipeline retries within the TTL reuse the first successful plan.
type Generator struct {
	llm    domain.TextGenerator
	travel domain.TravelDataClient
	cache  domain.Cache
	ttlSec int
}

func New(llm domain.TextGenerator, travel domain.TravelDataClient, cache domain.Cache, ttlSec int) *Generator {
	return &Generator{llm: llm, travel: travel, cache: cache, ttlSec: ttlSec}
}

type enrichment struct {
	city       *domain.CityInfo
	activities []domain.AvailableActivity
	purpose    *domain.TripPurpose
	transfers  []domain.TransferOption
}

func (g *Generator) Generate(ctx context.Context, pref domain.Preference) (domain.Itinerary, error) {
	key := "itinerary:" + pref.ID
	var cached domain.Itinerary
	if ok, _ := g.cache.Get(ctx, key, &cached); ok {
		return cached, nil
	}

	enr := g.enrich(ctx, pref)

	text, err := g.llm.GenerateContent(ctx, buildPrompt(pref, enr))
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("generate itinerary: %w", err)
	}

	plan, err := parsePlan(text)
	if err != nil {
		return domain.Itinerary{}, err
	}
	if plan.Destination == "" {
		plan.Destination = destinationName(pref, enr)
	}
	if err := plan.Validate(pref.TripDays()); err != nil {
		return domain.Itinerary{}, fmt.Errorf("AI returned invalid itinerary structure: %w", err)
	}

	// Merge resolved enrichment only; unresolved fields stay absent.
	if enr.city != nil {
		plan.CityInfo = enr.city
	}
	if enr.purpose != nil {
		plan.TripPurpose = enr.purpose
	}
	if len(enr.activities) > 0 {
		plan.AvailableActivities = enr.activities
	}
	if len(enr.transfers) > 0 {
		plan.TransferOptions = enr.transfers
	}

	_ = g.cache.Set(ctx, key, plan, g.ttlSec)
	return plan, nil
}

// enrich fans out to the travel-data gateway. Every lookup may fail
// independently; the result carries whatever resolved. Generation never
// depends on enrichment, only improves with it.
func (g *Generator) enrich(ctx context.Context, pref domain.Preference) enrichment {
	var enr enrichment
	dest := destinationQuery(pref)
	if dest == "" {
		return enr
	}

	var wg sync.WaitGroup

	// city, then the lookups that need its coordinates
	wg.Add(1)
	go func() {
		defer wg.Done()
		cities, err := g.travel.SearchCitiesBatch(ctx, []string{dest})
		if err != nil || len(cities) == 0 || cities[0] == nil {
			if err != nil {
				log.Warn().Str("destination", dest).Err(err).Msg("city enrichment failed")
			}
			return
		}
		enr.city = cities[0]

		acts, err := g.travel.SearchActivities(ctx, enr.city.Latitude, enr.city.Longitude, activityRadiusKM)
		if err != nil {
			log.Warn().Str("destination", dest).Err(err).Msg("activities enrichment failed")
		} else {
			enr.activities = acts
		}

		if pref.OriginLocationCode != "" {
			offers, err := g.travel.SearchTransfers(ctx, domain.TransferQuery{
				StartLocationCode: pref.OriginLocationCode,
				EndCityName:       enr.city.Name,
				EndCountryCode:    enr.city.CountryCode,
				TransferType:      "PRIVATE",
				StartDateTime:     pref.TravelDates.Start,
				Passengers:        pref.Travelers,
			})
			if err != nil {
				log.Warn().Str("destination", dest).Err(err).Msg("transfer enrichment failed")
			} else {
				enr.transfers = offers
			}
		}
	}()

	if pref.OriginLocationCode != "" && pref.DestinationLocationCode != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			purpose, err := g.travel.PredictTripPurpose(ctx,
				pref.OriginLocationCode, pref.DestinationLocationCode,
				pref.TravelDates.Start, pref.TravelDates.End)
			if err != nil {
				log.Warn().Err(err).Msg("trip purpose enrichment failed")
				return
			}
			enr.purpose = purpose
		}()
	}

	wg.Wait()
	return enr
}

func destinationQuery(pref domain.Preference) string {
	if pref.Destination != "" {
		return pref.Destination
	}
	return pref.DestinationLocationCode
}

func destinationName(pref domain.Preference, enr enrichment) string {
	if enr.city != nil && enr.city.Name != "" {
		return enr.city.Name
	}
	if pref.Destination != "" {
		return pref.Destination
	}
	return pref.DestinationLocationCode
}

var fenceRe = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)\\s*```")

// stripFence removes a markdown code-fence wrapper when the model adds
// one despite being told not to.
func stripFence(text string) string {
	if m := fenceRe.FindStringSubmatch(text); len(m) == 2 && m[1] != "" {
		return m[1]
	}
	return strings.TrimSpace(text)
}

func parsePlan(text string) (domain.Itinerary, error) {
	var plan domain.Itinerary
	if err := json.Unmarshal([]byte(stripFence(text)), &plan); err != nil {
		return domain.Itinerary{}, fmt.Errorf("failed to parse itinerary JSON from AI response: %w", err)
	}
	if plan.Days == nil {
		return domain.Itinerary{}, fmt.Errorf("AI returned invalid itinerary structure: missing days")
	}
	return plan, nil
}
