package amadeus

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"goplanit/internal/adapters/observability"
	"goplanit/internal/domain"
)

const tokenCacheKey = "amadeus:token"

// tokenExpiryBuffer keeps us from racing the provider's stated expiry.
const tokenExpiryBuffer = 60 * time.Second

type TTLs struct {
	City        int // seconds; city identity is stable, long TTL
	Activities  int
	TripPurpose int
}

type Client struct {
	base   string
	hc     *http.Client
	id     string
	secret string
	rl     *rate.Limiter
	cache  domain.Cache
	ttl    TTLs

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

func New(base, id, secret string, rps int, cache domain.Cache, ttl TTLs) (*Client, error) {
	if id == "" || secret == "" {
		return nil, fmt.Errorf("amadeus credentials are required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base:   base,
		hc:     &http.Client{Timeout: 20 * time.Second},
		id:     id,
		secret: secret,
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
		cache:  cache,
		ttl:    ttl,
	}, nil
}

var (
	ErrNotFound     = errors.New("amadeus: not found")
	ErrUnauthorized = errors.New("amadeus: unauthorized")
)

// ---- token lifecycle ----

type cachedToken struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

// accessToken returns the in-process bearer credential, falling back to
// the shared cache before requesting a fresh exchange, so concurrent
// workers do not hammer the token endpoint.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	now := time.Now()

	c.mu.Lock()
	if c.token != "" && now.Before(c.tokenExp) {
		tok := c.token
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()

	var ct cachedToken
	if ok, _ := c.cache.Get(ctx, tokenCacheKey, &ct); ok && now.Before(ct.Expiry) {
		c.mu.Lock()
		c.token, c.tokenExp = ct.Token, ct.Expiry
		c.mu.Unlock()
		return ct.Token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.id},
		"client_secret": {c.secret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/v1/security/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("amadeus token exchange: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("amadeus", "oauth2/token", resp.StatusCode, time.Since(start))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("amadeus token exchange: status %d", resp.StatusCode)
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("amadeus token decode: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("amadeus token exchange: empty access_token")
	}

	exp := now.Add(time.Duration(tr.ExpiresIn)*time.Second - tokenExpiryBuffer)
	c.mu.Lock()
	c.token, c.tokenExp = tr.AccessToken, exp
	c.mu.Unlock()
	if ttl := tr.ExpiresIn - int(tokenExpiryBuffer.Seconds()); ttl > 0 {
		_ = c.cache.Set(ctx, tokenCacheKey, cachedToken{Token: tr.AccessToken, Expiry: exp}, ttl)
	}
	return tr.AccessToken, nil
}

// ---- wire types ----

// num tolerates the provider sending numeric fields as either JSON
// numbers or strings (the sandbox does both).
type num string

func (n *num) UnmarshalJSON(b []byte) error {
	*n = num(strings.Trim(string(b), `"`))
	return nil
}

func (n num) String() string { return string(n) }

func (n num) Float() float64 {
	f, _ := strconv.ParseFloat(string(n), 64)
	return f
}

type geoCode struct {
	Latitude  num `json:"latitude"`
	Longitude num `json:"longitude"`
}

type cityResp struct {
	Name     string `json:"name"`
	IATACode string `json:"iataCode"`
	Address  struct {
		CountryCode string `json:"countryCode"`
		StateCode   string `json:"stateCode"`
	} `json:"address"`
	GeoCode geoCode `json:"geoCode"`
}

type activityResp struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	ShortDescription string  `json:"shortDescription"`
	GeoCode          geoCode `json:"geoCode"`
	Rating           num     `json:"rating"`
	BookingLink      string  `json:"bookingLink"`
	Price            struct {
		Amount       num    `json:"amount"`
		CurrencyCode string `json:"currencyCode"`
	} `json:"price"`
}

type purposeResp struct {
	Result      string `json:"result"`
	Probability num    `json:"probability"`
}

type transferResp struct {
	ID           string `json:"id"`
	TransferType string `json:"transferType"`
	Quotation    struct {
		MonetaryAmount num    `json:"monetaryAmount"`
		CurrencyCode   string `json:"currencyCode"`
	} `json:"quotation"`
	Vehicle struct {
		Description string `json:"description"`
		Seats       []struct {
			Count int `json:"count"`
		} `json:"seats"`
	} `json:"vehicle"`
	Distance struct {
		Value float64 `json:"value"`
		Unit  string  `json:"unit"`
	} `json:"distance"`
}

// ---- public API ----

// SearchCitiesBatch resolves each destination string to a city record.
// Cached entries are served first; the rest are fetched concurrently.
// A failed slot yields nil rather than failing the batch.
func (c *Client) SearchCitiesBatch(ctx context.Context, queries []string) ([]*domain.CityInfo, error) {
	results := make([]*domain.CityInfo, len(queries))
	keys := make([]string, len(queries))

	var missIdx []int
	for i, q := range queries {
		keys[i] = "amadeus:city:" + strings.ToLower(q)
		var ci domain.CityInfo
		if ok, _ := c.cache.Get(ctx, keys[i], &ci); ok {
			results[i] = &ci
			continue
		}
		missIdx = append(missIdx, i)
	}

	var wg sync.WaitGroup
	for _, i := range missIdx {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ci, err := c.searchCitySingle(ctx, queries[i])
			if err != nil {
				log.Warn().Str("query", queries[i]).Err(err).Msg("city search failed")
				return
			}
			if ci != nil {
				results[i] = ci
				_ = c.cache.Set(ctx, keys[i], *ci, c.ttl.City)
			}
		}(i)
	}
	wg.Wait()

	return results, nil
}

func (c *Client) searchCitySingle(ctx context.Context, query string) (*domain.CityInfo, error) {
	var out struct {
		Data []cityResp `json:"data"`
	}
	q := url.Values{"keyword": {query}, "max": {"1"}}
	if err := c.get(ctx, "/v1/reference-data/locations/cities", q, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, nil
	}
	d := out.Data[0]
	return &domain.CityInfo{
		Name:        d.Name,
		IATACode:    d.IATACode,
		CountryCode: d.Address.CountryCode,
		StateCode:   d.Address.StateCode,
		Latitude:    d.GeoCode.Latitude.Float(),
		Longitude:   d.GeoCode.Longitude.Float(),
	}, nil
}

// SearchActivities looks up nearby activities, cached by location and
// radius with the cache back-filled on miss.
func (c *Client) SearchActivities(ctx context.Context, lat, lon float64, radiusKM int) ([]domain.AvailableActivity, error) {
	key := fmt.Sprintf("amadeus:activities:%g:%g:%d", lat, lon, radiusKM)
	return domain.GetOrCompute(ctx, c.cache, key, c.ttl.Activities, func(ctx context.Context) ([]domain.AvailableActivity, error) {
		var out struct {
			Data []activityResp `json:"data"`
		}
		q := url.Values{
			"latitude":  {strconv.FormatFloat(lat, 'f', -1, 64)},
			"longitude": {strconv.FormatFloat(lon, 'f', -1, 64)},
			"radius":    {strconv.Itoa(radiusKM)},
		}
		if err := c.get(ctx, "/v1/shopping/activities", q, &out); err != nil {
			return nil, err
		}
		acts := make([]domain.AvailableActivity, 0, len(out.Data))
		for _, a := range out.Data {
			acts = append(acts, domain.AvailableActivity{
				ID:          a.ID,
				Name:        a.Name,
				Description: a.ShortDescription,
				Rating:      a.Rating.String(),
				Price:       domain.Price{Amount: a.Price.Amount.String(), Currency: a.Price.CurrencyCode},
				Coordinates: domain.Coordinates{
					Latitude:  a.GeoCode.Latitude.String(),
					Longitude: a.GeoCode.Longitude.String(),
				},
				BookingLink: a.BookingLink,
			})
		}
		return acts, nil
	})
}

// PredictTripPurpose classifies a route as leisure or business. Routes
// change slowly, so the prediction is cached for a week.
func (c *Client) PredictTripPurpose(ctx context.Context, originCode, destCode string, departure, ret time.Time) (*domain.TripPurpose, error) {
	key := fmt.Sprintf("trip-purpose:%s:%s", originCode, destCode)
	return domain.GetOrCompute(ctx, c.cache, key, c.ttl.TripPurpose, func(ctx context.Context) (*domain.TripPurpose, error) {
		var out struct {
			Data purposeResp `json:"data"`
		}
		q := url.Values{
			"originLocationCode":      {originCode},
			"destinationLocationCode": {destCode},
			"departureDate":           {departure.Format("2006-01-02")},
		}
		if !ret.IsZero() {
			q.Set("returnDate", ret.Format("2006-01-02"))
		}
		if err := c.get(ctx, "/v1/travel/predictions/trip-purpose", q, &out); err != nil {
			return nil, err
		}
		if out.Data.Result == "" {
			return nil, nil
		}
		return &domain.TripPurpose{
			Result:      domain.TripType(out.Data.Result),
			Probability: out.Data.Probability.String(),
		}, nil
	})
}

// SearchTransfers fetches private transfer offers between the origin
// location and the destination city. Not cached: offers are priced per
// departure time.
func (c *Client) SearchTransfers(ctx context.Context, tq domain.TransferQuery) ([]domain.TransferOption, error) {
	body := map[string]any{
		"startLocationCode": tq.StartLocationCode,
		"endCityName":       tq.EndCityName,
		"endCountryCode":    tq.EndCountryCode,
		"transferType":      tq.TransferType,
		"startDateTime":     tq.StartDateTime.Format(time.RFC3339),
		"passengers":        tq.Passengers,
	}
	var out struct {
		Data []transferResp `json:"data"`
	}
	if err := c.post(ctx, "/v1/shopping/transfer-offers", body, &out); err != nil {
		return nil, err
	}
	offers := make([]domain.TransferOption, 0, len(out.Data))
	for _, tr := range out.Data {
		seats := 0
		if len(tr.Vehicle.Seats) > 0 {
			seats = tr.Vehicle.Seats[0].Count
		}
		offers = append(offers, domain.TransferOption{
			ID:           tr.ID,
			TransferType: tr.TransferType,
			Price:        domain.Price{Amount: tr.Quotation.MonetaryAmount.String(), Currency: tr.Quotation.CurrencyCode},
			Vehicle:      domain.Vehicle{Description: tr.Vehicle.Description, Seats: seats},
			Distance:     domain.Distance{Value: tr.Distance.Value, Unit: tr.Distance.Unit},
		})
	}
	return offers, nil
}

// ---- internals ----

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, q, nil, out)
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, endpoint, nil, b, out)
}

// do performs a bearer-authenticated call with client-side rate
// limiting, retries on 429/transient 5xx honoring Retry-After, and a
// one-shot token refresh on 401.
func (c *Client) do(ctx context.Context, method, endpoint string, q url.Values, body []byte, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	u := c.base + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	refreshed := false
	var lastErr error
	for i := 0; i < 4; i++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return lastErr
		}
		observability.ObserveExternal("amadeus", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized, http.StatusForbidden:
			resp.Body.Close()
			// token may have been revoked early; refresh once
			if !refreshed {
				refreshed = true
				c.mu.Lock()
				c.token, c.tokenExp = "", time.Time{}
				c.mu.Unlock()
				_ = c.cache.Del(ctx, tokenCacheKey)
				continue
			}
			return ErrUnauthorized

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("amadeus: remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("amadeus: bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// i = retry attempt (0,1,2,...). Base doubles each attempt (200ms, 400ms, 800ms...),
// with up to +50% random jitter to avoid thundering herds.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
