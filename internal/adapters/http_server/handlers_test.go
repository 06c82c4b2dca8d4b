package httpserver_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpserver "goplanit/internal/adapters/http_server"
	"goplanit/internal/app"
	"goplanit/internal/domain"
)

const prefID = "65f0a1b2c3d4e5f601234567"

// ---- fakes ----

type fakeRepo struct {
	prefs map[string]domain.Preference
	list  domain.PreferencesPage
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{prefs: map[string]domain.Preference{}}
}

func (r *fakeRepo) Create(_ context.Context, p domain.Preference) (string, error) {
	p.ID = prefID
	p.CreatedAt = time.Now().UTC()
	r.prefs[p.ID] = p
	return p.ID, nil
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (domain.Preference, error) {
	p, ok := r.prefs[id]
	if !ok {
		return domain.Preference{}, domain.ErrNotFound
	}
	return p, nil
}

func (r *fakeRepo) UpdateItinerary(_ context.Context, id string, it domain.Itinerary) (domain.Preference, error) {
	p, ok := r.prefs[id]
	if !ok {
		return domain.Preference{}, domain.ErrNotFound
	}
	p.Itinerary = &it
	r.prefs[id] = p
	return p, nil
}

func (r *fakeRepo) UpdateFields(_ context.Context, id string, u domain.PreferenceUpdate) (domain.Preference, error) {
	p, ok := r.prefs[id]
	if !ok {
		return domain.Preference{}, domain.ErrNotFound
	}
	if u.Budget != nil {
		p.Budget = *u.Budget
	}
	if u.Interests != nil {
		p.Interests = u.Interests
	}
	if u.TransportPreferences != nil {
		p.TransportPreferences = u.TransportPreferences
	}
	if u.AccommodationPreferences != nil {
		p.AccommodationPreferences = u.AccommodationPreferences
	}
	r.prefs[id] = p
	return p, nil
}

func (r *fakeRepo) ListByUser(_ context.Context, userID string, pg domain.PageQuery) (domain.PreferencesPage, error) {
	return r.list, nil
}

type fakePub struct{ events []domain.PreferenceCreatedEvent }

func (p *fakePub) Publish(ev domain.PreferenceCreatedEvent) { p.events = append(p.events, ev) }

type memCache struct{ store map[string][]byte }

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, key string, v any, _ int) error {
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, _ := json.Marshal(v)
	c.store[key] = b
	return nil
}

func (c *memCache) Del(_ context.Context, key string) error {
	delete(c.store, key)
	return nil
}

// ---- harness ----

type fixture struct {
	repo *fakeRepo
	pub  *fakePub
	mux  http.Handler
}

func newFixture() *fixture {
	repo := newFakeRepo()
	pub := &fakePub{}
	status := app.NewStatusWriter(&memCache{}, 30*time.Minute)

	srv := httpserver.New("http://localhost:3000")
	srv.MountHandlers(&httpserver.Handlers{
		Intake: app.NewIntakeService(repo, pub),
		Q:      app.NewQueryService(repo, status),
	})
	return &fixture{repo: repo, pub: pub, mux: srv.Mux()}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

func createBody() string {
	start := time.Now().Add(24 * time.Hour).Format("2006-01-02")
	end := time.Now().Add(4 * 24 * time.Hour).Format("2006-01-02")
	return fmt.Sprintf(`{
		"userId": "u1",
		"email": "a@b.com",
		"travelDates": {"start": %q, "end": %q},
		"originLocationCode": "NYC",
		"destinationLocationCode": "PAR",
		"destination": "Paris",
		"travelers": 2,
		"tripType": "LEISURE"
	}`, start, end)
}

// ---- tests ----

func TestCreatePreference_Accepted(t *testing.T) {
	f := newFixture()

	rr := f.do(t, http.MethodPost, "/preferences", createBody())
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body)
	}

	var res app.CreatePreferenceResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.ID != prefID || res.StatusEndpoint != "/preferences/"+prefID+"/status" {
		t.Fatalf("result: %+v", res)
	}
	if len(f.pub.events) != 1 {
		t.Fatalf("pipeline not triggered")
	}
}

func TestCreatePreference_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"malformed JSON", "{", "Invalid request body"},
		{"missing fields", `{"userId":"u1"}`, "missing required fields"},
		{"past start date", `{
			"userId":"u1","email":"a@b.com",
			"travelDates":{"start":"2020-01-01","end":"2020-01-05"},
			"originLocationCode":"NYC","destinationLocationCode":"PAR"
		}`, "start date cannot be in the past"},
	}
	f := newFixture()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := f.do(t, http.MethodPost, "/preferences", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status %d, body %s", rr.Code, rr.Body)
			}
			if !strings.Contains(rr.Body.String(), tc.want) {
				t.Fatalf("body %s does not mention %q", rr.Body, tc.want)
			}
		})
	}
	if len(f.pub.events) != 0 {
		t.Fatalf("invalid request triggered pipeline")
	}
}

func TestGetPreference(t *testing.T) {
	f := newFixture()
	f.do(t, http.MethodPost, "/preferences", createBody())

	rr := f.do(t, http.MethodGet, "/preferences/"+prefID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var view app.PreferenceView
	_ = json.Unmarshal(rr.Body.Bytes(), &view)
	if view.UserID != "u1" || view.ProcessingStatus != domain.StatusProcessing {
		t.Fatalf("view: %+v", view)
	}

	// malformed and unknown ids map onto the error taxonomy
	if rr := f.do(t, http.MethodGet, "/preferences/not-an-id", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed id: status %d", rr.Code)
	}
	if rr := f.do(t, http.MethodGet, "/preferences/ffffffffffffffffffffffff", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status %d", rr.Code)
	}
}

func TestGetStatus(t *testing.T) {
	f := newFixture()
	f.do(t, http.MethodPost, "/preferences", createBody())

	rr := f.do(t, http.MethodGet, "/preferences/"+prefID+"/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var st domain.ProcessingStatus
	_ = json.Unmarshal(rr.Body.Bytes(), &st)
	if st.Status != domain.StatusProcessing || st.Progress != 0 {
		t.Fatalf("queued status: %+v", st)
	}
}

func TestUpdatePreference_RestrictedFields(t *testing.T) {
	f := newFixture()
	f.do(t, http.MethodPost, "/preferences", createBody())

	// destinationLocationCode in the body must be ignored
	rr := f.do(t, http.MethodPut, "/preferences/"+prefID, `{
		"budget": 3000,
		"interests": ["food"],
		"destinationLocationCode": "TYO"
	}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rr.Code, rr.Body)
	}
	var p domain.Preference
	_ = json.Unmarshal(rr.Body.Bytes(), &p)
	if p.Budget != 3000 || len(p.Interests) != 1 {
		t.Fatalf("update not applied: %+v", p)
	}
	if p.DestinationLocationCode != "PAR" {
		t.Fatalf("immutable field changed: %q", p.DestinationLocationCode)
	}
}

func TestListUserPreferences(t *testing.T) {
	f := newFixture()
	f.repo.list = domain.PreferencesPage{
		Items: []domain.Preference{{ID: prefID, UserID: "u1"}},
		Total: 15,
	}

	rr := f.do(t, http.MethodGet, "/preferences/user/u1?page=2&limit=10", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var view app.UserPreferencesView
	_ = json.Unmarshal(rr.Body.Bytes(), &view)
	if view.Pagination.Page != 2 || view.Pagination.Pages != 2 || view.Pagination.Total != 15 {
		t.Fatalf("pagination: %+v", view.Pagination)
	}
	if len(view.Preferences) != 1 {
		t.Fatalf("items: %+v", view.Preferences)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture()
	rr := f.do(t, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Server is running successfully") {
		t.Fatalf("body: %s", rr.Body)
	}
}
