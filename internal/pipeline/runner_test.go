package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"goplanit/internal/app"
	"goplanit/internal/domain"
)

// ---- fakes ----

// recordingCache keeps every Set in arrival order so tests can assert
// the status progression a run produced.
type recordingCache struct {
	mu   sync.Mutex
	sets []domain.ProcessingStatus
	cur  map[string][]byte
}

func newRecordingCache() *recordingCache {
	return &recordingCache{cur: map[string][]byte{}}
}

func (c *recordingCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.cur[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *recordingCache) Set(_ context.Context, key string, v any, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, _ := json.Marshal(v)
	c.cur[key] = b
	if st, ok := v.(domain.ProcessingStatus); ok {
		c.sets = append(c.sets, st)
	}
	return nil
}

func (c *recordingCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cur, key)
	return nil
}

func (c *recordingCache) statuses() []domain.ProcessingStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ProcessingStatus, len(c.sets))
	copy(out, c.sets)
	return out
}

type fakeRepo struct {
	mu        sync.Mutex
	pref      domain.Preference
	findErrs  []error // consumed one per FindByID call
	findCalls int
	saved     *domain.Itinerary
	saveErr   error
}

func (r *fakeRepo) Create(context.Context, domain.Preference) (string, error) {
	return "", errors.New("not used")
}

func (r *fakeRepo) FindByID(_ context.Context, id string) (domain.Preference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	if len(r.findErrs) > 0 {
		err := r.findErrs[0]
		r.findErrs = r.findErrs[1:]
		if err != nil {
			return domain.Preference{}, err
		}
	}
	return r.pref, nil
}

func (r *fakeRepo) UpdateItinerary(_ context.Context, id string, it domain.Itinerary) (domain.Preference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return domain.Preference{}, r.saveErr
	}
	r.saved = &it
	p := r.pref
	p.Itinerary = &it
	return p, nil
}

func (r *fakeRepo) UpdateFields(context.Context, string, domain.PreferenceUpdate) (domain.Preference, error) {
	return domain.Preference{}, errors.New("not used")
}

func (r *fakeRepo) ListByUser(context.Context, string, domain.PageQuery) (domain.PreferencesPage, error) {
	return domain.PreferencesPage{}, errors.New("not used")
}

type fakeGen struct {
	it  domain.Itinerary
	err error
}

func (g *fakeGen) Generate(context.Context, domain.Preference) (domain.Itinerary, error) {
	return g.it, g.err
}

type fakeMail struct {
	mu   sync.Mutex
	sent []string // "to|subject"
	err  error
}

func (m *fakeMail) Send(_ context.Context, to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

// ---- helpers ----

const testID = "65f0a1b2c3d4e5f601234567"

func testPref() domain.Preference {
	start := time.Now().Add(24 * time.Hour)
	return domain.Preference{
		ID: testID, UserID: "u1", Email: "a@b.com",
		TravelDates:             domain.TravelDates{Start: start, End: start.Add(48 * time.Hour)},
		OriginLocationCode:      "NYC",
		DestinationLocationCode: "PAR",
		Travelers:               2,
		TripType:                domain.TripLeisure,
	}
}

func testItinerary() domain.Itinerary {
	return domain.Itinerary{
		Destination: "Paris",
		Days: []domain.Day{
			{Day: 1, Activities: []domain.Activity{{Time: "09:00", Title: "Walk"}}},
			{Day: 2, Activities: []domain.Activity{{Time: "09:00", Title: "Museum"}}},
		},
	}
}

func newRunner(repo *fakeRepo, gen *fakeGen, mail *fakeMail, cache *recordingCache) *Runner {
	status := app.NewStatusWriter(cache, 30*time.Minute)
	return NewRunner(repo, gen, mail, status, "https://app.example.com")
}

// ---- tests ----

func TestRun_HappyPath(t *testing.T) {
	cache := newRecordingCache()
	repo := &fakeRepo{pref: testPref()}
	mail := &fakeMail{}
	r := newRunner(repo, &fakeGen{it: testItinerary()}, mail, cache)

	if err := r.Run(context.Background(), domain.PreferenceCreatedEvent{PreferenceID: testID}); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []struct {
		status   string
		progress int
	}{
		{domain.StatusStarted, 10},
		{domain.StatusGenerating, 30},
		{domain.StatusGenerating, 50},
		{domain.StatusSaving, 80},
	}
	got := cache.statuses()
	if len(got) != len(want) {
		t.Fatalf("got %d status writes, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Status != w.status || got[i].Progress != w.progress {
			t.Fatalf("write %d: got %s/%d, want %s/%d", i, got[i].Status, got[i].Progress, w.status, w.progress)
		}
		if got[i].Timestamp.IsZero() {
			t.Fatalf("write %d: missing timestamp", i)
		}
	}

	if repo.saved == nil || len(repo.saved.Days) != 2 {
		t.Fatalf("itinerary not persisted: %+v", repo.saved)
	}
	if ok, _ := cache.Get(context.Background(), "processing:"+testID, &domain.ProcessingStatus{}); ok {
		t.Fatalf("status record not cleared after success")
	}
	if len(mail.sent) != 1 || !strings.HasPrefix(mail.sent[0], "a@b.com|Your Paris itinerary is ready!") {
		t.Fatalf("notification: %v", mail.sent)
	}
}

func TestRun_FetchFailureWritesErrorStatus(t *testing.T) {
	cache := newRecordingCache()
	repo := &fakeRepo{findErrs: []error{domain.ErrNotFound}}
	r := newRunner(repo, &fakeGen{}, &fakeMail{}, cache)

	err := r.Run(context.Background(), domain.PreferenceCreatedEvent{PreferenceID: testID})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cause lost: %v", err)
	}
	if !strings.Contains(err.Error(), "fetch-preference") {
		t.Fatalf("step not named: %v", err)
	}

	got := cache.statuses()
	last := got[len(got)-1]
	if last.Status != domain.StatusError || last.Progress != 0 || last.Error == "" {
		t.Fatalf("terminal status: %+v", last)
	}
}

func TestRun_GenerateFailure(t *testing.T) {
	cache := newRecordingCache()
	repo := &fakeRepo{pref: testPref()}
	r := newRunner(repo, &fakeGen{err: errors.New("model unavailable")}, &fakeMail{}, cache)

	err := r.Run(context.Background(), domain.PreferenceCreatedEvent{PreferenceID: testID})
	if err == nil || !strings.Contains(err.Error(), "generate-itinerary") {
		t.Fatalf("want generate step failure, got %v", err)
	}
	if repo.saved != nil {
		t.Fatalf("itinerary persisted despite failed generation")
	}
	last := cache.statuses()[len(cache.statuses())-1]
	if last.Status != domain.StatusError {
		t.Fatalf("terminal status: %+v", last)
	}
}

func TestRun_NotificationFailureDoesNotFailRun(t *testing.T) {
	cache := newRecordingCache()
	repo := &fakeRepo{pref: testPref()}
	r := newRunner(repo, &fakeGen{it: testItinerary()}, &fakeMail{err: errors.New("smtp down")}, cache)

	if err := r.Run(context.Background(), domain.PreferenceCreatedEvent{PreferenceID: testID}); err != nil {
		t.Fatalf("notification failure leaked into run result: %v", err)
	}
	if repo.saved == nil {
		t.Fatalf("itinerary not persisted")
	}
	if ok, _ := cache.Get(context.Background(), "processing:"+testID, &domain.ProcessingStatus{}); ok {
		t.Fatalf("status record not cleared")
	}
}

func TestRun_SkipsMailWithoutAddress(t *testing.T) {
	cache := newRecordingCache()
	pref := testPref()
	pref.Email = ""
	repo := &fakeRepo{pref: pref}
	mail := &fakeMail{}
	r := newRunner(repo, &fakeGen{it: testItinerary()}, mail, cache)

	if err := r.Run(context.Background(), domain.PreferenceCreatedEvent{PreferenceID: testID}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(mail.sent) != 0 {
		t.Fatalf("mail sent without recipient: %v", mail.sent)
	}
}
