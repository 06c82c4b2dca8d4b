package app

import (
	"context"

	"goplanit/internal/domain"
)

type QueryService struct {
	repo   domain.PreferenceRepository
	status *StatusWriter
}

func NewQueryService(repo domain.PreferenceRepository, status *StatusWriter) *QueryService {
	return &QueryService{repo: repo, status: status}
}

type PreferenceView struct {
	domain.Preference
	ProcessingStatus string `json:"processingStatus"`
}

func (s *QueryService) GetPreference(ctx context.Context, id string) (PreferenceView, error) {
	if err := domain.ValidateID(id); err != nil {
		return PreferenceView{}, err
	}
	pref, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return PreferenceView{}, err
	}
	ps := domain.StatusProcessing
	if pref.Itinerary != nil {
		ps = domain.StatusCompleted
	}
	return PreferenceView{Preference: pref, ProcessingStatus: ps}, nil
}

// GetStatus returns the live cache record when one exists, otherwise a
// status derived from the store. The store is authoritative: once the
// itinerary is attached the derived status is completed even if the
// pipeline crashed before cleanup.
func (s *QueryService) GetStatus(ctx context.Context, id string) (domain.ProcessingStatus, error) {
	if err := domain.ValidateID(id); err != nil {
		return domain.ProcessingStatus{}, err
	}
	if st, ok := s.status.Get(ctx, id); ok {
		return st, nil
	}
	pref, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.ProcessingStatus{}, err
	}
	if pref.Itinerary != nil {
		return domain.ProcessingStatus{
			Status:   domain.StatusCompleted,
			Message:  "Itinerary generated successfully.",
			Progress: 100,
		}, nil
	}
	return domain.ProcessingStatus{
		Status:   domain.StatusProcessing,
		Message:  "Itinerary generation is queued.",
		Progress: 0,
	}, nil
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

type UserPreferencesView struct {
	Preferences []domain.Preference `json:"preferences"`
	Pagination  Pagination          `json:"pagination"`
}

func (s *QueryService) ListByUser(ctx context.Context, userID string, page, limit int) (UserPreferencesView, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	pg, err := s.repo.ListByUser(ctx, userID, domain.PageQuery{Page: page, Limit: limit})
	if err != nil {
		return UserPreferencesView{}, err
	}
	items := pg.Items
	if items == nil {
		items = []domain.Preference{}
	}
	pages := (pg.Total + int64(limit) - 1) / int64(limit)
	return UserPreferencesView{
		Preferences: items,
		Pagination:  Pagination{Page: page, Limit: limit, Total: pg.Total, Pages: pages},
	}, nil
}
