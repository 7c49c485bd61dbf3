// Package query serves read-only intent lookups and listings, enforcing
// that callers only see intents they own unless they hold the admin role.
package query

import (
	"context"
	"fmt"
	"strings"

	"savings-intents-go/internal/models"
	"savings-intents-go/internal/store"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// ListParams narrows a listing. Page is 1-based.
type ListParams struct {
	Status    string
	UserId    string
	AccountId string
	Page      int
	Limit     int
}

type Service struct {
	store store.IntentStore
}

func NewService(s store.IntentStore) *Service {
	return &Service{store: s}
}

func (s *Service) GetById(ctx context.Context, principal models.Principal, intentId string) (*models.IntentWithOwner, error) {
	in, err := s.store.GetIntentById(ctx, intentId)
	if err != nil {
		return nil, err
	}
	if err := authorize(principal, in); err != nil {
		return nil, err
	}
	return in, nil
}

func (s *Service) GetByReference(ctx context.Context, principal models.Principal, reference string) (*models.IntentWithOwner, error) {
	in, err := s.store.GetIntentByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if err := authorize(principal, in); err != nil {
		return nil, err
	}
	return in, nil
}

// List returns one page of intents with page metadata and per-status
// counts over the same owner and account scope. Non-admin callers are
// always scoped to their own intents.
func (s *Service) List(ctx context.Context, principal models.Principal, params ListParams) (*models.IntentListResponse, error) {
	filter := store.IntentFilter{UserId: params.UserId, AccountId: params.AccountId}
	if !principal.IsAdmin() {
		if principal.UserId == "" {
			return nil, fmt.Errorf("%w: listing requires an authenticated user", store.ErrForbidden)
		}
		if params.UserId != "" && params.UserId != principal.UserId {
			return nil, fmt.Errorf("%w: cannot list intents of another user", store.ErrForbidden)
		}
		filter.UserId = principal.UserId
	}

	if status := strings.TrimSpace(params.Status); status != "" {
		parsed, err := models.ParseIntentStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
		filter.Status = parsed
	}

	page, limit := normalizePage(params.Page, params.Limit)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	items, total, err := s.store.ListIntents(ctx, filter)
	if err != nil {
		return nil, err
	}

	countFilter := filter
	countFilter.Status = ""
	byStatus, err := s.store.CountIntentsByStatus(ctx, countFilter)
	if err != nil {
		return nil, err
	}

	response := &models.IntentListResponse{
		Items: make([]models.IntentView, 0, len(items)),
		Pagination: models.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}
	for _, item := range items {
		response.Items = append(response.Items, models.NewIntentView(item, principal.IsAdmin()))
	}
	for status, count := range byStatus {
		response.Counts.Add(status, count)
	}
	return response, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = defaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}
	return page, limit
}

func authorize(principal models.Principal, in *models.IntentWithOwner) error {
	if principal.IsAdmin() || (principal.UserId != "" && principal.UserId == in.UserId) {
		return nil
	}
	return fmt.Errorf("%w: intent %s", store.ErrForbidden, in.ReferenceNumber)
}
