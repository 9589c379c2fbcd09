package activities

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"traveo-backend/entitlement"
	"traveo-backend/media"
	"traveo-backend/migrations"
)

// Store is the persisting step of the create pipeline. *Repository implements
// it; tests substitute a fake to exercise the failure paths.
type Store interface {
	CreateActivity(ctx context.Context, a *Activity, tier entitlement.Tier) error
}

// CreateInput is the normalized request: the handler has already flattened the
// multipart form into one ordered photo list and raw coordinate strings.
type CreateInput struct {
	Title       string
	Description string
	Lat         string
	Lng         string
	Photos      []*multipart.FileHeader
}

type Service struct {
	store Store
	coord *media.Coordinator
	now   func() time.Time
}

func NewService(store Store, coord *media.Coordinator) *Service {
	return &Service{store: store, coord: coord, now: time.Now}
}

// Create runs the full activity transaction:
// validate -> authorize -> upload -> persist atomically.
// Ordering is strict: nothing touches the DB before every upload succeeded,
// and uploaded media is only deleted when upload or persistence failed.
func (s *Service) Create(ctx context.Context, user *migrations.User, in CreateInput) (*Activity, error) {
	a, err := s.validate(user, in)
	if err != nil {
		return nil, err
	}

	tier, err := entitlement.Evaluate(user, s.now())
	if err != nil {
		log.Printf("[ACTIVITY][CREATE] denied user_id=%d reason=no_entitlement", user.ID)
		return nil, err
	}

	uploads, err := s.coord.UploadAll(ctx, in.Photos)
	if err != nil {
		// Delete the prefix that made it to the host before the failure.
		s.coord.Rollback(ctx, uploads)
		return nil, err
	}
	a.Photos = uploads

	if err := s.store.CreateActivity(ctx, a, tier); err != nil {
		s.coord.Rollback(ctx, uploads)
		if errors.Is(err, entitlement.ErrForbidden) {
			// Counter re-check inside the transaction lost a race.
			log.Printf("[ACTIVITY][CREATE] race_denied user_id=%d tier=%s", user.ID, tier)
			return nil, err
		}
		log.Printf("[ACTIVITY][CREATE] persist failed user_id=%d err=%v", user.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	log.Printf("[ACTIVITY][CREATE] ok id=%d user_id=%d tier=%s photos=%d", a.ID, user.ID, tier, len(uploads))
	return a, nil
}

func (s *Service) validate(user *migrations.User, in CreateInput) (*Activity, error) {
	if user == nil {
		return nil, fmt.Errorf("%w: missing user", ErrValidation)
	}
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(title) > 140 {
		return nil, fmt.Errorf("%w: title exceeds 140 characters", ErrValidation)
	}
	if desc == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}
	a := &Activity{
		CreatorID:   user.ID,
		Title:       title,
		Description: desc,
		Photos:      []media.Upload{},
		CreatedAt:   s.now(),
	}
	// Optional geographic point: both coordinates or neither.
	latStr, lngStr := strings.TrimSpace(in.Lat), strings.TrimSpace(in.Lng)
	if latStr == "" && lngStr == "" {
		return a, nil
	}
	if latStr == "" || lngStr == "" {
		return nil, fmt.Errorf("%w: lat and lng must be submitted together", ErrValidation)
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, fmt.Errorf("%w: lat is not a valid latitude", ErrValidation)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("%w: lng is not a valid longitude", ErrValidation)
	}
	a.Lat, a.Lng = &lat, &lng
	return a, nil
}
