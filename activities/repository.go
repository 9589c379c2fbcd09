package activities

import (
	"context"
	"database/sql"
	"fmt"

	"traveo-backend/entitlement"
	"traveo-backend/media"
	"traveo-backend/migrations"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreateActivity runs the persisting step as a single atomic unit: the activity
// row (plus photos and the creator as sole participant) and the entitlement
// consumption on the creator commit together or not at all. Every statement
// takes the same *sql.Tx.
func (r *Repository) CreateActivity(ctx context.Context, a *Activity, tier entitlement.Tier) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertActivityTx(ctx, tx, a); err != nil {
		return err
	}
	if err := consumeEntitlementTx(ctx, tx, a.CreatorID, tier); err != nil {
		return err
	}
	return tx.Commit()
}

func insertActivityTx(ctx context.Context, tx *sql.Tx, a *Activity) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO activities (creator_id, title, description, lng, lat) VALUES (?,?,?,?,?)`,
		a.CreatorID, a.Title, a.Description, a.Lng, a.Lat)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = int(id)
	for i, p := range a.Photos {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activity_photos (activity_id, url, public_id, position) VALUES (?,?,?,?)`,
			a.ID, p.URL, p.PublicID, i); err != nil {
			return err
		}
	}
	// Creator is appended to its own activity list by this row.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO activity_participants (activity_id, user_id) VALUES (?,?)`,
		a.ID, a.CreatorID); err != nil {
		return err
	}
	a.Participants = []int{a.CreatorID}
	return nil
}

// consumeEntitlementTx mutates the creator row for the tier decided earlier.
// The WHERE guards re-validate the counters inside the transaction, so two
// concurrent requests racing on one remaining credit (or an unused trial)
// cannot both commit: the loser affects zero rows and aborts with ErrForbidden.
func consumeEntitlementTx(ctx context.Context, tx *sql.Tx, userID int, tier entitlement.Tier) error {
	switch tier {
	case entitlement.TierPremium:
		return nil
	case entitlement.TierFree:
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET free_trial_used = 1, updated_at = NOW() WHERE id = ? AND free_trial_used = 0`, userID)
		if err != nil {
			return err
		}
		return requireOneRow(res)
	case entitlement.TierSingle:
		// plan_type is assigned first so IF() still sees the pre-decrement count.
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET plan_type = IF(single_credits = 1, ?, plan_type), single_credits = single_credits - 1, updated_at = NOW()
			 WHERE id = ? AND plan_type = ? AND single_credits > 0`,
			migrations.PlanNone, userID, migrations.PlanSingle)
		if err != nil {
			return err
		}
		return requireOneRow(res)
	default:
		return fmt.Errorf("unknown entitlement tier %q", tier)
	}
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entitlement.ErrForbidden
	}
	return nil
}

// GetByID returns one activity with photos and participants loaded.
func (r *Repository) GetByID(ctx context.Context, id int) (*Activity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, creator_id, title, description, lng, lat, created_at FROM activities WHERE id = ? LIMIT 1`, id)
	a, err := scanActivity(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.loadPhotos(ctx, a); err != nil {
		return nil, err
	}
	if err := r.loadParticipants(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// List returns the most recent activities, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]*Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, creator_id, title, description, lng, lat, created_at FROM activities ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*Activity{}
	for rows.Next() {
		a := &Activity{Photos: []media.Upload{}}
		var lng, lat sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.CreatorID, &a.Title, &a.Description, &lng, &lat, &a.CreatedAt); err != nil {
			return nil, err
		}
		setPoint(a, lng, lat)
		out = append(out, a)
	}
	for _, a := range out {
		if err := r.loadPhotos(ctx, a); err != nil {
			return nil, err
		}
	}
	return out, rows.Err()
}

// Join adds a user to an activity's participant list (idempotent).
func (r *Repository) Join(ctx context.Context, activityID, userID int) error {
	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM activities WHERE id = ?`, activityID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO activity_participants (activity_id, user_id) VALUES (?,?)`, activityID, userID)
	return err
}

// CountForCreator reports how many activities a user has created, for the
// profile overview.
func (r *Repository) CountForCreator(ctx context.Context, userID int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM activities WHERE creator_id = ?`, userID).Scan(&n)
	return n, err
}

func scanActivity(row *sql.Row) (*Activity, error) {
	a := &Activity{Photos: []media.Upload{}}
	var lng, lat sql.NullFloat64
	if err := row.Scan(&a.ID, &a.CreatorID, &a.Title, &a.Description, &lng, &lat, &a.CreatedAt); err != nil {
		return nil, err
	}
	setPoint(a, lng, lat)
	return a, nil
}

func setPoint(a *Activity, lng, lat sql.NullFloat64) {
	if lng.Valid && lat.Valid {
		x, y := lng.Float64, lat.Float64
		a.Lng, a.Lat = &x, &y
	}
}

func (r *Repository) loadPhotos(ctx context.Context, a *Activity) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT url, public_id FROM activity_photos WHERE activity_id = ? ORDER BY position ASC`, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var u media.Upload
		if err := rows.Scan(&u.URL, &u.PublicID); err != nil {
			return err
		}
		a.Photos = append(a.Photos, u)
	}
	return rows.Err()
}

func (r *Repository) loadParticipants(ctx context.Context, a *Activity) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM activity_participants WHERE activity_id = ? ORDER BY joined_at ASC, user_id ASC`, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	a.Participants = []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return err
		}
		a.Participants = append(a.Participants, id)
	}
	return rows.Err()
}
