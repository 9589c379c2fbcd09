package plans

import (
	"database/sql"
	"fmt"

	"traveo-backend/migrations"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const planColumns = "id, code, name, currency, price, credits, duration_days, stripe_product_id, stripe_price_id"

func (r *Repository) GetPlans() ([]Plan, error) {
	rows, err := r.db.Query(`SELECT ` + planColumns + ` FROM plans ORDER BY price ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	plans := []Plan{}
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Currency, &p.Price, &p.Credits, &p.DurationDays, &p.StripeProductID, &p.StripePriceID); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// GetPlanByID returns a plan by its ID, nil when missing
func (r *Repository) GetPlanByID(id int) (*Plan, error) {
	row := r.db.QueryRow(`SELECT `+planColumns+` FROM plans WHERE id=? LIMIT 1`, id)
	var p Plan
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Currency, &p.Price, &p.Credits, &p.DurationDays, &p.StripeProductID, &p.StripePriceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UpdateStripeIDs stores the Stripe product/price ids created lazily at checkout.
func (r *Repository) UpdateStripeIDs(p *Plan) error {
	_, err := r.db.Exec(`UPDATE plans SET stripe_product_id=?, stripe_price_id=? WHERE id=?`,
		p.StripeProductID, p.StripePriceID, p.ID)
	return err
}

// ApplyPurchase writes a completed purchase onto the user row: credit packs
// add single-use credits; subscriptions set the plan type and extend the end
// date from whichever is later, now or the current end.
func (r *Repository) ApplyPurchase(userID int, p *Plan) error {
	switch {
	case p.Recurring():
		planType := migrations.PlanMonthly
		if p.Code == "yearly" {
			planType = migrations.PlanYearly
		}
		_, err := r.db.Exec(
			`UPDATE users SET plan_type = ?, plan_end = DATE_ADD(GREATEST(COALESCE(plan_end, NOW()), NOW()), INTERVAL ? DAY), updated_at = NOW() WHERE id = ?`,
			planType, p.DurationDays, userID)
		return err
	case p.Credits > 0:
		_, err := r.db.Exec(
			`UPDATE users SET plan_type = ?, single_credits = single_credits + ?, updated_at = NOW() WHERE id = ?`,
			migrations.PlanSingle, p.Credits, userID)
		return err
	default:
		return fmt.Errorf("plan %s grants nothing", p.Code)
	}
}
