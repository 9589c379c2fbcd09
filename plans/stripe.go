package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"traveo-backend/email"
	"traveo-backend/migrations"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeService creates checkout sessions for plans and applies completed
// purchases to the buyer's account. If STRIPE_SECRET_KEY is not set, the
// service is disabled (nil).
type StripeService struct {
	repo          *Repository
	secretKey     string
	webhookSecret string
	successURL    string
	cancelURL     string
	sc            *client.API
	invalidKey    bool // once detected, short-circuit further remote calls
}

var ErrStripeInvalidAPIKey = errors.New("stripe_invalid_api_key")

func maskKey(k string) string {
	if len(k) < 12 {
		return "****"
	}
	return k[:7] + "..." + k[len(k)-4:]
}

// NewStripeFromEnv returns a configured service or nil when missing env vars.
func NewStripeFromEnv(repo *Repository) *StripeService {
	key := os.Getenv("STRIPE_SECRET_KEY")
	if key == "" {
		return nil
	}
	success := os.Getenv("STRIPE_SUCCESS_URL")
	if success == "" {
		success = "https://example.com/checkout/success"
	}
	cancel := os.Getenv("STRIPE_CANCEL_URL")
	if cancel == "" {
		cancel = "https://example.com/checkout/cancel"
	}
	sc := &client.API{}
	sc.Init(key, nil)
	return &StripeService{
		repo:          repo,
		secretKey:     key,
		webhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		successURL:    success,
		cancelURL:     cancel,
		sc:            sc,
	}
}

// ensureStripeProductAndPrice lazily creates the Stripe product and price for
// a plan: one-off prices for credit packs, recurring for subscriptions.
func (s *StripeService) ensureStripeProductAndPrice(ctx context.Context, p *Plan) error {
	if p.StripeProductID == "" {
		prod, err := s.sc.Products.New(&stripe.ProductParams{Name: stripe.String(p.Name)})
		if err != nil {
			return err
		}
		p.StripeProductID = prod.ID
	}
	if p.StripePriceID != "" {
		if pr, err := s.sc.Prices.Get(p.StripePriceID, nil); err == nil {
			desired := int64(p.Price * 100)
			if pr.UnitAmount != desired { // create new price; keep old for historic invoices
				price, err := s.sc.Prices.New(s.priceParams(p))
				if err != nil {
					return err
				}
				p.StripePriceID = price.ID
			}
		} else { // price id invalid -> recreate
			p.StripePriceID = ""
		}
	}
	if p.StripePriceID == "" {
		price, err := s.sc.Prices.New(s.priceParams(p))
		if err != nil {
			return err
		}
		p.StripePriceID = price.ID
	}
	return nil
}

func (s *StripeService) priceParams(p *Plan) *stripe.PriceParams {
	params := &stripe.PriceParams{
		Product:    stripe.String(p.StripeProductID),
		Currency:   stripe.String(strings.ToLower(p.Currency)),
		UnitAmount: stripe.Int64(int64(p.Price * 100)),
	}
	if p.Recurring() {
		interval := "month"
		if p.Code == "yearly" {
			interval = "year"
		}
		params.Recurring = &stripe.PriceRecurringParams{Interval: stripe.String(interval)}
	}
	return params
}

// CreateCheckoutSessionWithID returns the hosted checkout URL + session ID.
func (s *StripeService) CreateCheckoutSessionWithID(ctx context.Context, userID, planID int) (string, string, error) {
	if s == nil {
		return "", "", errors.New("stripe not configured")
	}
	plan, err := s.repo.GetPlanByID(planID)
	if err != nil || plan == nil {
		return "", "", fmt.Errorf("invalid plan")
	}
	if err := s.ensureStripeProductAndPrice(ctx, plan); err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && (se.HTTPStatusCode == 401 || strings.Contains(strings.ToLower(se.Msg), "invalid api key")) {
			log.Printf("[STRIPE][ensure] invalid api key (%s): %v", maskKey(s.secretKey), se)
			s.invalidKey = true
			return "", "", ErrStripeInvalidAPIKey
		}
		return "", "", err
	}
	_ = s.repo.UpdateStripeIDs(plan)

	mode := stripe.CheckoutSessionModePayment
	if plan.Recurring() {
		mode = stripe.CheckoutSessionModeSubscription
	}
	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
		Mode:       stripe.String(string(mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(plan.StripePriceID),
			Quantity: stripe.Int64(1),
		}},
		Metadata: map[string]string{
			"user_id": strconv.Itoa(userID),
			"plan_id": strconv.Itoa(planID),
		},
	}
	if s.invalidKey {
		return "", "", ErrStripeInvalidAPIKey
	}
	sess, err := s.sc.CheckoutSessions.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && (se.HTTPStatusCode == 401 || strings.Contains(strings.ToLower(se.Msg), "invalid api key")) {
			log.Printf("[STRIPE][checkout] invalid api key (%s): %v", maskKey(s.secretKey), se)
			s.invalidKey = true
			return "", "", ErrStripeInvalidAPIKey
		}
		log.Printf("[STRIPE][checkout] error: %v", err)
		return "", "", err
	}
	return sess.URL, sess.ID, nil
}

// HandleWebhook consumes webhook payloads. For a successful checkout event it
// applies the purchase encoded in metadata to the user's account.
func (s *StripeService) HandleWebhook(w http.ResponseWriter, r *http.Request) error {
	if s == nil {
		return errors.New("stripe not configured")
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	sig := r.Header.Get("Stripe-Signature")
	if s.webhookSecret != "" {
		if _, err := webhook.ConstructEvent(payload, sig, s.webhookSecret); err != nil {
			return fmt.Errorf("invalid signature: %w", err)
		}
	}

	var event struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				Metadata map[string]string `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return err
	}
	if event.Type != "checkout.session.completed" {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ignored"))
		return nil
	}
	uid, _ := strconv.Atoi(event.Data.Object.Metadata["user_id"])
	pid, _ := strconv.Atoi(event.Data.Object.Metadata["plan_id"])
	if uid == 0 || pid == 0 {
		return fmt.Errorf("incomplete metadata")
	}
	if err := s.applyPurchase(uid, pid); err != nil {
		return err
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
	return nil
}

// ConfirmSession queries Stripe; if the session completed, the purchase is
// applied (webhook fallback for clients polling after the redirect).
func (s *StripeService) ConfirmSession(sessionID string) (bool, error) {
	if s == nil {
		return false, errors.New("stripe not configured")
	}
	if sessionID == "" {
		return false, errors.New("empty session_id")
	}
	sess, err := s.sc.CheckoutSessions.Get(sessionID, nil)
	if err != nil {
		return false, err
	}
	if sess.Status != stripe.CheckoutSessionStatusComplete {
		return false, nil
	}
	uid, _ := strconv.Atoi(sess.Metadata["user_id"])
	pid, _ := strconv.Atoi(sess.Metadata["plan_id"])
	if uid == 0 || pid == 0 {
		return false, errors.New("incomplete metadata")
	}
	return true, s.applyPurchase(uid, pid)
}

func (s *StripeService) applyPurchase(userID, planID int) error {
	plan, err := s.repo.GetPlanByID(planID)
	if err != nil || plan == nil {
		return fmt.Errorf("invalid plan %d", planID)
	}
	if err := s.repo.ApplyPurchase(userID, plan); err != nil {
		return err
	}
	log.Printf("[STRIPE][apply] user_id=%d plan=%s", userID, plan.Code)
	if u := migrations.GetUserByID(userID); u != nil {
		if err := email.SendPurchaseReceipt(u.Email, plan.Name); err != nil {
			log.Printf("send purchase receipt failed for %s: %v", u.Email, err)
		}
	}
	return nil
}
