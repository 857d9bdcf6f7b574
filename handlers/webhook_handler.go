package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	clerktypes "coachReflectAPI/internal/types/clerk"
	"coachReflectAPI/internal/types/subscription"
	"coachReflectAPI/internal/user"
	"coachReflectAPI/services"
)

type WebhookHandler struct {
	userService         *services.UserService
	subscriptionService *services.SubscriptionService
	referralService     *services.ReferralService
}

func NewWebhookHandler(userService *services.UserService, subscriptionService *services.SubscriptionService, referralService *services.ReferralService) *WebhookHandler {
	return &WebhookHandler{
		userService:         userService,
		subscriptionService: subscriptionService,
		referralService:     referralService,
	}
}

// HandleClerkWebhook processes account lifecycle events from Clerk.
func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}

	if !verifyClerkSignature(r.Header, body) {
		log.Println("Invalid webhook signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event clerktypes.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Error parsing webhook: %v", err)
		http.Error(w, "Error parsing webhook", http.StatusBadRequest)
		return
	}

	log.Printf("Received webhook event: %s", event.Type)

	ctx := r.Context()
	switch event.Type {
	case "user.created":
		if err := h.handleUserCreated(ctx, event.Data); err != nil {
			log.Printf("Error handling user.created: %v", err)
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}

	case "user.updated":
		if err := h.handleUserUpdated(ctx, event.Data); err != nil {
			log.Printf("Error handling user.updated: %v", err)
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}

	case "user.deleted":
		if err := h.handleUserDeleted(ctx, event.Data); err != nil {
			log.Printf("Error handling user.deleted: %v", err)
			http.Error(w, "Error processing webhook", http.StatusInternalServerError)
			return
		}

	default:
		log.Printf("Unhandled webhook event type: %s", event.Type)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"success": true}`))
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	var userData clerktypes.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	email := ""
	emailVerified := false
	for _, addr := range userData.EmailAddresses {
		if userData.PrimaryEmailAddressID == "" || addr.ID == userData.PrimaryEmailAddressID {
			email = addr.EmailAddress
			emailVerified = addr.Verification.Status == "verified"
			break
		}
	}

	username := userData.Username
	if username == "" {
		username = userData.FirstName + userData.LastName
	}
	if username == "" && email != "" {
		username = strings.SplitN(email, "@", 2)[0]
	}

	created, err := h.userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:   userData.ID,
		Email:     email,
		Username:  username,
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  userData.ImageURL,
	})
	if err != nil {
		return err
	}

	if emailVerified {
		if err := h.userService.UpdateEmailVerification(ctx, userData.ID, true); err != nil {
			log.Printf("Failed to mark email verified for %s: %v", userData.ID, err)
		}
	}

	// Signup attribution: an invalid or missing code never fails account
	// creation.
	if code := userData.UnsafeMetadata.ReferralCode; code != "" {
		userID, err := h.userService.GetUserIDByClerkID(ctx, created.ClerkID)
		if err != nil {
			return err
		}
		if _, err := h.referralService.Attribute(ctx, userID, code); err != nil {
			log.Printf("Referral attribution failed for %s (code %s): %v", created.ClerkID, code, err)
		}
	}

	return nil
}

func (h *WebhookHandler) handleUserUpdated(ctx context.Context, data json.RawMessage) error {
	var userData clerktypes.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	if _, err := h.userService.UpdateProfileByClerkID(ctx, userData.ID, &user.UpdateProfileRequest{
		Username:  userData.Username,
		FirstName: userData.FirstName,
		LastName:  userData.LastName,
		ImageURL:  userData.ImageURL,
	}); err != nil {
		return err
	}

	// Verification state rides on user.updated; Clerk re-sends the user
	// object whenever an email address gets verified.
	for _, addr := range userData.EmailAddresses {
		if addr.ID == userData.PrimaryEmailAddressID && addr.Verification.Status == "verified" {
			return h.userService.UpdateEmailVerification(ctx, userData.ID, true)
		}
	}
	return nil
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var deleted clerktypes.ClerkDeletedData
	if err := json.Unmarshal(data, &deleted); err != nil {
		return fmt.Errorf("failed to unmarshal deleted data: %w", err)
	}
	if !deleted.Deleted {
		return nil
	}
	return h.userService.DeleteUserByClerkID(ctx, deleted.ID)
}

// verifyClerkSignature checks the svix HMAC over the raw body. An empty
// CLERK_WEBHOOK_SECRET disables verification (local development).
func verifyClerkSignature(headers http.Header, body []byte) bool {
	webhookSecret := os.Getenv("CLERK_WEBHOOK_SECRET")
	if webhookSecret == "" {
		return true
	}

	svixID := headers.Get("svix-id")
	svixTimestamp := headers.Get("svix-timestamp")
	svixSignature := headers.Get("svix-signature")
	if svixID == "" || svixTimestamp == "" || svixSignature == "" {
		return false
	}

	// Svix secrets are prefixed and base64 encoded.
	secret := strings.TrimPrefix(webhookSecret, "whsec_")
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		key = []byte(secret)
	}

	signedContent := fmt.Sprintf("%s.%s.%s", svixID, svixTimestamp, string(body))
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(signedContent))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	// Header may carry several space-separated "v1,<sig>" entries.
	for _, part := range strings.Fields(svixSignature) {
		if sig, ok := strings.CutPrefix(part, "v1,"); ok {
			if hmac.Equal([]byte(expected), []byte(sig)) {
				return true
			}
		}
	}
	return false
}

// HandleStripeWebhook processes billing events sent by Stripe. The
// checkout.session.completed event is the referral conversion trigger: it
// is the qualifying action that settles a pending referral.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading request body: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	endpointSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if endpointSecret == "" {
		log.Println("STRIPE_WEBHOOK_SECRET is not set")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), endpointSecret)
	if err != nil {
		log.Printf("Error verifying webhook signature: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			log.Printf("Error parsing webhook JSON: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := h.handleCheckoutSessionCompleted(ctx, &session); err != nil {
			log.Printf("Error handling checkout.session.completed: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			log.Printf("Error parsing webhook JSON: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := h.handleSubscriptionUpdated(ctx, &sub); err != nil {
			log.Printf("Error handling subscription update: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			log.Printf("Error parsing webhook JSON: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := h.handleInvoicePaid(ctx, &inv); err != nil {
			log.Printf("Error handling invoice.payment_succeeded: %v", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

	default:
		log.Printf("Unhandled Stripe event type: %s", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCheckoutSessionCompleted(ctx context.Context, session *stripe.CheckoutSession) error {
	clerkID := session.Metadata["user_id"]
	if clerkID == "" {
		clerkID = session.ClientReferenceID
	}
	if clerkID == "" {
		return fmt.Errorf("no user reference found on checkout session %s", session.ID)
	}

	u, err := h.userService.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}

	if session.Subscription != nil && session.Customer != nil {
		sub := &subscription.Subscription{
			UserID:               u.ID,
			StripeCustomerID:     session.Customer.ID,
			StripeSubscriptionID: session.Subscription.ID,
			Status:               string(stripe.SubscriptionStatusActive),
			CurrentPeriodEnd:     time.Now(),
		}
		if err := h.subscriptionService.UpsertSubscription(ctx, sub); err != nil {
			return err
		}
	}

	// Subscribing is the qualifying action for referral conversion.
	userID, err := h.userService.GetUserIDByClerkID(ctx, clerkID)
	if err != nil {
		return err
	}
	if _, err := h.referralService.Settle(ctx, userID); err != nil {
		// Fail loud: an uncredited referral is a financial discrepancy.
		return fmt.Errorf("referral settlement failed: %w", err)
	}

	return nil
}

// handleInvoicePaid extends the local period on renewal payments.
func (h *WebhookHandler) handleInvoicePaid(ctx context.Context, inv *stripe.Invoice) error {
	if inv.Subscription == nil {
		return nil
	}

	periodEnd := time.Now()
	priceID := ""
	if inv.Lines != nil && len(inv.Lines.Data) > 0 {
		line := inv.Lines.Data[0]
		if line.Period != nil {
			periodEnd = time.Unix(line.Period.End, 0)
		}
		if line.Price != nil {
			priceID = line.Price.ID
		}
	}

	return h.subscriptionService.UpdateSubscriptionStatus(ctx, &subscription.Subscription{
		StripeSubscriptionID: inv.Subscription.ID,
		StripePriceID:        priceID,
		Status:               string(stripe.SubscriptionStatusActive),
		CurrentPeriodEnd:     periodEnd,
	})
}

func (h *WebhookHandler) handleSubscriptionUpdated(ctx context.Context, sub *stripe.Subscription) error {
	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}

	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}

	dbSub := &subscription.Subscription{
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     customerID,
		StripePriceID:        priceID,
		Status:               string(sub.Status),
		CurrentPeriodEnd:     time.Unix(sub.CurrentPeriodEnd, 0),
	}

	return h.subscriptionService.UpdateSubscriptionStatus(ctx, dbSub)
}
