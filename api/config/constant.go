package config

import (
	"log"
	"strings"
)

const (
	// LiveKeyPrefix marks a Stripe secret key that moves real money.
	LiveKeyPrefix = "sk_live_"

	// DefaultFrontendURL is the redirect base when FRONTEND_URL is unset.
	DefaultFrontendURL = "http://localhost:3000"
)

// CheckNotLiveKey aborts immediately if the configured Stripe key is a live key.
// This should be called at the start of any test that talks to Stripe.
func CheckNotLiveKey() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if strings.HasPrefix(cfg.StripeSecretKey, LiveKeyPrefix) {
		log.Fatalf("Tests aborted: STRIPE_SECRET_KEY is a live key (%s...)", LiveKeyPrefix)
	}
}
