package config

import (
	"log"
	"os"
	"strconv"

	"invoicehub/internal/domain/tiers"

	"github.com/joho/godotenv"
)

var (
	PORT       string
	DB_URL     string
	JWT_SECRET string

	GOOGLE_CLIENT_ID         string
	GOOGLE_CLIENT_SECRET     string
	GOOGLE_REDIRECT_URL      string
	GOOGLE_FRONTEND_REDIRECT string

	// Registration tier thresholds and pricing. The first FREE_MAX accounts are
	// free forever; the next PROMOTIONAL_MAX get the promotional price.
	FREE_MAX             int64
	PROMOTIONAL_MAX      int64
	PROMO_PRICE_CENTS    int64
	STANDARD_PRICE_CENTS int64
	PROMO_TRIAL_DAYS     int
	STANDARD_TRIAL_DAYS  int
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	PORT = getEnv("PORT", "8080")
	DB_URL = mustEnv("DB_URL")
	JWT_SECRET = mustEnv("JWT_SECRET")

	GOOGLE_CLIENT_ID = mustEnv("GOOGLE_CLIENT_ID")
	GOOGLE_CLIENT_SECRET = mustEnv("GOOGLE_CLIENT_SECRET")
	GOOGLE_REDIRECT_URL = mustEnv("GOOGLE_REDIRECT_URL")
	GOOGLE_FRONTEND_REDIRECT = getEnv("GOOGLE_FRONTEND_REDIRECT", "")

	FREE_MAX = getEnvInt64("FREE_MAX", 100)
	PROMOTIONAL_MAX = getEnvInt64("PROMOTIONAL_MAX", 400)
	PROMO_PRICE_CENTS = getEnvInt64("PROMO_PRICE_CENTS", 900)
	STANDARD_PRICE_CENTS = getEnvInt64("STANDARD_PRICE_CENTS", 1900)
	PROMO_TRIAL_DAYS = int(getEnvInt64("PROMO_TRIAL_DAYS", 90))
	STANDARD_TRIAL_DAYS = int(getEnvInt64("STANDARD_TRIAL_DAYS", 30))
}

// TierPolicy builds the registration tier policy from the loaded environment.
func TierPolicy() tiers.Policy {
	return tiers.Policy{
		FreeMax:            FREE_MAX,
		PromotionalMax:     PROMOTIONAL_MAX,
		PromoPriceCents:    PROMO_PRICE_CENTS,
		StandardPriceCents: STANDARD_PRICE_CENTS,
		PromoTrialDays:     PROMO_TRIAL_DAYS,
		StandardTrialDays:  STANDARD_TRIAL_DAYS,
	}
}

func mustEnv(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("Missing required environment variable: %s", key)
	}
	return v
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Fatalf("Invalid integer for %s: %q", key, value)
	}
	return n
}
