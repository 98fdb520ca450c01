package db

import (
	"errors"
	"flag"
	"os"

	"github.com/lunamail/listserv-backend/models"
)

// Storage failures that callers are expected to branch on. Anything else a
// Database returns is fatal for the current request only.
var (
	// ErrUniqueViolation means an insert collided with the (email, list)
	// uniqueness constraint. Distinguished so handlers can answer
	// "already subscribed" instead of a generic storage error.
	ErrUniqueViolation = errors.New("subscription already exists")
	// ErrNotFound means a point lookup matched no row.
	ErrNotFound = errors.New("subscription not found")
)

// Database interface: the things a subscription store should be able to do.
type Database interface {
	// Inserts a new subscription. Returns ErrUniqueViolation if the
	// (email, list) pair is already present.
	PutSubscription(models.Subscription) error
	// Retrieves the subscription a token belongs to.
	GetSubscriptionByToken(token string) (models.Subscription, error)
	// Marks the token's subscription confirmed. Returns the number of
	// rows matched (0 for an unknown token).
	ConfirmSubscription(token string) (int64, error)
	// Deletes the token's subscription. Returns the number of rows removed.
	RemoveSubscription(token string) (int64, error)
	// Deletes all of an address's subscriptions, or just the one on the
	// given list if list is non-empty. Returns the number of rows removed.
	RemoveSubscriptionsByEmail(email string, list string) (int64, error)
	// Retrieves subscriptions, newest first, optionally filtered to one list.
	GetSubscriptions(list string) ([]models.Subscription, error)
	// Retrieves confirmed subscriptions for one list (broadcast recipients).
	GetConfirmedSubscriptions(list string) ([]models.Subscription, error)
	// Wipes the subscriptions table. ** Should only be used during testing **
	ClearTables() error
}

// Config is a configuration struct for a Database.
type Config struct {
	Port       string
	DbHost     string
	DbName     string
	DbUsername string
	DbPass     string
}

// Default configuration values. Can be overwritten by env vars of the same name.
var configDefaults = map[string]string{
	"PORT":         "8080",
	"DB_HOST":      "localhost",
	"DB_NAME":      "listserv",
	"DB_USERNAME":  "postgres",
	"DB_PASSWORD":  "postgres",
	"TEST_DB_NAME": "listserv_test",
}

func getEnvOrDefault(varName string) string {
	envVar := os.Getenv(varName)
	if len(envVar) == 0 {
		envVar = configDefaults[varName]
	}
	return envVar
}

// LoadEnvironmentVariables loads relevant environment variables into a
// Config object.
func LoadEnvironmentVariables() (Config, error) {
	config := Config{
		Port:       getEnvOrDefault("PORT"),
		DbHost:     getEnvOrDefault("DB_HOST"),
		DbName:     getEnvOrDefault("DB_NAME"),
		DbUsername: getEnvOrDefault("DB_USERNAME"),
		DbPass:     getEnvOrDefault("DB_PASSWORD"),
	}
	if flag.Lookup("test.v") != nil {
		// Avoid accidentally wiping the default db during tests.
		config.DbName = getEnvOrDefault("TEST_DB_NAME")
	}
	return config, nil
}
