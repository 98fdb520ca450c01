package db

import (
	"database/sql"
	"fmt"
	"log"
	"net/url"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"gopkg.in/gorp.v2"

	"github.com/lunamail/listserv-backend/models"
)

// SQLDatabase is a Database interface backed by postgresql.
type SQLDatabase struct {
	cfg  Config // Configuration to define the DB connection.
	conn *gorp.DbMap
}

func getConnectionString(cfg Config) string {
	connectionString := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		url.PathEscape(cfg.DbUsername),
		url.PathEscape(cfg.DbPass),
		url.PathEscape(cfg.DbHost),
		url.PathEscape(cfg.DbName))
	return connectionString
}

// InitSQLDatabase creates a DB connection based on information in a Config, and
// returns a pointer the resulting SQLDatabase object. If connection fails,
// returns an error.
func InitSQLDatabase(cfg Config) (*SQLDatabase, error) {
	connectionString := getConnectionString(cfg)
	log.Printf("Connecting to Postgres DB ... \n")
	conn, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, errors.Wrap(err, "opening postgres connection")
	}
	dbmap := &gorp.DbMap{Db: conn, Dialect: gorp.PostgresDialect{}}
	dbmap.AddTableWithName(models.Subscription{}, "subscriptions").SetKeys(true, "ID")
	return &SQLDatabase{cfg: cfg, conn: dbmap}, nil
}

// translateError maps a postgres unique-constraint failure to
// ErrUniqueViolation. Matching on the error code rather than the message
// text keeps this stable across server versions and locales.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
		return ErrUniqueViolation
	}
	return err
}

// PutSubscription inserts a new subscription row. The unique indexes on
// (email, list) and token are what arbitrate concurrent subscribes; there is
// no read-before-write here.
func (db *SQLDatabase) PutSubscription(subscription models.Subscription) error {
	return translateError(db.conn.Insert(&subscription))
}

// GetSubscriptionByToken retrieves the subscription a token belongs to.
func (db SQLDatabase) GetSubscriptionByToken(token string) (models.Subscription, error) {
	var result models.Subscription
	err := db.conn.SelectOne(&result,
		"SELECT * FROM subscriptions WHERE token=$1", token)
	if err == sql.ErrNoRows {
		return models.Subscription{}, ErrNotFound
	}
	return result, err
}

// ConfirmSubscription sets the confirmed flag on the token's subscription.
// The update is unguarded on the current flag value so a repeat confirm
// still matches one row and reads as success.
func (db *SQLDatabase) ConfirmSubscription(token string) (int64, error) {
	result, err := db.conn.Exec(
		"UPDATE subscriptions SET confirmed=TRUE WHERE token=$1", token)
	if err != nil {
		return 0, errors.Wrap(err, "confirming subscription")
	}
	return result.RowsAffected()
}

// RemoveSubscription deletes the subscription a token belongs to.
func (db *SQLDatabase) RemoveSubscription(token string) (int64, error) {
	result, err := db.conn.Exec(
		"DELETE FROM subscriptions WHERE token=$1", token)
	if err != nil {
		return 0, errors.Wrap(err, "removing subscription")
	}
	return result.RowsAffected()
}

// RemoveSubscriptionsByEmail deletes every subscription held by an address,
// or only its subscription on the given list when list is non-empty.
func (db *SQLDatabase) RemoveSubscriptionsByEmail(email string, list string) (int64, error) {
	var result sql.Result
	var err error
	if list == "" {
		result, err = db.conn.Exec(
			"DELETE FROM subscriptions WHERE email=$1", email)
	} else {
		result, err = db.conn.Exec(
			"DELETE FROM subscriptions WHERE email=$1 AND list=$2", email, list)
	}
	if err != nil {
		return 0, errors.Wrap(err, "removing subscriptions by email")
	}
	return result.RowsAffected()
}

// GetSubscriptions retrieves all subscriptions, newest first, optionally
// filtered to one list.
func (db SQLDatabase) GetSubscriptions(list string) ([]models.Subscription, error) {
	subscriptions := []models.Subscription{}
	var err error
	if list == "" {
		_, err = db.conn.Select(&subscriptions,
			"SELECT * FROM subscriptions ORDER BY created_at DESC")
	} else {
		_, err = db.conn.Select(&subscriptions,
			"SELECT * FROM subscriptions WHERE list=$1 ORDER BY created_at DESC", list)
	}
	return subscriptions, err
}

// GetConfirmedSubscriptions retrieves the broadcast recipient set for a list.
func (db SQLDatabase) GetConfirmedSubscriptions(list string) ([]models.Subscription, error) {
	subscriptions := []models.Subscription{}
	_, err := db.conn.Select(&subscriptions,
		"SELECT * FROM subscriptions WHERE confirmed=TRUE AND list=$1", list)
	return subscriptions, err
}

func tryExec(database SQLDatabase, commands []string) error {
	for _, command := range commands {
		if _, err := database.conn.Exec(command); err != nil {
			return fmt.Errorf("command failed: %s\nwith error: %v",
				command, err.Error())
		}
	}
	return nil
}

// ClearTables nukes all the tables. ** Should only be used during testing **
func (db SQLDatabase) ClearTables() error {
	return tryExec(db, []string{
		"DELETE FROM subscriptions",
		"ALTER SEQUENCE subscriptions_id_seq RESTART WITH 1",
	})
}

// GetName retrieves a readable name for this data store (for use in error messages)
func (db SQLDatabase) GetName() string {
	return "SQL Database"
}
