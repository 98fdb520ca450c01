package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/idna"
)

// Subscription stores one address's membership on one list.
type Subscription struct {
	ID        int64     `json:"-" db:"id"`
	Email     string    `json:"email" db:"email"`
	List      string    `json:"list" db:"list"`
	Token     string    `json:"-" db:"token"`
	Confirmed bool      `json:"confirmed" db:"confirmed"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Validation and lookup failures surfaced by subscription transitions.
var (
	ErrInvalidEmail = errors.New("invalid e-mail address")
	ErrMissingList  = errors.New("list must not be empty")
	ErrUnknownToken = errors.New("unknown token")
)

// SubscriptionStore is the interface for performing subscription transitions
// against a back-end.
type SubscriptionStore interface {
	PutSubscription(Subscription) error
	ConfirmSubscription(token string) (int64, error)
	RemoveSubscription(token string) (int64, error)
}

// SubscriptionState describes where a record sits in its lifecycle.
type SubscriptionState string

// Possible values for SubscriptionState. An absent row has no state; these
// only describe rows that exist.
const (
	StatePending   SubscriptionState = "pending"   // Awaiting e-mail confirmation.
	StateConfirmed SubscriptionState = "confirmed" // Eligible for broadcasts.
)

// State reports the lifecycle state of an existing record.
func (s *Subscription) State() SubscriptionState {
	if s.Confirmed {
		return StateConfirmed
	}
	return StatePending
}

// NewSubscription builds an unconfirmed subscription for the given address
// and list, normalizing both and minting a fresh token. The record is not
// persisted; call Create for that.
func NewSubscription(email string, list string) (Subscription, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Subscription{}, err
	}
	list = strings.TrimSpace(list)
	if list == "" {
		return Subscription{}, ErrMissingList
	}
	return Subscription{
		Email:     email,
		List:      list,
		Token:     uuid.NewString(),
		Confirmed: false,
		CreatedAt: time.Now(),
	}, nil
}

// NewConfirmedSubscription builds a subscription that skips the confirmation
// step. Used by the admin add operation to backfill known-good addresses.
func NewConfirmedSubscription(email string, list string) (Subscription, error) {
	subscription, err := NewSubscription(email, list)
	if err != nil {
		return Subscription{}, err
	}
	subscription.Confirmed = true
	return subscription, nil
}

// NormalizeEmail lowercases and trims an address and converts its domain
// part to ASCII, so case, whitespace and unicode variants of one address
// collide on the store's uniqueness constraint. Validation is deliberately
// minimal: a non-empty local part, an @, and a non-empty domain part.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", ErrInvalidEmail
	}
	local, domain := email[:at], email[at+1:]
	ascii, err := idna.ToASCII(domain)
	if err != nil || ascii == "" {
		return "", ErrInvalidEmail
	}
	return local + "@" + ascii, nil
}

// Create inserts this subscription. A store uniqueness violation passes
// through untouched so the caller can map it to "already subscribed"
// without learning whether the existing record was confirmed.
func (s *Subscription) Create(store SubscriptionStore) error {
	return store.PutSubscription(*s)
}

// Confirm flips a pending subscription to confirmed, keyed by its token.
// Confirming an already-confirmed record succeeds again: the flag only ever
// moves one way, so the repeat update is harmless.
func Confirm(store SubscriptionStore, token string) error {
	changed, err := store.ConfirmSubscription(token)
	if err != nil {
		return err
	}
	if changed == 0 {
		return ErrUnknownToken
	}
	return nil
}

// Unsubscribe deletes the record the token belongs to, confirmed or not.
// Possession of the token is the entire authorization for this transition.
func Unsubscribe(store SubscriptionStore, token string) error {
	removed, err := store.RemoveSubscription(token)
	if err != nil {
		return err
	}
	if removed == 0 {
		return ErrUnknownToken
	}
	return nil
}
