package db

import (
	"sort"
	"sync"

	"github.com/lunamail/listserv-backend/models"
)

// MemDatabase is an in-memory Database, used in tests and when running
// without a configured Postgres. It enforces the same uniqueness and
// ordering semantics as the SQL store, including under concurrent use.
type MemDatabase struct {
	mu            sync.Mutex
	subscriptions map[string]models.Subscription // keyed by token
	nextID        int64
}

// InitMemDatabase returns an empty in-memory store.
func InitMemDatabase() *MemDatabase {
	return &MemDatabase{
		subscriptions: make(map[string]models.Subscription),
		nextID:        1,
	}
}

func (db *MemDatabase) PutSubscription(subscription models.Subscription) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, existing := range db.subscriptions {
		if existing.Email == subscription.Email && existing.List == subscription.List {
			return ErrUniqueViolation
		}
	}
	if _, ok := db.subscriptions[subscription.Token]; ok {
		return ErrUniqueViolation
	}
	subscription.ID = db.nextID
	db.nextID++
	db.subscriptions[subscription.Token] = subscription
	return nil
}

func (db *MemDatabase) GetSubscriptionByToken(token string) (models.Subscription, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	subscription, ok := db.subscriptions[token]
	if !ok {
		return models.Subscription{}, ErrNotFound
	}
	return subscription, nil
}

func (db *MemDatabase) ConfirmSubscription(token string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	subscription, ok := db.subscriptions[token]
	if !ok {
		return 0, nil
	}
	subscription.Confirmed = true
	db.subscriptions[token] = subscription
	return 1, nil
}

func (db *MemDatabase) RemoveSubscription(token string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, ok := db.subscriptions[token]; !ok {
		return 0, nil
	}
	delete(db.subscriptions, token)
	return 1, nil
}

func (db *MemDatabase) RemoveSubscriptionsByEmail(email string, list string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	var removed int64
	for token, subscription := range db.subscriptions {
		if subscription.Email != email {
			continue
		}
		if list != "" && subscription.List != list {
			continue
		}
		delete(db.subscriptions, token)
		removed++
	}
	return removed, nil
}

func (db *MemDatabase) GetSubscriptions(list string) ([]models.Subscription, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	subscriptions := []models.Subscription{}
	for _, subscription := range db.subscriptions {
		if list != "" && subscription.List != list {
			continue
		}
		subscriptions = append(subscriptions, subscription)
	}
	// Newest first; fall back to insertion order for equal timestamps.
	sort.Slice(subscriptions, func(i, j int) bool {
		if subscriptions[i].CreatedAt.Equal(subscriptions[j].CreatedAt) {
			return subscriptions[i].ID > subscriptions[j].ID
		}
		return subscriptions[i].CreatedAt.After(subscriptions[j].CreatedAt)
	})
	return subscriptions, nil
}

func (db *MemDatabase) GetConfirmedSubscriptions(list string) ([]models.Subscription, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	subscriptions := []models.Subscription{}
	for _, subscription := range db.subscriptions {
		if subscription.Confirmed && subscription.List == list {
			subscriptions = append(subscriptions, subscription)
		}
	}
	return subscriptions, nil
}

func (db *MemDatabase) ClearTables() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.subscriptions = make(map[string]models.Subscription)
	db.nextID = 1
	return nil
}
