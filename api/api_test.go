package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/lunamail/listserv-backend/db"
	"github.com/lunamail/listserv-backend/models"
)

const testAdminSecret = "test-admin-secret"

var api *API
var server *httptest.Server
var emailer *mockEmailer

// Mock emailer: records what would have gone out, optionally failing for
// chosen addresses.
type mockEmailer struct {
	mu            sync.Mutex
	confirmations []models.Subscription
	broadcasts    []models.Subscription
	failFor       map[string]bool
}

func (e *mockEmailer) SendConfirmation(s models.Subscription) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failFor[s.Email] {
		return io.ErrClosedPipe
	}
	e.confirmations = append(e.confirmations, s)
	return nil
}

func (e *mockEmailer) SendBroadcast(s models.Subscription, subject string, htmlBody string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failFor[s.Email] {
		return io.ErrClosedPipe
	}
	e.broadcasts = append(e.broadcasts, s)
	return nil
}

func (e *mockEmailer) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirmations = nil
	e.broadcasts = nil
	e.failFor = map[string]bool{}
}

func (e *mockEmailer) lastConfirmation(t *testing.T) models.Subscription {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.confirmations) == 0 {
		t.Fatal("no confirmation e-mail was sent")
	}
	return e.confirmations[len(e.confirmations)-1]
}

func TestMain(m *testing.M) {
	emailer = &mockEmailer{failFor: map[string]bool{}}
	api = &API{
		Database: db.InitMemDatabase(),
		Emailer:  emailer,
		Config:   Config{AdminSecret: testAdminSecret},
	}
	api.ParseTemplates()
	mux := http.NewServeMux()
	api.RegisterHandlers(mux)
	server = httptest.NewServer(mux)
	defer server.Close()
	code := m.Run()
	os.Exit(code)
}

func teardown() {
	api.Database.ClearTables()
	emailer.reset()
}

// postJSON issues a POST with a JSON body, attaching the bearer token when
// one is given.
func postJSON(t *testing.T, path string, payload interface{}, bearer string) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest("POST", server.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func get(t *testing.T, path string, bearer string) *http.Response {
	t.Helper()
	req, err := http.NewRequest("GET", server.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("could not decode response body: %v", err)
	}
}

func listSubscriptions(t *testing.T, list string) []models.Subscription {
	t.Helper()
	path := "/admin/list"
	if list != "" {
		path += "?list=" + list
	}
	resp := get(t, path, testAdminSecret)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/admin/list returned %d", resp.StatusCode)
	}
	var subscriptions []models.Subscription
	decodeBody(t, resp, &subscriptions)
	return subscriptions
}

func TestUnknownRouteIs404(t *testing.T) {
	defer teardown()
	resp := get(t, "/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPing(t *testing.T) {
	resp := get(t, "/ping", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
