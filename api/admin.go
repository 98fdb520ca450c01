package api

import (
	"crypto/subtle"
	"errors"
	"log"
	"net/http"
	"strings"

	raven "github.com/getsentry/raven-go"

	"github.com/lunamail/listserv-backend/db"
	"github.com/lunamail/listserv-backend/models"
)

// adminOnly wraps a handler with the bearer-credential check. The check runs
// before the handler, so a rejected request never touches the store. Failure
// is always a 401, never a 404: an endpoint's existence is not a secret.
func (api *API) adminOnly(handler apiHandler) apiHandler {
	return func(r *http.Request) response {
		if !api.authorized(r) {
			return response{StatusCode: http.StatusUnauthorized, Message: "unauthorized"}
		}
		return handler(r)
	}
}

func (api *API) authorized(r *http.Request) bool {
	if api.Config.AdminSecret == "" {
		// Refuse everything rather than run with an empty credential.
		return false
	}
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	given := strings.TrimPrefix(header, prefix)
	return subtle.ConstantTimeCompare([]byte(given), []byte(api.Config.AdminSecret)) == 1
}

type sendRequest struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	List    string `json:"list"`
}

// Send is the handler for /send
//   POST /send  (admin)
//        {"subject": ..., "html": ..., "list": ...}
//        Broadcasts to every confirmed subscriber of the list. A failed
//        recipient is counted and skipped, not fatal: one dead mailbox must
//        not block the rest of the list.
func (api API) send(r *http.Request) response {
	if r.Method != http.MethodPost {
		return response{StatusCode: http.StatusMethodNotAllowed,
			Message: "/send only accepts POST requests"}
	}
	var body sendRequest
	if err := decodeJSONBody(r, &body); err != nil {
		return badRequest(err.Error())
	}
	body.List = strings.TrimSpace(body.List)
	if body.Subject == "" || body.HTML == "" || body.List == "" {
		return badRequest("subject, html and list are all required")
	}
	recipients, err := api.Database.GetConfirmedSubscriptions(body.List)
	if err != nil {
		return serverError(err.Error())
	}
	var sent, failed int
	for _, subscription := range recipients {
		if err := api.Emailer.SendBroadcast(subscription, body.Subject, body.HTML); err != nil {
			log.Printf("broadcast to %s failed: %v", subscription.Email, err)
			raven.CaptureError(err, map[string]string{"list": body.List})
			failed++
			continue
		}
		sent++
	}
	return response{
		StatusCode: http.StatusOK,
		Response:   map[string]int{"sent": sent, "failed": failed},
	}
}

// AdminAdd is the handler for /admin/add
//   POST /admin/add  (admin)
//        {"email": ..., "list": ...}
//        Backfills a known-good address: the record is created already
//        confirmed and no confirmation e-mail goes out.
func (api API) adminAdd(r *http.Request) response {
	if r.Method != http.MethodPost {
		return response{StatusCode: http.StatusMethodNotAllowed,
			Message: "/admin/add only accepts POST requests"}
	}
	var body subscribeRequest
	if err := decodeJSONBody(r, &body); err != nil {
		return badRequest(err.Error())
	}
	subscription, err := models.NewConfirmedSubscription(body.Email, body.List)
	if err != nil {
		return badRequest(err.Error())
	}
	if err := subscription.Create(api.Database); err != nil {
		if errors.Is(err, db.ErrUniqueViolation) {
			return response{StatusCode: http.StatusConflict,
				Message: "already subscribed"}
		}
		return serverError(err.Error())
	}
	return response{
		StatusCode: http.StatusOK,
		Response:   map[string]bool{"ok": true},
	}
}

// AdminList is the handler for /admin/list
//   GET /admin/list?list=<list>  (admin)
//        Lists subscriptions newest first, optionally filtered to one list.
//        No pagination; intended for operator-scale subscriber counts.
func (api API) adminList(r *http.Request) response {
	if r.Method != http.MethodGet {
		return response{StatusCode: http.StatusMethodNotAllowed,
			Message: "/admin/list only accepts GET requests"}
	}
	list := strings.TrimSpace(r.URL.Query().Get("list"))
	subscriptions, err := api.Database.GetSubscriptions(list)
	if err != nil {
		return serverError(err.Error())
	}
	return response{StatusCode: http.StatusOK, Response: subscriptions}
}

type deleteRequest struct {
	Email string `json:"email"`
	List  string `json:"list"`
}

// AdminDelete is the handler for /admin/delete
//   POST /admin/delete  (admin)
//        {"email": ..., "list": <optional>}
//        With a list, removes the one scoped record; without, removes the
//        address from every list. Reports the number of rows removed.
func (api API) adminDelete(r *http.Request) response {
	if r.Method != http.MethodPost {
		return response{StatusCode: http.StatusMethodNotAllowed,
			Message: "/admin/delete only accepts POST requests"}
	}
	var body deleteRequest
	if err := decodeJSONBody(r, &body); err != nil {
		return badRequest(err.Error())
	}
	if strings.TrimSpace(body.Email) == "" {
		return badRequest("email is required")
	}
	email, err := models.NormalizeEmail(body.Email)
	if err != nil {
		return badRequest(err.Error())
	}
	removed, err := api.Database.RemoveSubscriptionsByEmail(email, strings.TrimSpace(body.List))
	if err != nil {
		return serverError(err.Error())
	}
	if removed == 0 {
		return notFound("no matching subscriptions")
	}
	return response{
		StatusCode: http.StatusOK,
		Response:   map[string]interface{}{"ok": true, "deleted": removed},
	}
}
