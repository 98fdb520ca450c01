package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/lunamail/listserv-backend/db"
	"github.com/lunamail/listserv-backend/models"
)

type subscribeRequest struct {
	Email string `json:"email"`
	List  string `json:"list"`
}

// Subscribe is the handler for /subscribe
//   POST /subscribe
//        {"email": ..., "list": ...}
//        Creates a pending subscription and sends the confirmation e-mail.
func (api API) subscribe(r *http.Request) response {
	if r.Method != http.MethodPost {
		return response{StatusCode: http.StatusMethodNotAllowed,
			Message: "/subscribe only accepts POST requests"}
	}
	var body subscribeRequest
	if err := decodeJSONBody(r, &body); err != nil {
		return badRequest(err.Error())
	}
	subscription, err := models.NewSubscription(body.Email, body.List)
	if err != nil {
		return badRequest(err.Error())
	}
	// The unique index arbitrates concurrent subscribes; a conflict reveals
	// nothing about whether the existing record is confirmed.
	if err := subscription.Create(api.Database); err != nil {
		if errors.Is(err, db.ErrUniqueViolation) {
			return response{StatusCode: http.StatusConflict,
				Message: "You're already subscribed!"}
		}
		return serverError(err.Error())
	}
	// A failed send leaves the row pending, so a retried subscribe gets a
	// conflict instead of a silent duplicate.
	if err := api.Emailer.SendConfirmation(subscription); err != nil {
		log.Print(err)
		return serverError("Unable to send confirmation e-mail")
	}
	return response{
		StatusCode: http.StatusOK,
		Response:   map[string]bool{"ok": true},
	}
}

// Confirm is the handler for /confirm
//   GET /confirm?token=<token>
//        Flips the token's subscription to confirmed and shows an HTML page.
//        Repeat confirms succeed: the flag only ever moves false to true.
func (api API) confirm(r *http.Request) response {
	if r.Method != http.MethodGet {
		return response{StatusCode: http.StatusMethodNotAllowed,
			Message: "/confirm only accepts GET requests"}
	}
	token, err := getParam("token", r)
	if err != nil {
		return badRequest(err.Error())
	}
	subscription, err := api.Database.GetSubscriptionByToken(token)
	if errors.Is(err, db.ErrNotFound) {
		return notFound("unknown token")
	}
	if err != nil {
		return serverError(err.Error())
	}
	if err := models.Confirm(api.Database, token); err != nil {
		if errors.Is(err, models.ErrUnknownToken) {
			return notFound("unknown token")
		}
		return serverError(err.Error())
	}
	return response{
		StatusCode:   http.StatusOK,
		Response:     subscription,
		templateName: "confirmed",
	}
}

// Unsubscribe is the handler for /unsubscribe
//   GET /unsubscribe?token=<token>
//        Deletes the token's subscription and shows an HTML page. Possession
//        of the token is the entire credential; no login step, so the link
//        stays clickable from any mail client.
func (api API) unsubscribe(r *http.Request) response {
	if r.Method != http.MethodGet {
		return response{StatusCode: http.StatusMethodNotAllowed,
			Message: "/unsubscribe only accepts GET requests"}
	}
	token, err := getParam("token", r)
	if err != nil {
		return badRequest(err.Error())
	}
	subscription, err := api.Database.GetSubscriptionByToken(token)
	if errors.Is(err, db.ErrNotFound) {
		return notFound("unknown token")
	}
	if err != nil {
		return serverError(err.Error())
	}
	if err := models.Unsubscribe(api.Database, token); err != nil {
		if errors.Is(err, models.ErrUnknownToken) {
			return notFound("unknown token")
		}
		return serverError(err.Error())
	}
	return response{
		StatusCode:   http.StatusOK,
		Response:     subscription,
		templateName: "unsubscribed",
	}
}
