package api

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"

	raven "github.com/getsentry/raven-go"

	"github.com/lunamail/listserv-backend/db"
	"github.com/lunamail/listserv-backend/models"
)

////////////////////////////////
//  *****   REST API   *****  //
////////////////////////////////

// Config carries the request-independent settings handlers need. It is
// built once at startup and passed in; no handler reads the environment.
type Config struct {
	// AdminSecret is the shared bearer credential for operator endpoints.
	AdminSecret string
}

// API is the HTTP API that this service provides.
// Successful requests respond with the documented JSON body for their
// route (or a small HTML page for the link endpoints); failed requests
// respond with {"error": "<message>"}.
type API struct {
	Database  db.Database
	Emailer   EmailSender
	Config    Config
	Templates map[string]*template.Template
}

// EmailSender interface wraps a back-end that can send e-mails.
type EmailSender interface {
	// SendConfirmation sends the double-opt-in confirmation e-mail for a
	// freshly created subscription.
	SendConfirmation(models.Subscription) error
	// SendBroadcast sends one broadcast message to one subscriber.
	SendBroadcast(subscription models.Subscription, subject string, htmlBody string) error
}

type response struct {
	StatusCode   int
	Message      string
	Response     interface{}
	templateName string
}

type apiHandler func(r *http.Request) response

func (api *API) wrapper(handler apiHandler) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		response := handler(r)
		if response.StatusCode == http.StatusInternalServerError {
			packet := raven.NewPacket(response.Message, raven.NewHttp(r))
			raven.Capture(packet, nil)
		}
		if response.templateName != "" && response.StatusCode < http.StatusBadRequest {
			api.writeHTML(w, response)
		} else {
			api.writeJSON(w, response)
		}
	}
}

func pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

func notFoundHandler(r *http.Request) response {
	return response{StatusCode: http.StatusNotFound, Message: "not found"}
}

// RegisterHandlers binds API functions to the given http server.
// Route classification: /subscribe, /confirm and /unsubscribe are public
// (the latter two carry their own token credential); everything under the
// operator surface goes through adminOnly before the handler runs.
func (api *API) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/subscribe", api.wrapper(api.subscribe))
	mux.HandleFunc("/confirm", api.wrapper(api.confirm))
	mux.HandleFunc("/unsubscribe", api.wrapper(api.unsubscribe))
	mux.HandleFunc("/send", api.wrapper(api.adminOnly(api.send)))
	mux.HandleFunc("/admin/add", api.wrapper(api.adminOnly(api.adminAdd)))
	mux.HandleFunc("/admin/list", api.wrapper(api.adminOnly(api.adminList)))
	mux.HandleFunc("/admin/delete", api.wrapper(api.adminOnly(api.adminDelete)))
	mux.HandleFunc("/ping", pingHandler)
	mux.HandleFunc("/", api.wrapper(notFoundHandler))
}

// Retrieves `param` as a query parameter from `http.Request` r. Unlike
// form fields, the value is not canonicalized: tokens are credentials and
// must compare byte-for-byte.
func getParam(param string, r *http.Request) (string, error) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return "", fmt.Errorf("query parameter %s not specified", param)
	}
	return value, nil
}

// decodeJSONBody reads a request body into the given typed struct. Handlers
// only ever see the validated result, never a raw map.
func decodeJSONBody(r *http.Request, into interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return fmt.Errorf("could not decode JSON body")
	}
	return nil
}

// Writes the response as JSON to http.ResponseWriter `w`. Failures carry an
// {"error": ...} body; a 500's real message is logged, not leaked.
func (api *API) writeJSON(w http.ResponseWriter, apiResponse response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(apiResponse.StatusCode)
	body := apiResponse.Response
	if apiResponse.StatusCode >= http.StatusBadRequest {
		message := apiResponse.Message
		if apiResponse.StatusCode == http.StatusInternalServerError {
			log.Printf("request failed: %s", message)
			message = "internal error"
		}
		body = map[string]string{"error": message}
	}
	b, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		msg := fmt.Sprintf("Internal error: could not format JSON. (%s)\n", err)
		http.Error(w, msg, http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "%s\n", b)
}

func (api *API) writeHTML(w http.ResponseWriter, apiResponse response) {
	tmpl, ok := api.Templates[apiResponse.templateName]
	if !ok {
		err := fmt.Errorf("Template not found: %s", apiResponse.templateName)
		raven.CaptureError(err, nil)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(apiResponse.StatusCode)
	if err := tmpl.Execute(w, apiResponse.Response); err != nil {
		log.Println(err)
		raven.CaptureError(err, nil)
	}
}

func badRequest(format string, a ...interface{}) response {
	return response{
		StatusCode: http.StatusBadRequest,
		Message:    fmt.Sprintf(format, a...),
	}
}

func notFound(format string, a ...interface{}) response {
	return response{
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf(format, a...),
	}
}

func serverError(format string, a ...interface{}) response {
	return response{
		StatusCode: http.StatusInternalServerError,
		Message:    fmt.Sprintf(format, a...),
	}
}
