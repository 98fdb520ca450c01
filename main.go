package main

import (
	"log"
	"net/http"
	"os"
	"strings"

	raven "github.com/getsentry/raven-go"
	"github.com/joho/godotenv"

	"github.com/lunamail/listserv-backend/api"
	"github.com/lunamail/listserv-backend/db"
	"github.com/lunamail/listserv-backend/email"
	"github.com/lunamail/listserv-backend/util"
)

func main() {
	godotenv.Load()
	raven.SetDSN(os.Getenv("SENTRY_URL"))

	cfg, err := db.LoadEnvironmentVariables()
	if err != nil {
		log.Fatal(err)
	}
	var database db.Database
	if os.Getenv("DB_HOST") == "" {
		// No Postgres configured: run against the in-memory store. Useful
		// for local development; state dies with the process.
		log.Println("DB_HOST not set, using in-memory database")
		database = db.InitMemDatabase()
	} else {
		sqldb, err := db.InitSQLDatabase(cfg)
		if err != nil {
			log.Fatal(err)
		}
		database = sqldb
	}

	emailConfig, err := email.MakeConfigFromEnv()
	if err != nil {
		log.Fatalf("couldn't connect to mailserver: %v", err)
	}

	varErrs := util.Errors{}
	adminSecret := util.RequireEnv("ADMIN_SECRET", &varErrs)
	if len(varErrs) > 0 {
		log.Fatal(varErrs)
	}

	a := api.API{
		Database: database,
		Emailer:  emailConfig,
		Config:   api.Config{AdminSecret: adminSecret},
	}
	a.ParseTemplates()

	mux := http.NewServeMux()
	a.RegisterHandlers(mux)
	handler := middleware(mux, allowedOrigins(os.Getenv("ALLOWED_ORIGINS")))

	portString, err := util.ValidPort(cfg.Port)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("listening on %s", portString)
	log.Fatal(http.ListenAndServe(portString, handler))
}

// allowedOrigins splits the comma-separated env value into the exact-match
// allow-list the CORS middleware checks against.
func allowedOrigins(env string) []string {
	origins := []string{}
	for _, origin := range strings.Split(env, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
