package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/juho05/log"

	safejobauth "github.com/safejob-nl/auth"
	"github.com/safejob-nl/auth/config"
	"github.com/safejob-nl/auth/handlers"
	"github.com/safejob-nl/auth/repos"
	"github.com/safejob-nl/auth/repos/postgres"
	"github.com/safejob-nl/auth/repos/sqlite"
	"github.com/safejob-nl/auth/services"
)

func connectDB() (repos.DB, error) {
	con := config.DBConnection()
	if strings.HasPrefix(con, "postgres://") {
		return postgres.Connect(con)
	}
	return sqlite.Connect(con)
}

func run() error {
	db, err := connectDB()
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	emailService, err := services.NewEmailService(safejobauth.EmailFS)
	if err != nil {
		return fmt.Errorf("create email service: %w", err)
	}
	eventService := services.NewSecurityEventService(db.NewSecurityEventRepository())
	magicLinkService := services.NewMagicLinkService(db.NewMagicTokenRepository(), eventService, emailService)
	sessionService, err := services.NewSessionService(db.NewRefreshTokenRepository(), db.NewRevokedTokenRepository(), db.NewSystemRepository(), eventService)
	if err != nil {
		return fmt.Errorf("create session service: %w", err)
	}

	handler := handlers.NewHandler()
	handler.Router = chi.NewRouter()
	handler.MagicLinkService = magicLinkService
	handler.SessionService = sessionService
	handler.Directory = services.NewConfigDirectory()
	handler.RegisterRoutes()

	addr := fmt.Sprintf(":%d", config.Port())
	log.Infof("Listening on %s...", addr)
	return http.ListenAndServe(addr, handler)
}

func initLogger() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "4"
	}
	l, err := strconv.Atoi(level)
	if err != nil || l < 0 || l > 5 {
		log.Error("Invalid log level. Valid values: 0 (none), 1 (fatal), 2 (error), 3 (warning), 4 (info), 5 (trace)")
	}
	log.SetSeverity(log.Severity(l))

	if os.Getenv("LOG_FILE") != "" {
		appnd, _ := strconv.ParseBool(os.Getenv("LOG_APPEND"))
		if appnd {
			file, err := os.Open(os.Getenv("LOG_FILE"))
			if err != nil {
				log.Fatalf("Failed to open log file %s", err)
			}
			log.SetOutput(file)
		} else {
			file, err := os.Create(os.Getenv("LOG_FILE"))
			if err != nil {
				log.Fatalf("Failed to create log file %s", err)
			}
			log.SetOutput(file)
		}
	}
}

func main() {
	godotenv.Load()
	initLogger()

	err := run()
	if err != nil {
		log.Errorf("%s", err)
		os.Exit(1)
	}
}
