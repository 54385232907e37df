package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/juho05/log"

	"github.com/safejob-nl/auth/config"
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

func revoke(sessionService services.SessionService, args []string) error {
	if len(args) == 0 {
		fmt.Println("USAGE safe-job-auth-cli revoke <token_id> [reason]")
		os.Exit(1)
	}
	reason := "administrative"
	if len(args) > 1 {
		reason = args[1]
	}
	return sessionService.Revoke(context.Background(), args[0], reason)
}

func revokeIdentity(sessionService services.SessionService, args []string) error {
	if len(args) == 0 {
		fmt.Println("USAGE safe-job-auth-cli revoke-identity <email> [reason]")
		os.Exit(1)
	}
	reason := "administrative"
	if len(args) > 1 {
		reason = args[1]
	}
	return sessionService.RevokeIdentity(context.Background(), strings.ToLower(args[0]), reason)
}

func events(eventService services.SecurityEventService, args []string) error {
	if len(args) == 0 {
		fmt.Println("USAGE safe-job-auth-cli events <email>")
		os.Exit(1)
	}
	list, err := eventService.ListByIdentity(context.Background(), strings.ToLower(args[0]), 50)
	if err != nil {
		return err
	}
	for _, e := range list {
		fmt.Printf("%s %-20s ip=%-15s %s\n", time.Unix(e.CreatedAt, 0).Format(time.RFC3339), e.Kind, e.SourceIP, e.Metadata)
	}
	return nil
}

func cleanup(db repos.DB) error {
	ctx := context.Background()
	now := time.Now()

	n, err := db.NewMagicTokenRepository().DeleteExpiredBefore(ctx, now)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d expired magic link tokens\n", n)

	n, err = db.NewRefreshTokenRepository().DeleteExpiredBefore(ctx, now)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d expired refresh tokens\n", n)

	n, err = db.NewRevokedTokenRepository().DeleteExpiredBefore(ctx, now)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d expired revocation records\n", n)

	n, err = db.NewSecurityEventRepository().DeleteBefore(ctx, now.Add(-config.EventRetention()))
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d security events past retention\n", n)
	return nil
}

func run(args []string) error {
	db, err := connectDB()
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	eventService := services.NewSecurityEventService(db.NewSecurityEventRepository())

	switch args[0] {
	case "revoke", "revoke-identity":
		sessionService, err := services.NewSessionService(db.NewRefreshTokenRepository(), db.NewRevokedTokenRepository(), db.NewSystemRepository(), eventService)
		if err != nil {
			return err
		}
		if args[0] == "revoke-identity" {
			return revokeIdentity(sessionService, args[1:])
		}
		return revoke(sessionService, args[1:])
	case "events":
		return events(eventService, args[1:])
	case "cleanup":
		return cleanup(db)
	default:
		usage()
		return nil
	}
}

func usage() {
	fmt.Println("USAGE safe-job-auth-cli <command>")
	fmt.Println("COMMANDS:")
	fmt.Println("  revoke <token_id> [reason]        mark a token identifier unusable")
	fmt.Println("  revoke-identity <email> [reason]  revoke all refresh tokens of an identity")
	fmt.Println("  events <email>                    show recent security events for an identity")
	fmt.Println("  cleanup                           delete expired tokens and stale events")
}

func main() {
	godotenv.Load()
	log.SetSeverity(log.ERROR)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}
