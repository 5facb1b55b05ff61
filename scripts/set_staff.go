package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"habittracker/internal/config"
	"habittracker/internal/database"
	"habittracker/internal/models"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
		email      = flag.String("email", "", "account email")
		revoke     = flag.Bool("revoke", false, "remove staff rights instead of granting them")
		list       = flag.Bool("list", false, "print staff accounts and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(cfg.Database, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *list {
		users, err := db.GetAllUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			if u.IsStaff {
				fmt.Printf("%d\t%s\n", u.ID, u.Email)
			}
		}
		return nil
	}

	if *email == "" {
		return fmt.Errorf("-email is required")
	}

	user, err := db.GetUserByEmail(ctx, models.NormalizeEmail(*email))
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("no account with email %s", *email)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", *email, err)
	}

	if err = db.SetUserStaff(ctx, user.ID, !*revoke); err != nil {
		return fmt.Errorf("update %s: %w", user.Email, err)
	}

	fmt.Printf("done: %s staff=%t\n", user.Email, !*revoke)
	return nil
}
