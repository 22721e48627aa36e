package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/rentals-backend/internal/users"
	"github.com/angelmondragon/rentals-backend/pkg/config"
	"github.com/angelmondragon/rentals-backend/pkg/db"
	"github.com/angelmondragon/rentals-backend/pkg/logger"
	"github.com/angelmondragon/rentals-backend/pkg/pagination"
	"github.com/angelmondragon/rentals-backend/pkg/security"
)

const tempPasswordLength = 16

func main() {
	logg := logger.New(logger.Options{ServiceName: "users"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "", "users command: create|passwd|activate|deactivate|list")
	username := flag.String("username", "", "username (create) or login (passwd, activate, deactivate)")
	email := flag.String("email", "", "email for create")
	fullName := flag.String("name", "", "full name for create")
	password := flag.String("password", "", "password; generated when empty")
	superuser := flag.Bool("superuser", false, "grant superuser on create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "users",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	svc, err := users.NewService(users.NewRepository(dbClient.DB()), cfg.Password)
	if err != nil {
		logg.Error(ctx, "failed to build users service", err)
		os.Exit(1)
	}

	if err := dispatch(ctx, svc, *cmd, options{
		username:  strings.TrimSpace(*username),
		email:     strings.TrimSpace(*email),
		fullName:  strings.TrimSpace(*fullName),
		password:  *password,
		superuser: *superuser,
	}); err != nil {
		logg.Error(ctx, "users command failed", err)
		os.Exit(1)
	}
}

type options struct {
	username  string
	email     string
	fullName  string
	password  string
	superuser bool
}

func dispatch(ctx context.Context, svc users.Service, cmd string, opts options) error {
	switch cmd {
	case "create":
		pw, generated, err := passwordOrTemp(opts.password)
		if err != nil {
			return err
		}
		input := users.CreateUserInput{
			Username:    opts.username,
			Email:       opts.email,
			Password:    pw,
			IsSuperuser: opts.superuser,
		}
		if opts.fullName != "" {
			input.FullName = &opts.fullName
		}
		user, err := svc.Create(ctx, input)
		if err != nil {
			return err
		}
		fmt.Printf("created user %s (%s) superuser=%t\n", user.Username, user.ID, user.IsSuperuser)
		if generated {
			fmt.Println("temporary password:", pw)
		}
		return nil

	case "passwd":
		if opts.username == "" {
			return fmt.Errorf("missing -username")
		}
		pw, generated, err := passwordOrTemp(opts.password)
		if err != nil {
			return err
		}
		if err := svc.SetPassword(ctx, opts.username, pw); err != nil {
			return err
		}
		fmt.Println("password updated for", opts.username)
		if generated {
			fmt.Println("temporary password:", pw)
		}
		return nil

	case "activate", "deactivate":
		if opts.username == "" {
			return fmt.Errorf("missing -username")
		}
		user, err := svc.SetActive(ctx, opts.username, cmd == "activate")
		if err != nil {
			return err
		}
		fmt.Printf("user %s active=%t\n", user.Username, user.IsActive)
		return nil

	case "list":
		params := pagination.Params{Limit: pagination.MaxLimit}
		for {
			page, err := svc.List(ctx, params)
			if err != nil {
				return err
			}
			for _, u := range page.Items {
				fmt.Printf("%s\t%s\t%s\tactive=%t\tsuperuser=%t\n", u.ID, u.Username, u.Email, u.IsActive, u.IsSuperuser)
			}
			if page.NextCursor == "" {
				return nil
			}
			params.Cursor = page.NextCursor
		}

	default:
		return fmt.Errorf("unknown -cmd value %q", cmd)
	}
}

func passwordOrTemp(pw string) (string, bool, error) {
	if pw != "" {
		return pw, false, nil
	}
	generated, err := security.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return "", false, err
	}
	return generated, true, nil
}
