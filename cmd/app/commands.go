// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"codeberg.org/oliverandrich/infographic-api/internal/config"
	"codeberg.org/oliverandrich/infographic-api/internal/database"
	"codeberg.org/oliverandrich/infographic-api/internal/repository"
	"codeberg.org/oliverandrich/infographic-api/internal/server"
	authsvc "codeberg.org/oliverandrich/infographic-api/internal/services/auth"
	"codeberg.org/oliverandrich/infographic-api/internal/services/email"
	"codeberg.org/oliverandrich/infographic-api/internal/services/token"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
	"golang.org/x/term"
)

// withDB opens the configured database for the duration of fn.
func withDB(cmd *cli.Command, fn func(cfg *config.Config, db *sqlx.DB) error) error {
	cfg := config.NewFromCLI(cmd)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	return fn(cfg, db)
}

func migrateCommand() *cli.Command {
	step := func(name, usage string, run func(*sqlx.DB) error) *cli.Command {
		return &cli.Command{
			Name:  name,
			Usage: usage,
			Action: func(_ context.Context, cmd *cli.Command) error {
				return withDB(cmd, func(_ *config.Config, db *sqlx.DB) error {
					return run(db)
				})
			},
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			step("up", "Apply all pending migrations", database.RunMigrations),
			step("down", "Roll back the latest migration", database.MigrateDown),
			step("reset", "Roll back every migration", database.MigrateReset),
		},
	}
}

func createAdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-admin",
		Usage: "Create an admin account or promote an existing user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Admin email address", Required: true},
			&cli.StringFlag{Name: "name", Usage: "Display name for a new account", Value: "Admin"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withDB(cmd, func(cfg *config.Config, db *sqlx.DB) error {
				logger := server.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
				repo := repository.New(db)
				svc := authsvc.NewService(repo, email.NewService(email.NewLogSender(logger)), cfg, logger)

				params := authsvc.RegisterParams{
					Name:  cmd.String("name"),
					Email: cmd.String("email"),
				}
				existing, err := svc.AdminCandidate(ctx, params.Email)
				if err != nil {
					return err
				}
				if existing == nil {
					password, err := readPassword(os.Stdin, os.Stdout)
					if err != nil {
						return err
					}
					params.Password = password
				}

				user, created, err := svc.CreateAdmin(ctx, params)
				if err != nil {
					return err
				}
				admins, err := repo.CountAdmins(ctx)
				if err != nil {
					return err
				}
				if created {
					fmt.Printf("Created admin %s (%s), %d admins in total\n", user.Email, user.ID, admins)
				} else {
					fmt.Printf("%s is an admin, %d admins in total\n", user.Email, admins)
				}
				return nil
			})
		},
	}
}

// readPassword prompts twice without echo on a terminal and reads a single
// line otherwise.
func readPassword(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	fmt.Fprint(out, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func generateSecretCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate-secret",
		Usage: "Print a random secret for jwt-secret",
		Action: func(_ context.Context, _ *cli.Command) error {
			secret, err := token.GenerateSigningKey(token.SigningKeyLength)
			if err != nil {
				return err
			}
			fmt.Println(secret)
			return nil
		},
	}
}
