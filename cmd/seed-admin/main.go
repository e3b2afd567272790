package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"accounting/internal/auth"
	"accounting/internal/cli"
	"accounting/internal/config"
	"accounting/internal/log"
	"accounting/internal/storage"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	if err := run(context.Background(), os.Args[1:], cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, cfg *config.Config, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("seed-admin", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", cfg.AdminEmail, "Admin email")
	passwordFlag := fs.String("password", "", "Password (optional, falls back to ADMIN_PASSWORD, then a prompt)")
	driver := fs.String("driver", cfg.DatabaseDriver, "Database driver (sqlite or postgres)")
	dsn := fs.String("dsn", cfg.DSN(), "Database DSN or SQLite path")

	if err := fs.Parse(args); err != nil {
		return err
	}

	password := *passwordFlag
	if password == "" {
		password = cfg.AdminPassword
	}
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	dialect, err := storage.DialectFor(*driver)
	if err != nil {
		return err
	}
	store, err := storage.Open(ctx, dialect, *dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentAuth,
		Output:    stderr,
	})
	// Tokens are never issued here, so the issuer only needs a placeholder secret.
	svc := auth.NewService(store, auth.NewIssuer("seed-admin", cfg.AccessTokenTTL, cfg.RefreshTokenTTL, nil), logger)

	created, err := svc.EnsureAdmin(ctx, strings.ToLower(strings.TrimSpace(*email)), password)
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	if created {
		fmt.Fprintf(stdout, "Admin %s created\n", *email)
	} else {
		fmt.Fprintf(stdout, "Admin %s already existed, password and role reset\n", *email)
	}
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
