// Command adduser creates an email and password account without going
// through the sign-up form.
//
//	adduser -email ada@example.com -name "Ada Lovelace"
//
// The password is prompted for on a terminal, or read from the first line
// of stdin otherwise.
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

	"pennywise/internal/auth"
	"pennywise/internal/backend"
	"pennywise/internal/cli"
	"pennywise/internal/config"
	"pennywise/internal/core"
)

type userCreator interface {
	CreatePasswordUser(ctx context.Context, email, password, fullName string) (core.User, error)
}

// connectFunc opens the user store; the returned func releases it.
type connectFunc func(ctx context.Context) (userCreator, func() error, error)

func main() {
	cli.LoadEnvFile()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr, connect))
}

func connect(ctx context.Context) (userCreator, func() error, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger := cli.SetupLogger("warn")
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, nil, err
	}
	return result.AuthService, result.Cleanup, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, connect connectFunc) int {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)
	email := fs.String("email", "", "account email (required)")
	name := fs.String("name", "", "full name shown in the navigation bar")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*email) == "" {
		fmt.Fprintln(stderr, "adduser: -email is required")
		fs.Usage()
		return 2
	}

	password, err := readPassword(stdin, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "adduser: %v\n", err)
		return 1
	}

	users, closeFn, err := connect(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "adduser: %v\n", err)
		return 1
	}
	defer func() {
		if closeFn != nil {
			_ = closeFn()
		}
	}()

	user, err := users.CreatePasswordUser(ctx, *email, password, *name)
	if err != nil {
		var ae *auth.Error
		if errors.As(err, &ae) {
			fmt.Fprintf(stderr, "adduser: %s\n", ae.Message)
		} else {
			fmt.Fprintf(stderr, "adduser: %v\n", err)
		}
		return 1
	}
	fmt.Fprintf(stdout, "created %s (%s)\n", user.Email, user.ID)
	return 0
}

// readPassword prompts twice on a terminal. Piped input is read as a single
// line and is not echoed back.
func readPassword(stdin io.Reader, stderr io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(stderr, "Password: ")
		first, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprint(stderr, "Confirm password: ")
		second, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password given on stdin")
	}
	return line, nil
}
