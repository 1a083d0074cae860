package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"pennywise/internal/auth"
	"pennywise/internal/storage/memory"
)

func testConnect(t *testing.T) (connectFunc, *auth.Service) {
	t.Helper()
	svc, err := auth.NewService(memory.New(), nil, auth.Config{
		SiteURL:    "http://localhost:8081",
		JWTSecret:  "test-secret",
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)
	return func(context.Context) (userCreator, func() error, error) {
		return svc, nil, nil
	}, svc
}

func TestRun(t *testing.T) {
	connect, svc := testConnect(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(),
		[]string{"-email", "ada@example.com", "-name", "Ada Lovelace"},
		strings.NewReader("analytical\n"), &stdout, &stderr, connect)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "created ada@example.com")

	session, err := svc.SignInWithPassword(context.Background(), "ada@example.com", "analytical")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", session.User.FullName)

	stdout.Reset()
	code = run(context.Background(),
		[]string{"-email", "ada@example.com"},
		strings.NewReader("analytical\n"), &stdout, &stderr, connect)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "User already registered")
}

func TestRunValidation(t *testing.T) {
	connect, _ := testConnect(t)

	tests := []struct {
		name   string
		args   []string
		stdin  string
		code   int
		stderr string
	}{
		{name: "missing email", args: nil, stdin: "analytical\n", code: 2, stderr: "-email is required"},
		{name: "unknown flag", args: []string{"-admin"}, stdin: "", code: 2, stderr: "flag provided but not defined"},
		{name: "empty password", args: []string{"-email", "ada@example.com"}, stdin: "", code: 1, stderr: "no password given on stdin"},
		{name: "weak password", args: []string{"-email", "ada@example.com"}, stdin: "abc", code: 1, stderr: "Password should be at least 6 characters"},
		{name: "bad email", args: []string{"-email", "not-an-email"}, stdin: "analytical\n", code: 1, stderr: "invalid format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, strings.NewReader(tt.stdin), &stdout, &stderr, connect)
			assert.Equal(t, tt.code, code)
			assert.Contains(t, stderr.String(), tt.stderr)
			assert.Empty(t, stdout.String())
		})
	}
}

func TestRunConnectFailure(t *testing.T) {
	var stdout, stderr bytes.Buffer
	failing := func(context.Context) (userCreator, func() error, error) {
		return nil, nil, errors.New("configuration validation failed")
	}
	code := run(context.Background(), []string{"-email", "ada@example.com"}, strings.NewReader("analytical\n"), &stdout, &stderr, failing)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "configuration validation failed")
}
