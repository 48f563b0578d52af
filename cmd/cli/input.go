package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is swapped out in tests to avoid touching the terminal.
var readPassword = term.ReadPassword

var errEmptyPassword = errors.New("password must not be empty")

// promptPassword reads a password from the terminal without echo.
func promptPassword(w io.Writer, label string) (string, error) {
	if _, err := fmt.Fprintf(w, "%s: ", label); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	s := strings.TrimRight(string(pw), "\r\n")
	if s == "" {
		return "", errEmptyPassword
	}
	return s, nil
}

// passwordOrPrompt returns the flag value when set and prompts otherwise.
func passwordOrPrompt(w io.Writer, flagValue, label string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return promptPassword(w, label)
}
