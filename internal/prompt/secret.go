package prompt

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrNotTerminal is returned when a secret is requested but stdin is not a terminal.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// ReadSecret asks question on out and reads a line from the terminal without
// echoing it.
func ReadSecret(out io.Writer, question string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNotTerminal
	}
	fmt.Fprintf(out, "%s: ", question)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(b), nil
}

// NewSecret asks for a passphrase twice and fails when the entries differ
// or are empty.
func NewSecret(out io.Writer, question string) (string, error) {
	first, err := ReadSecret(out, question)
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("passphrase cannot be empty")
	}
	second, err := ReadSecret(out, "Repeat to confirm")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passphrases do not match")
	}
	return first, nil
}
