package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/sydlexius/hashscan/internal/encryption"
)

var stdin = bufio.NewReader(os.Stdin)

// runSeal prints the sealed form of a secret read from stdin, for pasting
// into the config file.
func runSeal() error {
	passphrase := os.Getenv("HS_SECRET_PASSPHRASE")
	if passphrase == "" {
		p, err := readSecret("Passphrase: ")
		if err != nil {
			return err
		}
		passphrase = p
	}
	sealer, err := encryption.NewSealer(passphrase)
	if err != nil {
		return err
	}

	secret, err := readSecret("Secret: ")
	if err != nil {
		return err
	}
	if secret == "" {
		return errors.New("seal: empty secret")
	}
	sealed, err := sealer.Seal(secret)
	if err != nil {
		return err
	}
	fmt.Println(sealed)
	return nil
}

// readSecret reads one line without echo when stdin is a terminal.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret: %w", err)
		}
		return string(b), nil
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
