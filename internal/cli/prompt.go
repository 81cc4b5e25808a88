package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"

	"github.com/Cemililkim/Clerk/internal/crypto"
)

func readPassword(label string) ([]byte, error) {
	fmt.Fprint(os.Stderr, label)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, errors.New("empty password")
	}
	return pw, nil
}

// readNewPassword prompts twice and returns the confirmed password.
func readNewPassword(label string) ([]byte, error) {
	pw, err := readPassword(label)
	if err != nil {
		return nil, err
	}
	again, err := readPassword("Confirm password: ")
	if err != nil {
		crypto.Zero(pw)
		return nil, err
	}
	match := string(pw) == string(again)
	crypto.Zero(again)
	if !match {
		crypto.Zero(pw)
		return nil, errors.New("passwords do not match")
	}
	return pw, nil
}

func confirm(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// withSpinner shows progress while fn runs; key derivation takes a moment on
// purpose. Skipped when stderr is not a terminal.
func withSpinner(label string, fn func() error) error {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return fn()
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + label + "..."
	s.Start()
	err := fn()
	s.Stop()
	return err
}
