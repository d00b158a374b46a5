// Package passphrase resolves keystore passphrases for the lulo binaries.
package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// DefaultEnv is consulted before prompting.
const DefaultEnv = "LULO_KEYSTORE_PASSPHRASE"

var ErrMismatch = errors.New("passphrase: entries do not match")

// Source resolves a passphrase once from an environment variable or an
// interactive prompt and caches the result.
type Source struct {
	envVar  string
	label   string
	confirm bool

	lookupEnv  func(string) (string, bool)
	isTerminal func() bool
	readSecret func() ([]byte, error)
	prompt     io.Writer

	once  sync.Once
	value string
	err   error
}

type Option func(*Source)

// WithConfirm prompts twice and requires both entries to match. Used when a
// new keystore is written.
func WithConfirm() Option {
	return func(s *Source) { s.confirm = true }
}

// WithLabel names the secret in prompts and errors.
func WithLabel(label string) Option {
	return func(s *Source) {
		if strings.TrimSpace(label) != "" {
			s.label = strings.TrimSpace(label)
		}
	}
}

func NewSource(envVar string, opts ...Option) *Source {
	s := &Source{
		envVar:     strings.TrimSpace(envVar),
		label:      "keystore passphrase",
		lookupEnv:  os.LookupEnv,
		isTerminal: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
		readSecret: func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) },
		prompt:     os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the cached passphrase, resolving it on first use. An environment
// value is used verbatim; whitespace-only values are rejected either way.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		s.value, s.err = s.resolve()
	})
	return s.value, s.err
}

func (s *Source) resolve() (string, error) {
	if s.envVar != "" {
		if value, ok := s.lookupEnv(s.envVar); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but empty", s.envVar)
			}
			return value, nil
		}
	}
	if !s.isTerminal() {
		if s.envVar != "" {
			return "", fmt.Errorf("%s required; set %s or run interactively", s.label, s.envVar)
		}
		return "", fmt.Errorf("%s required and no terminal available", s.label)
	}
	first, err := s.read("Enter " + s.label + ": ")
	if err != nil {
		return "", err
	}
	if !s.confirm {
		return first, nil
	}
	second, err := s.read("Repeat " + s.label + ": ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", ErrMismatch
	}
	return first, nil
}

func (s *Source) read(prompt string) (string, error) {
	fmt.Fprint(s.prompt, prompt)
	raw, err := s.readSecret()
	fmt.Fprintln(s.prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", s.label, err)
	}
	value := string(raw)
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%s cannot be empty", s.label)
	}
	return value, nil
}
