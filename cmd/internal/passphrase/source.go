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

// Source lazily resolves the payer keystore passphrase from an environment
// variable or by prompting the operator. The first result is cached.
type Source struct {
	envVar string
	prompt func() (string, error)

	once  sync.Once
	value string
	err   error
}

// NewSource constructs a passphrase source that checks envVar before
// prompting on the terminal.
func NewSource(envVar string) *Source {
	return &Source{envVar: strings.TrimSpace(envVar), prompt: terminalPrompt(os.Stdin, os.Stderr)}
}

// EnvVar reports the variable consulted before prompting.
func (s *Source) EnvVar() string { return s.envVar }

// Get returns the cached passphrase or resolves it on the first call.
// Whitespace-only passphrases are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := os.LookupEnv(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}
		if s.prompt == nil {
			s.err = s.missing()
			return
		}
		value, err := s.prompt()
		if err != nil {
			if errors.Is(err, errNoTerminal) {
				s.err = s.missing()
				return
			}
			s.err = fmt.Errorf("read passphrase: %w", err)
			return
		}
		if strings.TrimSpace(value) == "" {
			s.err = errors.New("keystore passphrase cannot be empty")
			return
		}
		s.value = value
	})
	return s.value, s.err
}

func (s *Source) missing() error {
	if s.envVar != "" {
		return fmt.Errorf("keystore passphrase required; set %s or run interactively", s.envVar)
	}
	return errors.New("keystore passphrase required and no terminal available")
}

var errNoTerminal = errors.New("no terminal")

func terminalPrompt(in *os.File, out io.Writer) func() (string, error) {
	return func() (string, error) {
		fd := int(in.Fd())
		if !term.IsTerminal(fd) {
			return "", errNoTerminal
		}
		fmt.Fprint(out, "Enter payer keystore passphrase: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}
