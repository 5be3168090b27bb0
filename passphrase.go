package main

import (
	"fmt"
	"os"
	"runtime"
	"syscall"

	"golang.org/x/term"
)

// zeroBytes overwrites a byte slice with zeros
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// getPassword returns the configured password, or prompts for one.
// An empty configured value means "not set".
func getPassword(configured, prompt string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}

	password, err := readPassword(prompt)
	if err != nil {
		return nil, err
	}

	return password, nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	var password []byte
	var err error

	if term.IsTerminal(int(syscall.Stdin)) {
		password, err = term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
	} else {
		// STDIN is piped, fall back to the controlling terminal
		tty, ttyErr := os.Open("/dev/tty")
		if ttyErr != nil {
			if runtime.GOOS == "windows" {
				return nil, fmt.Errorf("password must be set via %s when STDIN is piped", PasswordEnvVar)
			}
			return nil, fmt.Errorf("cannot read password: STDIN is piped and /dev/tty is not available. Set %s", PasswordEnvVar)
		}
		defer tty.Close()

		password, err = term.ReadPassword(int(tty.Fd()))
		fmt.Fprintln(os.Stderr)
	}

	if err != nil {
		return nil, err
	}

	return password, nil
}
