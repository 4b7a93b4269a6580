package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"srvpanel/internal/config"
	"srvpanel/internal/credentials"
	"srvpanel/internal/utils"

	"golang.org/x/term"
)

// credential_tool seeds or replaces a stored panel secret without opening
// the panel, e.g. when provisioning a shared redis backend.
func main() {
	configPath := flag.String("config", "", "Path to config.json (default: user config dir)")
	purpose := flag.String("purpose", "basic", "Secret to set: basic or stop")
	secret := flag.String("secret", "", "Secret value (leave blank to type securely)")
	flag.Parse()

	p, err := resolvePurpose(*purpose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.LogFile)
	defer logger.Close()

	store, err := config.NewStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open credential store: %v\n", err)
		os.Exit(1)
	}

	value, err := resolveSecret(*secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "secret error: %v\n", err)
		os.Exit(1)
	}

	if err := store.Set(p, value); err != nil {
		fmt.Fprintf(os.Stderr, "failed to store secret: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Stored %s in the %s backend.\n", p, cfg.CredentialBackend)
}

func resolvePurpose(name string) (credentials.Purpose, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "basic":
		return credentials.PurposeBasic, nil
	case "stop":
		return credentials.PurposeStop, nil
	default:
		return "", fmt.Errorf("unknown purpose %q (want basic or stop)", name)
	}
}

func resolveSecret(input string) (string, error) {
	if trimmed := strings.TrimSpace(input); trimmed != "" {
		return trimmed, nil
	}

	first, err := promptSecret("Enter secret: ")
	if err != nil {
		return "", err
	}
	second, err := promptSecret("Confirm secret: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("secrets do not match")
	}
	if first == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}
	return first, nil
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		bytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	text, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
