// Command hostelscout-seal encrypts an API key for use in .env files.
//
//	HOSTELSCOUT_SECRET_KEY=... hostelscout-seal sk-ant-...
//	echo sk-ant-... | hostelscout-seal
//
// The output ("enc:...") can be stored in ANTHROPIC_API_KEY or LLM_API_KEY.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	appconfig "github.com/manthysbr/hostelscout/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	open := flag.Bool("open", false, "decrypt a sealed value instead of sealing it")
	flag.Parse()

	if err := run(*open, flag.Args()); err != nil {
		logger.Error("seal failed", "error", err)
		os.Exit(1)
	}
}

func run(open bool, args []string) error {
	value, err := readValue(args)
	if err != nil {
		return err
	}

	key, err := appconfig.NewSecretKey()
	if err != nil {
		return fmt.Errorf("failed to load secret key: %w", err)
	}

	if open {
		plain, err := key.Decrypt(value)
		if err != nil {
			return fmt.Errorf("failed to unseal value: %w", err)
		}
		fmt.Println(plain)
		return nil
	}

	if appconfig.IsSealed(value) {
		return fmt.Errorf("value is already sealed")
	}
	sealed, err := key.Encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to seal value: %w", err)
	}
	fmt.Println(sealed)
	return nil
}

func readValue(args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("no value given on the command line or stdin")
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("value must not be empty")
	}
	return value, nil
}
