package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"jobwatch-engine/internal/config"
)

const (
	// KeyringService groups the app's secrets in the OS keychain.
	KeyringService = "jobwatch"
)

var ErrNotFound = errors.New("smtp password not found (set SCRAPER_PASS or store it in the keychain)")

// SMTPPassword resolves the SMTP credential: the value already on the
// config (from SCRAPER_PASS) wins, then the keychain entry for the sender.
func SMTPPassword(cfg config.Config) (string, error) {
	if pw := strings.TrimSpace(cfg.Email.Password); pw != "" {
		return pw, nil
	}
	account := SMTPKeyringAccount(cfg)
	if account == "" {
		return "", ErrNotFound
	}
	pw, err := keyring.Get(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %s: %w", account, err)
	}
	if strings.TrimSpace(pw) == "" {
		return "", ErrNotFound
	}
	return pw, nil
}

func SetSMTPPassword(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, account, password)
}

func DeleteSMTPPassword(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

// SMTPKeyringAccount is "" when no sender is configured.
func SMTPKeyringAccount(cfg config.Config) string {
	from := strings.TrimSpace(cfg.Email.From)
	if from == "" {
		return ""
	}
	return fmt.Sprintf("jobwatch:smtp:%s@%s", from, cfg.Email.SMTPHost)
}
