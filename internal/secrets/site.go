package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"leadscout-engine/internal/domain"
)

// KeyringService groups the engine's secrets in the OS keychain.
const KeyringService = "leadscout"

// SiteKeyringAccount names the keychain entry for one site login.
func SiteKeyringAccount(source domain.Source, login string) string {
	return fmt.Sprintf("leadscout:site:%s:%s", source, login)
}

func GetSiteCredential(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	pw, err := keyring.Get(KeyringService, account)
	if err != nil || strings.TrimSpace(pw) == "" {
		return "", errors.New("site credential not found in keychain")
	}
	return pw, nil
}

func SetSiteCredential(account, secret string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(secret) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, secret)
}

func DeleteSiteCredential(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}
