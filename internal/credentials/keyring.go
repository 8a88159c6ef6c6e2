package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const serviceName = "holiday-agent"

type KeyType string

const (
	KeyAzureOpenAI  KeyType = "azure_openai_api_key"
	KeyAnthropic    KeyType = "anthropic_api_key"
	KeyCalendarific KeyType = "calendarific_api_key"
)

var allKeys = []KeyType{KeyAzureOpenAI, KeyAnthropic, KeyCalendarific}

func Set(key KeyType, value string) error {
	return keyring.Set(serviceName, string(key), value)
}

func Get(key KeyType) (string, error) {
	return keyring.Get(serviceName, string(key))
}

func Delete(key KeyType) error {
	return keyring.Delete(serviceName, string(key))
}

// GetOrEnv prefers the environment value and falls back to the keychain.
func GetOrEnv(key KeyType, envValue string) string {
	if envValue != "" {
		return envValue
	}
	val, err := Get(key)
	if err != nil {
		return ""
	}
	return val
}

func ListConfigured() map[KeyType]bool {
	result := make(map[KeyType]bool)
	for _, k := range allKeys {
		_, err := Get(k)
		result[k] = err == nil
	}
	return result
}

func ClearAll() error {
	var lastErr error
	for _, k := range allKeys {
		if err := Delete(k); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			lastErr = err
		}
	}
	return lastErr
}

func Setup(azureKey, anthropicKey, calendarificKey string) error {
	entries := []struct {
		key   KeyType
		value string
		label string
	}{
		{KeyAzureOpenAI, azureKey, "Azure OpenAI key"},
		{KeyAnthropic, anthropicKey, "Anthropic key"},
		{KeyCalendarific, calendarificKey, "Calendarific key"},
	}

	for _, e := range entries {
		if e.value == "" {
			continue
		}
		if err := Set(e.key, e.value); err != nil {
			return fmt.Errorf("failed to store %s: %w", e.label, err)
		}
	}

	return nil
}
