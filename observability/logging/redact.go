package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

// RedactedValue replaces secrets in emitted records.
const RedactedValue = "[REDACTED]"

// secretKeys are masked wholesale. Connection strings keep their shape and
// lose only the credential.
var secretKeys = map[string]struct{}{
	"password":      {},
	"secret":        {},
	"token":         {},
	"authorization": {},
	"headers":       {},
	"private_key":   {},
}

var connectionKeys = map[string]struct{}{
	"dsn":          {},
	"database_url": {},
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// IsSecret reports whether records under key are masked entirely.
func IsSecret(key string) bool {
	_, ok := secretKeys[normalizeKey(key)]
	return ok
}

// MaskDSN replaces the password of a postgres URL or keyword/value
// connection string with xxxxx. Plain file paths pass through untouched.
func MaskDSN(dsn string) string {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return dsn
	}
	if strings.Contains(trimmed, "://") {
		u, err := url.Parse(trimmed)
		if err != nil {
			return RedactedValue
		}
		return u.Redacted()
	}
	fields := strings.Fields(trimmed)
	for i, field := range fields {
		if strings.HasPrefix(strings.ToLower(field), "password=") {
			fields[i] = "password=xxxxx"
		}
	}
	return strings.Join(fields, " ")
}

// MaskField builds a string attribute with the same masking the root handler
// applies.
func MaskField(key, value string) slog.Attr {
	return redactAttr(slog.String(key, value))
}

func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString {
		return attr
	}
	value := attr.Value.String()
	if strings.TrimSpace(value) == "" {
		return attr
	}
	key := normalizeKey(attr.Key)
	if _, ok := connectionKeys[key]; ok {
		return slog.String(attr.Key, MaskDSN(value))
	}
	if IsSecret(key) {
		return slog.String(attr.Key, RedactedValue)
	}
	return attr
}
