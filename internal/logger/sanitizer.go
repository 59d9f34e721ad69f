package logger

import (
	"regexp"
	"strings"
	"sync"
)

const mask = "***"

// Sanitizer masks credentials in log output.
//
// Three layers apply, in order: literal secrets registered with AddSecret
// (the configured passport and password), message patterns for the shapes
// the store's API uses (query strings, JSON bodies, bearer headers), and
// key-based masking of attribute values. Attributes keyed as paths (path,
// dir, or a *_path / *_dir suffix) are logged verbatim so every record names
// the file it is about.
type Sanitizer struct {
	mu      sync.RWMutex
	secrets []string
	rules   []rule
}

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// NewSanitizer creates a sanitizer with the built-in rules
func NewSanitizer(secrets ...string) *Sanitizer {
	s := &Sanitizer{rules: builtinRules()}
	for _, secret := range secrets {
		s.AddSecret(secret)
	}
	return s
}

func builtinRules() []rule {
	return []rule{
		{regexp.MustCompile(`(?i)\b(password|passwd|passport|token|access_token)=[^\s&]+`), "$1=" + mask},
		{regexp.MustCompile(`(?i)"(password|passport|token|access_token)"\s*:\s*"[^"]*"`), `"$1":"` + mask + `"`},
		{regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`), "Bearer " + mask},
		// Mainland mobile numbers double as 123pan passports
		{regexp.MustCompile(`\b(1[3-9]\d)\d{4}(\d{4})\b`), "$1****$2"},
		{regexp.MustCompile(`([a-zA-Z0-9._%+-]{1,3})[a-zA-Z0-9._%+-]*@`), "$1" + mask + "@"},
	}
}

// AddSecret registers a literal value to mask wherever it appears.
// Values shorter than four characters are ignored; masking them would
// shred ordinary text.
func (s *Sanitizer) AddSecret(secret string) {
	if len(secret) < 4 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, known := range s.secrets {
		if known == secret {
			return
		}
	}
	s.secrets = append(s.secrets, secret)
}

// Sanitize masks secrets in a message
func (s *Sanitizer) Sanitize(input string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sanitize(input)
}

func (s *Sanitizer) sanitize(input string) string {
	for _, secret := range s.secrets {
		input = strings.ReplaceAll(input, secret, mask)
	}
	for _, r := range s.rules {
		input = r.pattern.ReplaceAllString(input, r.replacement)
	}
	return input
}

// SanitizeArgs masks slog key/value pairs. Values under a sensitive key are
// replaced outright, path values pass through, and other strings and errors
// go through Sanitize.
func (s *Sanitizer) SanitizeArgs(args []any) []any {
	if len(args) == 0 {
		return args
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]any, len(args))
	copy(result, args)

	for i := 0; i+1 < len(result); i += 2 {
		key, ok := result[i].(string)
		if !ok || isPathKey(key) {
			continue
		}
		switch v := result[i+1].(type) {
		case string:
			if isSensitiveKey(key) {
				result[i+1] = maskValue(v)
			} else {
				result[i+1] = s.sanitize(v)
			}
		case error:
			if isSensitiveKey(key) {
				result[i+1] = maskValue(v.Error())
			} else {
				result[i+1] = s.sanitize(v.Error())
			}
		}
	}
	return result
}

var sensitiveKeys = []string{"password", "passwd", "passport", "token", "secret", "credential", "authorization"}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sk := range sensitiveKeys {
		if strings.Contains(lower, sk) {
			return true
		}
	}
	return false
}

func isPathKey(key string) bool {
	lower := strings.ToLower(key)
	return lower == "path" || lower == "dir" ||
		strings.HasSuffix(lower, "_path") || strings.HasSuffix(lower, "_dir")
}

// maskValue keeps the first and last character of long values
func maskValue(value string) string {
	if len(value) <= 8 {
		return mask
	}
	return value[:1] + mask + value[len(value)-1:]
}
