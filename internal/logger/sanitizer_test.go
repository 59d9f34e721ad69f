package logger

import (
	"errors"
	"testing"
)

func TestSanitizer_Sanitize(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"query password", "retry with password=hunter2&next=1", "retry with password=***&next=1"},
		{"query passport", "sign in passport=alice", "sign in passport=***"},
		{"access token", "callback access_token=abc.def", "callback access_token=***"},
		{"json token", `{"code":200,"data":{"token":"eyJhbGciOi"}}`, `{"code":200,"data":{"token":"***"}}`},
		{"json password", `{"passport":"bob","password":"pw"}`, `{"passport":"***","password":"***"}`},
		{"bearer header", "Authorization: Bearer eyJ0eXAi.x.y", "Authorization: Bearer ***"},
		{"mobile passport", "account 13812345678 locked", "account 138****5678 locked"},
		{"email", "account alice.smith@example.com", "account ali***@example.com"},
		{"file path untouched", "/home/alice/upload/movie.mkv", "/home/alice/upload/movie.mkv"},
		{"digest untouched", "etag=0123456789abcdef0123456789abcdef", "etag=0123456789abcdef0123456789abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizer_Secrets(t *testing.T) {
	s := NewSanitizer("correct-horse", "abc")

	if got := s.Sanitize("login correct-horse failed"); got != "login *** failed" {
		t.Errorf("literal secret not masked: %q", got)
	}
	// Too short to register
	if got := s.Sanitize("abc"); got != "abc" {
		t.Errorf("short secret masked: %q", got)
	}

	s.AddSecret("correct-horse")
	if len(s.secrets) != 1 {
		t.Errorf("duplicate secret registered: %v", s.secrets)
	}
}

func TestSanitizer_SanitizeArgs(t *testing.T) {
	s := NewSanitizer("pan-password")

	args := []any{
		"path", "/watch/a.bin",
		"password", "pan-password",
		"token", "abcdefghijkl",
		"error", errors.New("rejected pan-password"),
		"size", int64(42),
		"dangling",
	}
	got := s.SanitizeArgs(args)

	want := []any{
		"path", "/watch/a.bin",
		"password", "p***d",
		"token", "a***l",
		"error", "rejected ***",
		"size", int64(42),
		"dangling",
	}
	if len(got) != len(want) {
		t.Fatalf("SanitizeArgs() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d = %v, want %v", i, got[i], want[i])
		}
	}
	if args[3] != "pan-password" {
		t.Error("SanitizeArgs modified its input")
	}
}

func TestSanitizeArgs_PathsVerbatim(t *testing.T) {
	s := NewSanitizer("13800001111", "movie")

	paths := []string{
		"/data/upload/13912345678.mp4",
		"/data/upload/movies/holiday.mkv",
		"/data/upload/alice@home/a.bin",
		"/data/upload/13800001111/part1.rar",
	}
	for _, p := range paths {
		for _, key := range []string{"path", "dir", "watch_dir", "Source_Path"} {
			got := s.SanitizeArgs([]any{key, p})
			if got[1] != p {
				t.Errorf("SanitizeArgs(%s=%q) = %v, want the path unchanged", key, p, got[1])
			}
		}
	}

	// Free-text attributes still hide the secrets
	got := s.SanitizeArgs([]any{"error", "login 13800001111 rejected"})
	if got[1] != "login *** rejected" {
		t.Errorf("error attribute = %v, want secret masked", got[1])
	}
}

func TestMaskValue(t *testing.T) {
	tests := map[string]string{
		"":                 "***",
		"ab":               "***",
		"abcdefgh":         "***",
		"abcdefghi":        "a***i",
		"verylongpassword": "v***d",
	}
	for in, want := range tests {
		if got := maskValue(in); got != want {
			t.Errorf("maskValue(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := map[string]bool{
		"password":      true,
		"PASSPORT":      true,
		"access_token":  true,
		"Authorization": true,
		"path":          false,
		"digest":        false,
		"file_id":       false,
	}
	for key, want := range tests {
		if got := isSensitiveKey(key); got != want {
			t.Errorf("isSensitiveKey(%q) = %v, want %v", key, got, want)
		}
	}
}
