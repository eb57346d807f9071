package utils

import (
	"testing"
	"time"
)

func TestSafeEnv(t *testing.T) {
	const key = "_MBTI_TEST_SAFEENV"
	t.Setenv(key, "")
	if got := SafeEnv(key, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv(key, " value ")
	if got := SafeEnv(key, "fallback"); got != "value" {
		t.Fatalf("expected 'value', got %q", got)
	}
}

func TestTypedEnv(t *testing.T) {
	t.Setenv("_MBTI_INT", "42")
	t.Setenv("_MBTI_BAD_INT", "forty")
	t.Setenv("_MBTI_BOOL", "true")
	t.Setenv("_MBTI_DUR", "90s")
	t.Setenv("_MBTI_LIST", "a, b,,c ")

	if got := EnvInt("_MBTI_INT", 1); got != 42 {
		t.Fatalf("int: got %d", got)
	}
	if got := EnvInt("_MBTI_BAD_INT", 7); got != 7 {
		t.Fatalf("malformed int should fall back, got %d", got)
	}
	if !EnvBool("_MBTI_BOOL", false) {
		t.Fatalf("bool: expected true")
	}
	if got := EnvDuration("_MBTI_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("duration: got %v", got)
	}
	got := EnvList("_MBTI_LIST", nil)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("list: got %v", got)
	}
}
