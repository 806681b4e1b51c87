package config

import (
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolver_Secret_RedactsLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)
	resolver := NewResolver(logger)

	envKey := "TEST_SECRET_ENV"
	err := os.Setenv(envKey, "env-secret")
	if err != nil {
		t.Fatalf("failed to set env var: %v", err)
	}
	defer func() {
		err := os.Unsetenv(envKey)
		if err != nil {
			t.Fatalf("failed to unset env var: %v", err)
		}
	}()

	val := resolver.Secret("test-secret", envKey, "cli-secret", true, "default")

	if val != "env-secret" {
		t.Errorf("expected env value 'env-secret', got %q", val)
	}

	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}

	entry := logs.All()[0]
	if entry.Message != "config: conflict for test-secret" {
		t.Errorf("unexpected log message: %q", entry.Message)
	}

	fields := entry.ContextMap()
	if fields["env"] != "***" {
		t.Errorf("expected env field to be redacted, got %q", fields["env"])
	}
	if fields["cli"] != "***" {
		t.Errorf("expected cli field to be redacted, got %q", fields["cli"])
	}
}

func TestResolver_String_DoesNotRedactLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)
	resolver := NewResolver(logger)

	envKey := "TEST_STRING_ENV"
	err := os.Setenv(envKey, "env-value")
	if err != nil {
		t.Fatalf("failed to set env var: %v", err)
	}
	defer func() {
		err := os.Unsetenv(envKey)
		if err != nil {
			t.Fatalf("failed to unset env var: %v", err)
		}
	}()

	val := resolver.String("test-string", envKey, "cli-value", true, "default")

	if val != "env-value" {
		t.Errorf("expected env value 'env-value', got %q", val)
	}

	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}

	fields := logs.All()[0].ContextMap()
	if fields["env"] != "env-value" {
		t.Errorf("expected env field to be 'env-value', got %q", fields["env"])
	}
	if fields["cli"] != "cli-value" {
		t.Errorf("expected cli field to be 'cli-value', got %q", fields["cli"])
	}
}

func TestResolver_Precedence(t *testing.T) {
	t.Setenv("TEST_PRECEDENCE_ENV", " from-env ")
	resolver := NewResolver(nil)

	if got := resolver.String("s", "TEST_PRECEDENCE_ENV", "from-cli", true, "default"); got != "from-env" {
		t.Errorf("env should win, got %q", got)
	}
	if got := resolver.String("s", "TEST_PRECEDENCE_UNSET", "from-cli", true, "default"); got != "from-cli" {
		t.Errorf("cli should win over default, got %q", got)
	}
	if got := resolver.String("s", "TEST_PRECEDENCE_UNSET", "from-cli", false, "default"); got != "default" {
		t.Errorf("default expected, got %q", got)
	}
	if got := resolver.Secret("s", "TEST_PRECEDENCE_UNSET", "", false, ""); got != "" {
		t.Errorf("empty secret expected, got %q", got)
	}
}

func TestResolver_Bool(t *testing.T) {
	t.Setenv("TEST_BOOL_ENV", "true")
	resolver := NewResolver(nil)

	got, err := resolver.Bool("b", "TEST_BOOL_ENV", false, true, false)
	if err != nil || !got {
		t.Fatalf("expected env true, got %v (%v)", got, err)
	}

	got, err = resolver.Bool("b", "TEST_BOOL_UNSET", true, true, false)
	if err != nil || !got {
		t.Fatalf("expected cli true, got %v (%v)", got, err)
	}

	t.Setenv("TEST_BOOL_ENV", "perhaps")
	if _, err := resolver.Bool("b", "TEST_BOOL_ENV", false, false, false); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestResolver_Int(t *testing.T) {
	t.Setenv("TEST_INT_ENV", " 250 ")
	resolver := NewResolver(nil)

	got, err := resolver.Int("i", "TEST_INT_ENV", 100, true, 50)
	if err != nil || got != 250 {
		t.Fatalf("expected 250, got %d (%v)", got, err)
	}

	got, err = resolver.Int("i", "TEST_INT_UNSET", 100, false, 50)
	if err != nil || got != 50 {
		t.Fatalf("expected default 50, got %d (%v)", got, err)
	}

	t.Setenv("TEST_INT_ENV", "soon")
	if _, err := resolver.Int("i", "TEST_INT_ENV", 0, false, 0); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestResolver_StringSlice(t *testing.T) {
	t.Setenv("TEST_SLICE_ENV", "a, b,,c ")
	resolver := NewResolver(nil)

	got := resolver.StringSlice("l", "TEST_SLICE_ENV", []string{"x"}, true, nil)
	if !equalSlices(got, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected env slice %v", got)
	}

	got = resolver.StringSlice("l", "TEST_SLICE_UNSET", []string{" x ", ""}, true, nil)
	if !equalSlices(got, []string{"x"}) {
		t.Fatalf("unexpected cli slice %v", got)
	}

	if got := resolver.StringSlice("l", "TEST_SLICE_UNSET", nil, false, nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
