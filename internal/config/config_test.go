package config

import "testing"

func TestDefaultIsUsable(t *testing.T) {
	if Default.StorePath == "" {
		t.Fatal("default store path must not be empty")
	}
	if Default.ArchiveAgeDays <= 0 {
		t.Fatalf("default archive age must be positive, got %d", Default.ArchiveAgeDays)
	}
	if Default.PrimaryRadioCS == Default.ScoutRadioCS {
		t.Fatal("primary and scout radios must not share a chip-select by default")
	}
}

func TestOverlayInt(t *testing.T) {
	t.Setenv("GATEWAY_TEST_INT", "42")
	n := 7
	overlayInt(&n, "GATEWAY_TEST_INT")
	if n != 42 {
		t.Fatalf("expected overlay to set 42, got %d", n)
	}

	t.Setenv("GATEWAY_TEST_INT", "not-a-number")
	overlayInt(&n, "GATEWAY_TEST_INT")
	if n != 42 {
		t.Fatalf("expected invalid overlay to leave value unchanged, got %d", n)
	}
}

func TestOverlayString(t *testing.T) {
	s := "default"
	overlayString(&s, "GATEWAY_TEST_STRING_UNSET_VAR")
	if s != "default" {
		t.Fatalf("expected unset env var to leave default, got %#v", s)
	}

	t.Setenv("GATEWAY_TEST_STRING_UNSET_VAR", "overridden")
	overlayString(&s, "GATEWAY_TEST_STRING_UNSET_VAR")
	if s != "overridden" {
		t.Fatalf("expected override, got %#v", s)
	}
}
