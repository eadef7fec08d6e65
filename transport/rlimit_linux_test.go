//go:build linux

package transport

import "testing"

func TestRaiseFileLimitToCurrent(t *testing.T) {
	_, hard, err := FileLimit()
	if err != nil {
		t.Fatalf("FileLimit: %v", err)
	}
	// Raising the soft limit up to the existing hard limit needs no privileges.
	if err := RaiseFileLimit(hard); err != nil {
		t.Fatalf("RaiseFileLimit(%d): %v", hard, err)
	}
	soft, got, err := FileLimit()
	if err != nil || soft != hard || got != hard {
		t.Errorf("FileLimit after raise = (%d, %d, %v), want (%d, %d)", soft, got, err, hard, hard)
	}
}
