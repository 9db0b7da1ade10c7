package storage

import "testing"

func TestObjectKey(t *testing.T) {
	got := ObjectKey("quotes", " /2026/ ", "", "OFF-2026-0001.pdf")
	if got != "quotes/2026/OFF-2026-0001.pdf" {
		t.Fatalf("unexpected key %q", got)
	}
}
