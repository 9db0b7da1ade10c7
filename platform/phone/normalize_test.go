package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"06 12345678", "+31612345678"},
		{"+31 6 1234 5678", "+31612345678"},
		{"  not a number ", "not a number"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeE164(tc.in); got != tc.want {
			t.Fatalf("NormalizeE164(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestIsValid(t *testing.T) {
	if !IsValid("+31612345678") {
		t.Fatal("expected dutch mobile number to be valid")
	}
	if IsValid("12") {
		t.Fatal("expected short number to be invalid")
	}
	if IsValid("") {
		t.Fatal("expected empty input to be invalid")
	}
}
