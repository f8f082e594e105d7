package domain

import (
	"errors"
	"testing"
)

func TestValidateCitation(t *testing.T) {
	cases := []struct {
		name    string
		c       Citation
		wantErr error
	}{
		{"valid numeric", Citation{"IPC", "302"}, nil},
		{"valid alphanumeric", Citation{"IPC_1860", "53A"}, nil},
		{"valid subsection", Citation{"BNS_2023", "103(2)"}, nil},
		{"empty act", Citation{"", "302"}, ErrInvalidCitation},
		{"empty section", Citation{"IPC", "  "}, ErrEmptySection},
		{"garbage section", Citation{"IPC", "302; DROP"}, ErrInvalidCitation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateCitation(tc.c)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateSection(t *testing.T) {
	ok := Section{ActCode: "BNS_2023", SectionNumber: "103", LegalText: "Whoever commits murder...", Era: EraCurrent}
	if err := ValidateSection(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := ok
	bad.Era = "medieval"
	if err := ValidateSection(bad); err == nil {
		t.Fatal("expected era error")
	}

	bad = ok
	bad.LegalText = "   "
	if err := ValidateSection(bad); err == nil {
		t.Fatal("expected legal_text error")
	}
}

func TestCitationMarker(t *testing.T) {
	c := Citation{Act: "BNS_2023", Section: "103"}
	if got := c.Marker(); got != "[BNS_2023 §103]" {
		t.Fatalf("marker: %s", got)
	}
}

func TestMappingUsable(t *testing.T) {
	m := TransitionMapping{Confidence: 0.9, ApprovedBy: "reviewer1", Active: true}
	if !m.Usable(0.65) {
		t.Fatal("expected usable")
	}
	m.ApprovedBy = ""
	if m.Usable(0.65) {
		t.Fatal("unapproved mapping must not be usable")
	}
	m.ApprovedBy = "reviewer1"
	m.Confidence = 0.6
	if m.Usable(0.65) {
		t.Fatal("below-floor mapping must not be usable")
	}
	m.Confidence = 0.9
	m.Active = false
	if m.Usable(0.65) {
		t.Fatal("deactivated mapping must not be usable")
	}
}
