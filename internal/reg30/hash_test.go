package reg30

import "testing"

func TestStringHash(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "0"},
		{"a", "61"},
		{"hello", "5e918d2"},
		// hashes to math.MinInt32
		{"polygenelubricants", "80000000"},
		{"₹", "20b9"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := StringHash(tt.in); got != tt.want {
				t.Errorf("StringHash(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	summary := "Company received a letter of award from NHAI for a highway project"
	fp := Fingerprint("ABC", "ABC Ltd", "2026-10-12", summary, "c1")

	if fp != StringHash("ABC|ABC Ltd|2026-10-12|"+summary[:30]+"|c1") {
		t.Errorf("Fingerprint() = %v", fp)
	}
	// only the first 30 characters of the summary participate
	if other := Fingerprint("ABC", "ABC Ltd", "2026-10-12", summary[:30]+" and more", "c1"); other != fp {
		t.Errorf("Fingerprint() changed with summary tail: %v != %v", other, fp)
	}
	if short := Fingerprint("ABC", "ABC Ltd", "2026-10-12", "short", "c1"); short == fp {
		t.Errorf("Fingerprint() collided for different summaries")
	}
}

func TestExtractionCacheKey(t *testing.T) {
	withLink := EventCandidate{ID: "c1", EventFamily: FamilyOrderContract, CompanyName: "ACME", AttachmentLink: "https://x/a.pdf"}
	moved := withLink
	moved.ID = "c9"

	tests := []struct {
		name string
		c    EventCandidate
		want string
	}{
		{"link", withLink, "4bcf6476"},
		{"same filing at another row", moved, "4bcf6476"},
		{"no link falls back to id", EventCandidate{ID: "c7", EventFamily: FamilyOrderContract, CompanyName: "ACME"}, "5143ea3d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractionCacheKey(tt.c); got != tt.want {
				t.Errorf("ExtractionCacheKey() = %v, want %v", got, tt.want)
			}
		})
	}
}
