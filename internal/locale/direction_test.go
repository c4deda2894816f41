package locale

import (
	"testing"

	"github.com/stemsi/quiz-overview/internal/binning"
)

func TestDirection(t *testing.T) {
	tests := []struct {
		tag  string
		want binning.Direction
	}{
		{"he", binning.RightToLeft},
		{"he-IL", binning.RightToLeft},
		{"ar-EG", binning.RightToLeft},
		{"fa", binning.RightToLeft},
		{"en", binning.LeftToRight},
		{"id-ID", binning.LeftToRight},
		{"", binning.LeftToRight},
		{"not a tag!", binning.LeftToRight},
	}

	for _, tt := range tests {
		if got := Direction(tt.tag); got != tt.want {
			t.Errorf("Direction(%q) = %s, want %s", tt.tag, got, tt.want)
		}
	}
}

func TestFromAcceptLanguage(t *testing.T) {
	if got := FromAcceptLanguage("he-IL,he;q=0.9,en;q=0.8"); got != binning.RightToLeft {
		t.Errorf("hebrew first = %s, want rtl", got)
	}
	if got := FromAcceptLanguage("en-US,ar;q=0.5"); got != binning.LeftToRight {
		t.Errorf("english first = %s, want ltr", got)
	}
	if got := FromAcceptLanguage(""); got != binning.LeftToRight {
		t.Errorf("empty header = %s, want ltr", got)
	}
}

func TestNotSubmittedLabel(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"id-ID,id;q=0.9", "Belum dikumpulkan"},
		{"he", "לא הוגש"},
		{"fr-FR", "Not submitted"},
		{"", "Not submitted"},
	}

	for _, tt := range tests {
		if got := NotSubmittedLabel(tt.header); got != tt.want {
			t.Errorf("NotSubmittedLabel(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
