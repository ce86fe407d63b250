package models

import (
	"testing"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"single", "music", []string{"music"}},
		{"trimmed", " music ,  travel ", []string{"music", "travel"}},
		{"empty items dropped", "music,,travel,", []string{"music", "travel"}},
		{"order kept", "c,b,a", []string{"c", "b", "a"}},
		{"empty string", "", []string{}},
		{"only commas", ", ,,", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitList(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitList(%q) = %q, want %q", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SplitList(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRecordIDString(t *testing.T) {
	id := surrealmodels.RecordID{Table: "conversation", ID: "abc"}
	got, err := RecordIDString(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "abc" {
		t.Errorf("RecordIDString = %q, want %q", got, "abc")
	}

	if _, err := RecordIDString(surrealmodels.RecordID{Table: "conversation", ID: 42}); err == nil {
		t.Error("expected error for non-string id")
	}
}
