package models

import "testing"

func TestGradeParts(t *testing.T) {
	tests := []struct {
		item Item
		company, want string
	}{
		{Item{GradingCompany: "psa", Grade: "10"}, "PSA", "10"},
		{Item{Grade: "BGS 9.5"}, "BGS", "9.5"},
		{Item{Grade: "9"}, "", ""},
		{Item{GradingCompany: "CGC"}, "", ""},
		{Item{}, "", ""},
	}
	for _, tt := range tests {
		c, g := tt.item.GradeParts()
		if c != tt.company || g != tt.want {
			t.Errorf("GradeParts(%+v) = (%q, %q); want (%q, %q)", tt.item, c, g, tt.company, tt.want)
		}
	}
	if got := (Item{Grade: "PSA 9"}).GradeLabel(); got != "PSA 9" {
		t.Errorf("GradeLabel = %q", got)
	}
}

func TestPurpose(t *testing.T) {
	p := GradedPurpose("bgs", "9.5")
	if p != "graded:BGS9.5" {
		t.Fatalf("GradedPurpose = %q", p)
	}
	if !p.IsGraded() || PurposeRaw.IsGraded() {
		t.Error("IsGraded misclassifies purposes")
	}
	if c, g := p.SplitGrade(); c != "BGS" || g != "9.5" {
		t.Errorf("SplitGrade = (%q, %q)", c, g)
	}

	it := Item{Name: "x", GradingCompany: "PSA", Grade: "8"}
	if raw := it.ForPurpose(PurposeRaw); raw.Graded() {
		t.Error("raw purpose kept the grade")
	}
	if g := it.ForPurpose(GradedPurpose("PSA", "10")); g.Grade != "10" {
		t.Errorf("graded purpose grade = %q", g.Grade)
	}
	if it.Grade != "8" {
		t.Error("ForPurpose mutated the receiver")
	}
}
