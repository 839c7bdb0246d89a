package models

import (
	"fmt"
	"strings"
)

// Item is the collectible being priced or listed. It is owned by the caller
// and treated as immutable for the duration of one pricing or listing call.
type Item struct {
	Ref            string   `json:"ref"`
	Name           string   `json:"name"`
	Year           string   `json:"year,omitempty"`
	Series         string   `json:"series,omitempty"`
	Number         string   `json:"number,omitempty"`
	Variant        string   `json:"variant,omitempty"`
	GradingCompany string   `json:"grading_company,omitempty"`
	Grade          string   `json:"grade,omitempty"`
	SerialNumber   string   `json:"serial_number,omitempty"`
	Category       string   `json:"category,omitempty"`
	Condition      string   `json:"condition,omitempty"`
	Description    string   `json:"description,omitempty"`
	ImageURLs      []string `json:"image_urls,omitempty"`
}

// GradeParts returns the grading company and grade. A grade written as
// "PSA 9" with no separate company is split into ("PSA", "9").
func (i Item) GradeParts() (company, grade string) {
	company = strings.ToUpper(strings.TrimSpace(i.GradingCompany))
	grade = strings.TrimSpace(i.Grade)
	if company == "" {
		fields := strings.Fields(grade)
		if len(fields) >= 2 && isLetters(fields[0]) {
			company = strings.ToUpper(fields[0])
			grade = strings.Join(fields[1:], " ")
		}
	}
	if company == "" || grade == "" {
		return "", ""
	}
	return company, grade
}

// Graded reports whether the item carries a third-party grade.
func (i Item) Graded() bool {
	c, _ := i.GradeParts()
	return c != ""
}

// GradeLabel returns "PSA 9" style text, or "" for raw items.
func (i Item) GradeLabel() string {
	c, g := i.GradeParts()
	if c == "" {
		return ""
	}
	return c + " " + g
}

func isLetters(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return s != ""
}

// Purpose tags what a pricing lookup is for: a raw valuation or the value at
// one specific grade. Distinct purposes for the same item never share a cache
// entry.
type Purpose string

// PurposeRaw values the item ungraded.
const PurposeRaw Purpose = "raw"

// GradedPurpose builds the "graded:PSA10" tag for a company and grade.
func GradedPurpose(company, grade string) Purpose {
	c := strings.ToUpper(strings.TrimSpace(company))
	g := strings.ReplaceAll(strings.TrimSpace(grade), " ", "")
	return Purpose(fmt.Sprintf("graded:%s%s", c, g))
}

// IsGraded reports whether the purpose targets a specific grade.
func (p Purpose) IsGraded() bool {
	return strings.HasPrefix(string(p), "graded:")
}

// SplitGrade returns the company and grade encoded in a graded purpose.
// The company is the leading run of letters: "graded:BGS9.5" -> ("BGS", "9.5").
func (p Purpose) SplitGrade() (company, grade string) {
	if !p.IsGraded() {
		return "", ""
	}
	rest := strings.TrimPrefix(string(p), "graded:")
	i := 0
	for i < len(rest) && isLetters(rest[i:i+1]) {
		i++
	}
	return strings.ToUpper(rest[:i]), rest[i:]
}

// ForPurpose returns a copy of the item whose grade fields reflect the purpose:
// raw purposes clear the grade, graded purposes override it.
func (i Item) ForPurpose(p Purpose) Item {
	out := i
	switch {
	case p == PurposeRaw:
		out.GradingCompany = ""
		out.Grade = ""
	case p.IsGraded():
		company, grade := p.SplitGrade()
		if company != "" && grade != "" {
			out.GradingCompany = company
			out.Grade = grade
		}
	}
	return out
}
