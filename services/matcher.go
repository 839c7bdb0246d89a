package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"collectibles-market/config"
	"collectibles-market/models"
)

// gradeLookahead is how many tokens after a company name may hold the grade,
// to cover titles like "PSA Gem Mint 10".
const gradeLookahead = 3

// MatchReport is the classification of one batch of candidates.
type MatchReport struct {
	Results []models.MatchResult
	Counts  models.TierCounts
}

// Matcher classifies candidate listings against the source item by keyword
// presence in their titles. Titles are free text, so nothing here is exact
// equality.
type Matcher struct {
	companies []string
	excludes  [][]string
}

func NewMatcher(match config.Matching) *Matcher {
	m := &Matcher{}
	for _, c := range match.GradingCompanies {
		m.companies = append(m.companies, strings.ToLower(c))
	}
	for _, k := range match.ExcludeKeywords {
		if toks := tokenize(k); len(toks) > 0 {
			m.excludes = append(m.excludes, toks)
		}
	}
	return m
}

// Classify assigns a tier to every candidate found by one query variant.
func (m *Matcher) Classify(item models.Item, purpose models.Purpose, candidates []*models.ListingCandidate, variantLabel string) MatchReport {
	it := item.ForPurpose(purpose)
	report := MatchReport{Results: make([]models.MatchResult, 0, len(candidates))}
	for _, c := range candidates {
		tier, reason := m.Tier(it, c.Title)
		report.Results = append(report.Results, models.MatchResult{
			ListingCandidate: *c,
			Tier:             tier,
			VariantLabel:     variantLabel,
			Reason:           reason,
		})
		report.Counts.Add(tier)
	}
	return report
}

// Tier classifies a single title. Exact needs every known discriminating
// field; Similar needs name and number with a secondary field missing or in
// conflict; anything else is Different.
func (m *Matcher) Tier(item models.Item, title string) (models.MatchTier, string) {
	tokens := tokenize(title)
	set := tokenSet(tokens)

	for _, ex := range m.excludes {
		if containsAll(set, ex) {
			return models.TierDifferent, "excluded keyword: " + strings.Join(ex, " ")
		}
	}

	if !containsAll(set, tokenize(item.Name)) {
		return models.TierDifferent, "name missing"
	}
	if n := normaliseNumber(item.Number); n != "" && !hasNumber(tokens, n, m.gradeValues(tokens)) {
		return models.TierDifferent, "number missing"
	}

	var issues []string
	if v := tokenize(item.Variant); len(v) > 0 && !containsAll(set, v) {
		issues = append(issues, "variant missing")
	}
	if s := normaliseSerial(item.SerialNumber); s != "" && !hasSerial(tokens, s) {
		issues = append(issues, "serial missing")
	}

	company, grade := item.GradeParts()
	if company != "" {
		switch m.gradeState(tokens, strings.ToLower(company), strings.ToLower(grade)) {
		case gradeAbsent:
			issues = append(issues, "grade missing")
		case gradeConflict:
			issues = append(issues, "grade conflict")
		}
	} else if m.titleGraded(set, tokens) {
		issues = append(issues, "graded listing for raw item")
	}

	if len(issues) == 0 {
		return models.TierExact, ""
	}
	return models.TierSimilar, strings.Join(issues, ", ")
}

// Accepted picks the pool to price from: Exact alone when it is large
// enough, otherwise Exact and Similar together. fallback reports whether
// Similar matches were pulled in.
func Accepted(results []models.MatchResult, minSample int) (pool []models.MatchResult, fallback bool) {
	var exact, similar []models.MatchResult
	for _, r := range results {
		switch r.Tier {
		case models.TierExact:
			exact = append(exact, r)
		case models.TierSimilar:
			similar = append(similar, r)
		}
	}
	if len(exact) >= minSample || len(similar) == 0 {
		return exact, false
	}
	return append(exact, similar...), true
}

type gradeMatch int

const (
	gradeAbsent gradeMatch = iota
	gradeFound
	gradeConflict
)

func (m *Matcher) gradeState(tokens []string, company, grade string) gradeMatch {
	state := gradeAbsent
	otherCompany := false
	for i, tok := range tokens {
		if tok == company+grade {
			return gradeFound
		}
		if tok != company {
			if m.isCompany(tok) || m.isCompanyJoined(tok) {
				otherCompany = true
			}
			continue
		}
		for j := i + 1; j < len(tokens) && j <= i+gradeLookahead; j++ {
			if !looksLikeGrade(tokens[j]) {
				continue
			}
			if tokens[j] == grade {
				return gradeFound
			}
			state = gradeConflict
			break
		}
	}
	if state == gradeAbsent && otherCompany {
		return gradeConflict
	}
	return state
}

func (m *Matcher) titleGraded(set map[string]struct{}, tokens []string) bool {
	for _, c := range m.companies {
		if _, ok := set[c]; ok {
			return true
		}
	}
	for _, tok := range tokens {
		if m.isCompanyJoined(tok) {
			return true
		}
	}
	return false
}

func (m *Matcher) isCompany(tok string) bool {
	for _, c := range m.companies {
		if tok == c {
			return true
		}
	}
	return false
}

// isCompanyJoined matches tokens such as "psa10" or "bgs9.5".
func (m *Matcher) isCompanyJoined(tok string) bool {
	for _, c := range m.companies {
		if strings.HasPrefix(tok, c) && len(tok) > len(c) && looksLikeGrade(tok[len(c):]) {
			return true
		}
	}
	return false
}

func looksLikeGrade(tok string) bool {
	if tok == "" || len(tok) > 4 {
		return false
	}
	dot := false
	for _, r := range tok {
		switch {
		case r == '.' && !dot:
			dot = true
		case r < '0' || r > '9':
			return false
		}
	}
	return true
}

// gradeValues marks the tokens read as a grade: the first grade-like token
// within gradeLookahead of a company name.
func (m *Matcher) gradeValues(tokens []string) map[int]bool {
	var marked map[int]bool
	for i, tok := range tokens {
		if !m.isCompany(tok) {
			continue
		}
		for j := i + 1; j < len(tokens) && j <= i+gradeLookahead; j++ {
			if looksLikeGrade(tokens[j]) {
				if marked == nil {
					marked = make(map[int]bool)
				}
				marked[j] = true
				break
			}
		}
	}
	return marked
}

// hasNumber accepts "12", "#12", "012" and "12/102" for the number 12.
// Tokens in skip hold a grade and never count as the number.
func hasNumber(tokens []string, number string, skip map[int]bool) bool {
	want := trimZeros(strings.ToLower(number))
	for i, tok := range tokens {
		if skip[i] {
			continue
		}
		t := trimZeros(tok)
		if t == want || strings.HasPrefix(t, want+"/") {
			return true
		}
	}
	return false
}

// hasSerial accepts "15/99" or "/99" for the serial "/99".
func hasSerial(tokens []string, serial string) bool {
	want := trimZeros(strings.ToLower(serial))
	for _, tok := range tokens {
		t := trimZeros(tok)
		if t == want || (strings.HasPrefix(want, "/") && strings.HasSuffix(t, want)) {
			return true
		}
	}
	return false
}

func trimZeros(tok string) string {
	parts := strings.Split(tok, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		trimmed := strings.TrimLeft(p, "0")
		if trimmed == "" {
			trimmed = "0"
		}
		parts[i] = trimmed
	}
	return strings.Join(parts, "/")
}

// foldText lowercases and strips diacritics, so "Pokémon" matches "pokemon".
// Transformer chains carry state, so each call builds its own.
func foldText(s string) string {
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(chain, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// tokenize splits folded text on anything but letters, digits, "/" and ".".
func tokenize(s string) []string {
	fields := strings.FieldsFunc(foldText(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '/' && r != '.'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func containsAll(set map[string]struct{}, want []string) bool {
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
