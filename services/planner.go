package services

import (
	"strings"

	"collectibles-market/config"
	"collectibles-market/models"
)

// Drop orders: the first attribute listed is the first one removed when a
// query is broadened. The name is never dropped.
var (
	standardDropOrder = []models.Attribute{
		models.AttrGrade, models.AttrSerial, models.AttrVariant,
		models.AttrNumber, models.AttrSeries, models.AttrYear,
	}
	// Trading card games name cards by set number, so the number stays.
	identifierDropOrder = []models.Attribute{
		models.AttrGrade, models.AttrSerial, models.AttrVariant,
		models.AttrSeries, models.AttrYear,
	}
	// Order in which attributes are written into the query text.
	textOrder = []models.Attribute{
		models.AttrYear, models.AttrSeries, models.AttrName, models.AttrNumber,
		models.AttrVariant, models.AttrSerial, models.AttrGrade,
	}
)

// Planner turns an item into an ordered ladder of search queries, from most
// to least specific.
type Planner struct {
	match config.Matching
}

func NewPlanner(match config.Matching) *Planner {
	return &Planner{match: match}
}

// IdentifierCentric reports whether the category names items by identifier
// (e.g. "Charizard 4/102") rather than by year and set.
func (p *Planner) IdentifierCentric(category string) bool {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return false
	}
	for _, k := range p.match.IdentifierCategories {
		if strings.Contains(c, k) {
			return true
		}
	}
	return false
}

// Plan builds the query ladder for an item and purpose. Graded lookups of an
// unusual variant get a strict two-step ladder, since broadening a rare
// grade and variant combination mostly adds noise.
func (p *Planner) Plan(item models.Item, purpose models.Purpose, identifierCentric bool) []models.QueryVariant {
	it := item.ForPurpose(purpose)
	values := p.attributeValues(it, purpose)
	if values[models.AttrName] == "" {
		return nil
	}

	suffix := ""
	if purpose == models.PurposeRaw {
		suffix = p.rawExclusions()
	}

	present := make(map[models.Attribute]bool, len(values))
	for a, v := range values {
		if v != "" {
			present[a] = true
		}
	}

	var ladder [][]models.Attribute
	full := orderedPresent(present)
	ladder = append(ladder, full)

	if purpose.IsGraded() && p.unusualVariant(it.Variant) {
		if present[models.AttrYear] {
			ladder = append(ladder, without(full, models.AttrYear))
		}
	} else {
		order := standardDropOrder
		if identifierCentric {
			order = identifierDropOrder
		}
		current := full
		for _, a := range order {
			if !present[a] {
				continue
			}
			current = without(current, a)
			ladder = append(ladder, current)
		}
	}

	seen := make(map[string]struct{}, len(ladder))
	variants := make([]models.QueryVariant, 0, len(ladder))
	for _, attrs := range ladder {
		text := composeText(attrs, values) + suffix
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		variants = append(variants, models.QueryVariant{
			Text:        text,
			Specificity: len(attrs),
			Label:       labelFor(attrs),
			Attributes:  attrs,
		})
	}
	return variants
}

func (p *Planner) attributeValues(it models.Item, purpose models.Purpose) map[models.Attribute]string {
	series := strings.TrimSpace(it.Series)
	if cat := strings.TrimSpace(it.Category); cat != "" && !strings.Contains(strings.ToLower(series), strings.ToLower(cat)) {
		series = strings.TrimSpace(series + " " + cat)
	}

	grade := it.GradeLabel()
	if grade == "" && purpose == models.PurposeRaw {
		grade = strings.TrimSpace(it.Condition)
	}

	return map[models.Attribute]string{
		models.AttrName:    normaliseText(it.Name),
		models.AttrYear:    strings.TrimSpace(it.Year),
		models.AttrSeries:  normaliseText(series),
		models.AttrNumber:  normaliseNumber(it.Number),
		models.AttrVariant: normaliseText(it.Variant),
		models.AttrSerial:  normaliseSerial(it.SerialNumber),
		models.AttrGrade:   grade,
	}
}

func (p *Planner) unusualVariant(variant string) bool {
	v := strings.ToLower(strings.TrimSpace(variant))
	if v == "" {
		return false
	}
	for _, common := range p.match.CommonVariants {
		if v == common {
			return false
		}
	}
	return true
}

func (p *Planner) rawExclusions() string {
	var b strings.Builder
	for _, c := range p.match.GradingCompanies {
		b.WriteString(" -")
		b.WriteString(strings.ToLower(c))
	}
	return b.String()
}

func orderedPresent(present map[models.Attribute]bool) []models.Attribute {
	out := make([]models.Attribute, 0, len(present))
	for _, a := range textOrder {
		if present[a] {
			out = append(out, a)
		}
	}
	return out
}

func without(attrs []models.Attribute, drop models.Attribute) []models.Attribute {
	out := make([]models.Attribute, 0, len(attrs))
	for _, a := range attrs {
		if a != drop {
			out = append(out, a)
		}
	}
	return out
}

func composeText(attrs []models.Attribute, values map[models.Attribute]string) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, values[a])
	}
	return strings.Join(parts, " ")
}

func labelFor(attrs []models.Attribute) string {
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		names = append(names, string(a))
	}
	return strings.Join(names, "+")
}

// normaliseNumber strips a leading "#" or "No." from a sequence number.
func normaliseNumber(n string) string {
	n = strings.TrimSpace(n)
	n = strings.TrimPrefix(n, "#")
	lower := strings.ToLower(n)
	if strings.HasPrefix(lower, "no.") {
		n = strings.TrimSpace(n[3:])
	}
	return n
}

// normaliseSerial renders a print-run serial as "/99" or "12/99".
func normaliseSerial(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "/") {
		return "/" + s
	}
	return s
}
