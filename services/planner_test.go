package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collectibles-market/config"
	"collectibles-market/models"
)

func testPlanner() *Planner {
	return NewPlanner(config.Default().Matching)
}

func fullItem() models.Item {
	return models.Item{
		Ref:            "card-1",
		Name:           "Mickey Mantle",
		Year:           "1952",
		Series:         "Topps",
		Number:         "#311",
		Variant:        "Holo",
		GradingCompany: "PSA",
		Grade:          "8",
		SerialNumber:   "99",
	}
}

func TestPlanLadderIsMonotonic(t *testing.T) {
	p := testPlanner()
	variants := p.Plan(fullItem(), models.GradedPurpose("PSA", "8"), false)
	require.NotEmpty(t, variants)

	assert.Equal(t, "1952 Topps Mickey Mantle 311 Holo /99 PSA 8", variants[0].Text)
	for i := 1; i < len(variants); i++ {
		assert.Less(t, variants[i].Specificity, variants[i-1].Specificity,
			"variant %d (%s) is not broader than %d", i, variants[i].Label, i-1)
	}
	for _, v := range variants {
		assert.True(t, v.Has(models.AttrName), "name dropped in %s", v.Label)
	}
	assert.Equal(t, "Mickey Mantle", variants[len(variants)-1].Text)
}

func TestPlanDropsGradeFirst(t *testing.T) {
	p := testPlanner()
	variants := p.Plan(fullItem(), models.GradedPurpose("PSA", "8"), false)
	require.GreaterOrEqual(t, len(variants), 2)

	assert.True(t, variants[0].Has(models.AttrGrade))
	assert.False(t, variants[1].Has(models.AttrGrade))
	assert.True(t, variants[1].Has(models.AttrSerial))
}

func TestPlanIdentifierCentricKeepsNumber(t *testing.T) {
	p := testPlanner()
	item := models.Item{Name: "Charizard", Series: "Base Set", Number: "4/102", Category: "Pokemon"}
	require.True(t, p.IdentifierCentric(item.Category))

	variants := p.Plan(item, models.PurposeRaw, true)
	require.NotEmpty(t, variants)
	for _, v := range variants {
		assert.True(t, v.Has(models.AttrNumber), "number dropped in %s", v.Label)
		assert.Contains(t, v.Text, "4/102")
	}
}

func TestPlanRawExcludesGradedListings(t *testing.T) {
	p := testPlanner()
	variants := p.Plan(models.Item{Name: "Wonder Card", Number: "12"}, models.PurposeRaw, false)
	require.NotEmpty(t, variants)
	for _, v := range variants {
		assert.True(t, strings.HasSuffix(v.Text, " -psa -bgs -cgc -sgc -tag -bccg -hga"), v.Text)
	}
}

func TestPlanStrictLadderForUnusualVariant(t *testing.T) {
	p := testPlanner()
	item := models.Item{Name: "Pikachu", Year: "1999", Number: "58", Variant: "Gold Star"}
	variants := p.Plan(item, models.GradedPurpose("PSA", "10"), false)
	require.Len(t, variants, 2)
	assert.True(t, variants[0].Has(models.AttrYear))
	assert.False(t, variants[1].Has(models.AttrYear))
	assert.True(t, variants[1].Has(models.AttrVariant))
}

func TestPlanNameOnly(t *testing.T) {
	p := testPlanner()
	variants := p.Plan(models.Item{Name: "  Wonder   Card "}, models.Purpose(""), false)
	require.Len(t, variants, 1)
	assert.Equal(t, "Wonder Card", variants[0].Text)

	assert.Empty(t, p.Plan(models.Item{}, models.PurposeRaw, false))
}

func TestIdentifierCentric(t *testing.T) {
	p := testPlanner()
	assert.True(t, p.IdentifierCentric("Pokemon TCG"))
	assert.True(t, p.IdentifierCentric("magic: the gathering"))
	assert.False(t, p.IdentifierCentric("baseball"))
	assert.False(t, p.IdentifierCentric(""))
}
