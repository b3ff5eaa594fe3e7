package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_KnownSources(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"dsld", "nhpd"}, r.Names())

	for _, name := range r.Names() {
		a, err := r.Get(name)
		require.NoError(t, err)
		assert.Equal(t, name, a.Name())
	}
}

func TestRegistry_UnknownSource(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("openfoodfacts")
	assert.Error(t, err)
}

func TestDSLD_Label(t *testing.T) {
	a := &DSLD{}
	l := a.Label(map[string]any{
		"ingredientName": "Zinc (as Zinc Gluconate)",
		"plantPart":      "root",
		"extractType":    "dry",
	})
	assert.Equal(t, "Zinc (as Zinc Gluconate)", l.Name)
	assert.Equal(t, "root", l.SourceMaterial)
	assert.Equal(t, "dry", l.ExtractType)
	assert.False(t, l.DriedHerbEquiv)
}

func TestDSLD_LabelKeyPreference(t *testing.T) {
	a := &DSLD{}
	// The first present key wins.
	l := a.Label(map[string]any{
		"name":           "Primary",
		"ingredientName": "Secondary",
	})
	assert.Equal(t, "Primary", l.Name)
}

func TestDSLD_Dosing(t *testing.T) {
	a := &DSLD{}
	d, ok := a.Dosing(map[string]any{"servingsPerDay": 2.0})
	require.True(t, ok)
	assert.Equal(t, 2.0, d.ServingsPerDay)
	assert.Equal(t, "dsld.servingsPerDay", d.Provenance)

	_, ok = a.Dosing(map[string]any{"servingsPerDay": 0.0})
	assert.False(t, ok)

	_, ok = a.Dosing(map[string]any{})
	assert.False(t, ok)
}

func TestNHPD_LabelStructuredFields(t *testing.T) {
	a := &NHPD{}
	l := a.Label(map[string]any{
		"ingredient_name":       "Valerian",
		"proper_name":           "Valeriana officinalis",
		"source_material":       "root",
		"extract_type_desc":     "Dry extract",
		"dried_herb_equivalent": true,
		"ratio": map[string]any{
			"numerator":   4.0,
			"denominator": 1.0,
		},
		"potency": map[string]any{
			"constituent": "Valerenic acid",
			"amount":      0.8,
			"unit":        "%",
		},
	})

	assert.Equal(t, "Valerian", l.Name)
	assert.Equal(t, "Valeriana officinalis", l.ProperName)
	assert.Equal(t, "4", l.RatioNumerator)
	assert.Equal(t, "1", l.RatioDenominator)
	assert.Equal(t, "Valerenic acid", l.PotencyConstituent)
	assert.Equal(t, 0.8, l.PotencyAmount)
	assert.Equal(t, "%", l.PotencyUnit)
	assert.True(t, l.DriedHerbEquiv)
}

func TestNHPD_DosingFrequencyTimesQuantity(t *testing.T) {
	a := &NHPD{}
	d, ok := a.Dosing(map[string]any{
		"dose": map[string]any{
			"frequency_per_day": 3.0,
			"quantity_per_dose": 2.0,
		},
	})
	require.True(t, ok)
	assert.Equal(t, 6.0, d.ServingsPerDay)
	assert.Equal(t, 3.0, d.FrequencyPerDay)
	assert.Equal(t, "nhpd.dose", d.Provenance)
}

func TestNHPD_DosingDefaultsMissingHalf(t *testing.T) {
	a := &NHPD{}
	d, ok := a.Dosing(map[string]any{
		"dose": map[string]any{"frequency_per_day": 2.0},
	})
	require.True(t, ok)
	assert.Equal(t, 2.0, d.ServingsPerDay)

	_, ok = a.Dosing(map[string]any{"dose": map[string]any{}})
	assert.False(t, ok)
}

func TestFirstNumber_CoercesJSONTypes(t *testing.T) {
	// JSON decoding yields float64, but fixture payloads may carry ints or
	// numeric strings.
	n, ok := firstNumber(map[string]any{"a": 3}, "a")
	assert.True(t, ok)
	assert.Equal(t, 3.0, n)

	n, ok = firstNumber(map[string]any{"a": "2.5"}, "a")
	assert.True(t, ok)
	assert.Equal(t, 2.5, n)

	_, ok = firstNumber(map[string]any{"a": "abc"}, "a")
	assert.False(t, ok)
}
