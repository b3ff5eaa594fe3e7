package source

import "fmt"

// NHPD adapts Canadian Natural Health Products Database payloads. NHPD
// records carry structured sub-objects for extract ratio, potency
// constituents and dried-herb equivalence, plus dose frequency fields.
type NHPD struct{}

func (n *NHPD) Name() string { return "nhpd" }

func (n *NHPD) Label(raw map[string]any) Label {
	l := Label{
		Name:           firstString(raw, "ingredient_name", "name", "medicinal_name"),
		ProperName:     firstString(raw, "proper_name", "properName"),
		SourceMaterial: firstString(raw, "source_material", "sourceMaterial", "source_text"),
		ExtractType:    firstString(raw, "extract_type_desc", "extract_type"),
		DriedHerbEquiv: firstBool(raw, "dried_herb_equivalent", "dhe_flag"),
	}

	if ratio := subMap(raw, "ratio", "extract_ratio"); ratio != nil {
		l.RatioNumerator = firstString(ratio, "numerator", "ratio_numerator")
		l.RatioDenominator = firstString(ratio, "denominator", "ratio_denominator")
		if l.RatioNumerator == "" {
			if v, ok := firstNumber(ratio, "numerator", "ratio_numerator"); ok {
				l.RatioNumerator = trimFloat(v)
			}
		}
		if l.RatioDenominator == "" {
			if v, ok := firstNumber(ratio, "denominator", "ratio_denominator"); ok {
				l.RatioDenominator = trimFloat(v)
			}
		}
	}

	if potency := subMap(raw, "potency", "potency_constituent"); potency != nil {
		l.PotencyConstituent = firstString(potency, "constituent", "constituent_name")
		if v, ok := firstNumber(potency, "amount", "quantity"); ok {
			l.PotencyAmount = v
		}
		l.PotencyUnit = firstString(potency, "unit", "uom")
	}

	return l
}

func (n *NHPD) Dosing(raw map[string]any) (Dosing, bool) {
	dose := subMap(raw, "dose", "recommended_dose")
	if dose == nil {
		dose = raw
	}

	freq, freqOK := firstNumber(dose, "frequency_per_day", "daily_frequency", "frequency")
	servings, servOK := firstNumber(dose, "quantity_per_dose", "servings_per_dose", "dose_quantity")

	if !freqOK && !servOK {
		return Dosing{}, false
	}
	if !freqOK {
		freq = 1
	}
	if !servOK {
		servings = 1
	}
	if freq <= 0 || servings <= 0 {
		return Dosing{}, false
	}

	return Dosing{
		ServingsPerDay:  freq * servings,
		FrequencyPerDay: freq,
		Provenance:      "nhpd.dose",
	}, true
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
