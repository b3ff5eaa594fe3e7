package source

import "fmt"

// DSLD adapts U.S. Dietary Supplement Label Database payloads. DSLD records
// keep form hints inside the ingredient name and a handful of flat fields;
// there are no structured extract-ratio or potency sub-objects.
type DSLD struct{}

func (d *DSLD) Name() string { return "dsld" }

func (d *DSLD) Label(raw map[string]any) Label {
	return Label{
		Name:           firstString(raw, "name", "ingredientName", "ingredient_name"),
		ProperName:     firstString(raw, "properName", "proper_name", "botanicalName"),
		SourceMaterial: firstString(raw, "sourceMaterial", "source_material", "plantPart", "plant_part"),
		ExtractType:    firstString(raw, "extractType", "extract_type"),
	}
}

func (d *DSLD) Dosing(raw map[string]any) (Dosing, bool) {
	for _, key := range []string{"servingsPerDay", "servings_per_day", "dailyServings", "daily_servings"} {
		if n, ok := firstNumber(raw, key); ok && n > 0 {
			return Dosing{
				ServingsPerDay: n,
				Provenance:     fmt.Sprintf("dsld.%s", key),
			}, true
		}
	}
	return Dosing{}, false
}
