package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/suppscan/score-cli/internal/model"
)

func hashRows() []model.ProductIngredient {
	zinc := int64(1)
	mag := int64(2)
	amt1 := 15.0
	amt2 := 200.0
	return []model.ProductIngredient{
		{NameKey: "zinc", IngredientID: &zinc, FormText: "gluconate", Amount: &amt1, Unit: "mg", Active: true, ParseConfidence: 0.9},
		{NameKey: "magnesium", IngredientID: &mag, FormText: "citrate", Amount: &amt2, Unit: "mg", Active: true, ParseConfidence: 0.8},
	}
}

func TestInputsHash_Deterministic(t *testing.T) {
	mult := Multiplier{Value: 2, Source: "nhpd.dose"}
	h1 := InputsHash(hashRows(), mult, "2025-08")
	h2 := InputsHash(hashRows(), mult, "2025-08")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestInputsHash_RowOrderIndependent(t *testing.T) {
	mult := Multiplier{Value: 1, Source: "default"}
	rows := hashRows()
	reversed := []model.ProductIngredient{rows[1], rows[0]}
	assert.Equal(t, InputsHash(rows, mult, "2025-08"), InputsHash(reversed, mult, "2025-08"))
}

func TestInputsHash_SensitiveToFormText(t *testing.T) {
	mult := Multiplier{Value: 1, Source: "default"}
	rows := hashRows()
	base := InputsHash(rows, mult, "2025-08")

	rows[0].FormText = "citrate"
	assert.NotEqual(t, base, InputsHash(rows, mult, "2025-08"))
}

func TestInputsHash_SensitiveToMultiplier(t *testing.T) {
	rows := hashRows()
	h1 := InputsHash(rows, Multiplier{Value: 1, Source: "default"}, "2025-08")
	h2 := InputsHash(rows, Multiplier{Value: 2, Source: "nhpd.dose"}, "2025-08")
	assert.NotEqual(t, h1, h2)
}

func TestInputsHash_SensitiveToDatasetVersion(t *testing.T) {
	rows := hashRows()
	mult := Multiplier{Value: 1, Source: "default"}
	assert.NotEqual(t, InputsHash(rows, mult, "2025-08"), InputsHash(rows, mult, "2025-09"))
}

func TestInputsHash_IgnoresRawFields(t *testing.T) {
	// Raw (pre-normalization) fields never influence the score.
	mult := Multiplier{Value: 1, Source: "default"}
	rows := hashRows()
	base := InputsHash(rows, mult, "2025-08")

	raw := 999.0
	rows[0].RawName = "ZINC!!"
	rows[0].RawAmount = &raw
	rows[0].RawUnit = "meg"
	assert.Equal(t, base, InputsHash(rows, mult, "2025-08"))
}
