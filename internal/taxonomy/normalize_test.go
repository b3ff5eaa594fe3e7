package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Empty(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "", Normalize("   "))
}

func TestNormalize_Lowercase(t *testing.T) {
	assert.Equal(t, "zinc gluconate", Normalize("Zinc Gluconate"))
	assert.Equal(t, "citrate", Normalize("CITRATE"))
}

func TestNormalize_Diacritics(t *testing.T) {
	assert.Equal(t, "echinacea purpurea", Normalize("Echinacéa purpurea"))
	assert.Equal(t, "acai", Normalize("Açaí"))
	assert.Equal(t, "curcuma", Normalize("Cúrcuma"))
}

func TestNormalize_CollapsePunctuation(t *testing.T) {
	assert.Equal(t, "l theanine", Normalize("L-Theanine"))
	assert.Equal(t, "vitamin b 12", Normalize("Vitamin B-12!"))
	assert.Equal(t, "5 htp", Normalize("5-HTP"))
}

func TestNormalize_CollapseWhitespace(t *testing.T) {
	assert.Equal(t, "green tea extract", Normalize("  green   tea\textract "))
}

func TestNumericOnly(t *testing.T) {
	assert.True(t, numericOnly("12345"))
	assert.False(t, numericOnly("b12"))
	assert.False(t, numericOnly(""))
}
