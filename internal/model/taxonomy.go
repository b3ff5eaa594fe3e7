package model

// AuditStatus tracks how a taxonomy row entered the store.
type AuditStatus string

const (
	AuditDerived  AuditStatus = "derived"
	AuditVerified AuditStatus = "verified"
)

// Ingredient is a canonical substance. Rows are immutable once referenced by
// a score; this pipeline only reads them.
type Ingredient struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	CanonicalKey string `json:"canonical_key"`
}

// IngredientForm is one recognized chemical or physical form of an
// ingredient (citrate, root, liposomal, ...). Form keys are unique per
// ingredient.
type IngredientForm struct {
	IngredientID  int64       `json:"ingredient_id"`
	FormKey       string      `json:"form_key"`
	Label         string      `json:"label"`
	AuditStatus   AuditStatus `json:"audit_status"`
	Confidence    float64     `json:"confidence"`
	PotencyFactor float64     `json:"potency_factor"`
}

// FormAlias maps a free-text pattern to a form key. IngredientID of zero
// means the alias is global and applies to any ingredient; scoped aliases
// shadow global ones during resolution.
type FormAlias struct {
	ID           int64       `json:"id"`
	Alias        string      `json:"alias"`
	Normalized   string      `json:"normalized"`
	FormKey      string      `json:"form_key"`
	IngredientID int64       `json:"ingredient_id,omitempty"`
	Confidence   float64     `json:"confidence"`
	AuditStatus  AuditStatus `json:"audit_status"`
	Source       string      `json:"source,omitempty"`
}

// Global reports whether the alias applies to any ingredient.
func (a FormAlias) Global() bool { return a.IngredientID == 0 }
