package model

// IngredientLimit holds per-ingredient safety reference data: a daily upper
// limit in a normalized unit, and interaction flags surfaced on scores.
type IngredientLimit struct {
	IngredientID    int64    `json:"ingredient_id"`
	DailyUpperLimit *float64 `json:"daily_upper_limit,omitempty"`
	Unit            string   `json:"unit,omitempty"`
	InteractionTags []string `json:"interaction_tags,omitempty"`
}
