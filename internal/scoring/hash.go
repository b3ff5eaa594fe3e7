package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/suppscan/score-cli/internal/model"
)

// hashRow is the exact per-row shape fingerprinted by the inputs hash. Only
// fields that influence the computed score belong here; adding a field
// invalidates every stored hash, which is the intended behavior.
type hashRow struct {
	NameKey         string   `json:"k"`
	IngredientID    int64    `json:"i,omitempty"`
	FormText        string   `json:"f,omitempty"`
	Amount          *float64 `json:"a,omitempty"`
	Unit            string   `json:"u,omitempty"`
	Basis           string   `json:"b,omitempty"`
	Active          bool     `json:"x"`
	ParseConfidence float64  `json:"c"`
}

type hashInput struct {
	Rows             []hashRow `json:"rows"`
	Multiplier       float64   `json:"mult"`
	MultiplierSource string    `json:"mult_src"`
	DatasetVersion   string    `json:"dataset"`
}

// InputsHash produces a stable fingerprint of everything that influenced a
// score: the ingredient rows (sorted by a stable key), the daily multiplier
// and its source tag, and the dataset version.
func InputsHash(rows []model.ProductIngredient, mult Multiplier, datasetVersion string) string {
	hrs := make([]hashRow, 0, len(rows))
	for _, r := range rows {
		hr := hashRow{
			NameKey:         r.NameKey,
			FormText:        r.FormText,
			Amount:          r.Amount,
			Unit:            r.Unit,
			Basis:           r.Basis,
			Active:          r.Active,
			ParseConfidence: r.ParseConfidence,
		}
		if r.IngredientID != nil {
			hr.IngredientID = *r.IngredientID
		}
		hrs = append(hrs, hr)
	}
	sort.Slice(hrs, func(i, j int) bool {
		if hrs[i].NameKey != hrs[j].NameKey {
			return hrs[i].NameKey < hrs[j].NameKey
		}
		return hrs[i].IngredientID < hrs[j].IngredientID
	})

	payload, _ := json.Marshal(hashInput{
		Rows:             hrs,
		Multiplier:       mult.Value,
		MultiplierSource: mult.Source,
		DatasetVersion:   datasetVersion,
	})

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
