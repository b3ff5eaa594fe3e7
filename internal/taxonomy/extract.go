package taxonomy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/suppscan/score-cli/internal/source"
)

// Token is one candidate form token with the source fields it came from.
type Token struct {
	Text   string   `json:"text"`
	Fields []string `json:"fields"`
}

// saltTokens lists chemical-form tokens recognized anywhere in label text.
var saltTokens = map[string]bool{
	"citrate": true, "gluconate": true, "glycinate": true, "bisglycinate": true,
	"chelate": true, "picolinate": true, "oxide": true, "malate": true,
	"threonate": true, "taurate": true, "orotate": true, "sulfate": true,
	"carbonate": true, "chloride": true, "ascorbate": true, "palmitate": true,
	"acetate": true, "succinate": true, "fumarate": true, "lactate": true,
	"hydrochloride": true, "methylcobalamin": true, "cyanocobalamin": true,
	"methylfolate": true, "tocopherol": true, "tocotrienol": true,
	"cholecalciferol": true, "ergocalciferol": true, "menaquinone": true,
	"phylloquinone": true,
}

// deliveryTokens lists preparation and delivery-form tokens.
var deliveryTokens = map[string]bool{
	"liposomal": true, "enteric": true, "phytosome": true, "micellar": true,
	"micronized": true, "buffered": true, "chelated": true, "fermented": true,
	"sustained": true,
}

// plantPartTokens lists botanical part and preparation tokens.
var plantPartTokens = map[string]bool{
	"root": true, "leaf": true, "seed": true, "bark": true, "flower": true,
	"fruit": true, "berry": true, "rhizome": true, "stem": true, "aerial": true,
	"whole": true, "extract": true, "standardized": true, "powder": true,
	"dry": true, "fresh": true,
}

var (
	parentheticalRe = regexp.MustCompile(`\(([^)]*)\)`)
	asFromClauseRe  = regexp.MustCompile(`(?i)\b(?:as|from)\s+([a-zA-Z][a-zA-Z \-']*)$`)

	// Guard patterns: occurrences whose source material matches these are
	// handled by the exclusion classifier, never form-resolved.
	solventGuardRe   = regexp.MustCompile(`(?i)\b(ethanol|glycerin|glycerine|alcohol|aqueous|solvent)\b`)
	animalGuardRe    = regexp.MustCompile(`(?i)\b(bovine|porcine|liver|cartilage|gland(?:ular)?|thymus|spleen)\b`)
	homeopathicGuard = regexp.MustCompile(`(?i)\bhomeopathic\b|\b\d+\s*[xc]h?\b\s*(dilution)?`)
)

// collector accumulates deduplicated tokens with field provenance.
type collector struct {
	order  []string
	fields map[string]map[string]bool
}

func newCollector() *collector {
	return &collector{fields: make(map[string]map[string]bool)}
}

// add records a token after the length/numeric guardrails. Raw text is
// expected to be normalized already, except for composed tokens (ratios,
// percentages) which bypass normalization by construction.
func (c *collector) add(text, field string) {
	if len([]rune(text)) <= 1 || numericOnly(text) {
		return
	}
	if _, seen := c.fields[text]; !seen {
		c.order = append(c.order, text)
		c.fields[text] = make(map[string]bool)
	}
	c.fields[text][field] = true
}

func (c *collector) tokens() []Token {
	out := make([]Token, 0, len(c.order))
	for _, text := range c.order {
		var fields []string
		for f := range c.fields[text] {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		out = append(out, Token{Text: text, Fields: fields})
	}
	return out
}

// ExtractTokens pulls candidate form tokens from a normalized label shape.
// It returns nil when the source material matches a solvent, animal-tissue
// or homeopathic guard pattern.
func ExtractTokens(label source.Label) []Token {
	if guarded(label.SourceMaterial) {
		return nil
	}

	c := newCollector()

	extractFromText(c, label.Name, "name")
	extractFromText(c, label.ProperName, "proper_name")

	// Source material contributes plant-part tokens only.
	for _, w := range strings.Fields(Normalize(label.SourceMaterial)) {
		if plantPartTokens[w] {
			c.add(w, "source_material")
		}
	}

	// Extract type contributes fresh/dry preparation tokens.
	switch et := Normalize(label.ExtractType); {
	case strings.Contains(et, "fresh"):
		c.add("fresh", "extract_type")
	case strings.Contains(et, "dry") || strings.Contains(et, "dried"):
		c.add("dry", "extract_type")
	}

	// An extract ratio implies an extract plus the ratio itself.
	if label.RatioNumerator != "" && label.RatioDenominator != "" {
		c.add("extract", "ratio")
		ratio := fmt.Sprintf("%s:%s", strings.TrimSpace(label.RatioNumerator), strings.TrimSpace(label.RatioDenominator))
		c.add(ratio, "ratio")
	}

	// Potency constituents contribute the constituent and its percentage.
	if label.PotencyConstituent != "" {
		for _, w := range strings.Fields(Normalize(label.PotencyConstituent)) {
			c.add(w, "potency")
		}
		if label.PotencyAmount > 0 && strings.Contains(label.PotencyUnit, "%") {
			c.add(fmt.Sprintf("%g%%", label.PotencyAmount), "potency")
		}
	}

	if label.DriedHerbEquiv {
		c.add("dhe", "dhe")
	}

	return c.tokens()
}

// extractFromText mines free text for explicit form hints: parenthetical
// qualifiers, trailing as/from clauses, and lexicon hits.
func extractFromText(c *collector, text, field string) {
	if text == "" {
		return
	}

	// Parenthetical qualifiers: "Zinc (as Zinc Gluconate)".
	for _, m := range parentheticalRe.FindAllStringSubmatch(text, -1) {
		inner := strings.TrimSpace(m[1])
		inner = strings.TrimPrefix(strings.ToLower(inner), "as ")
		for _, w := range strings.Fields(Normalize(inner)) {
			if lexiconHit(w) {
				c.add(w, field)
			}
		}
	}

	// Trailing "as X" / "from X" clause outside parentheses.
	bare := parentheticalRe.ReplaceAllString(text, " ")
	if m := asFromClauseRe.FindStringSubmatch(strings.TrimSpace(bare)); m != nil {
		for _, w := range strings.Fields(Normalize(m[1])) {
			if lexiconHit(w) {
				c.add(w, field)
			}
		}
	}

	// Lexicon hits anywhere in the text.
	for _, w := range strings.Fields(Normalize(bare)) {
		if lexiconHit(w) {
			c.add(w, field)
		}
	}
}

func lexiconHit(w string) bool {
	return saltTokens[w] || deliveryTokens[w] || plantPartTokens[w]
}

func guarded(text string) bool {
	if text == "" {
		return false
	}
	return solventGuardRe.MatchString(text) ||
		animalGuardRe.MatchString(text) ||
		homeopathicGuard.MatchString(text)
}
