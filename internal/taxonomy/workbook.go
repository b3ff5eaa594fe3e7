package taxonomy

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/suppscan/score-cli/internal/model"
)

// Workbook sheet names. The curation workbook carries forms and aliases on
// separate sheets with a single header row each.
const (
	sheetForms   = "forms"
	sheetAliases = "aliases"
)

// Workbook is a parsed taxonomy curation workbook.
type Workbook struct {
	Forms   []model.IngredientForm
	Aliases []model.FormAlias
}

// LoadWorkbook parses the taxonomy workbook at path. Column order is
// header-driven, not positional, so curators can reorder columns freely.
func LoadWorkbook(path string) (*Workbook, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "workbook: open %s", path)
	}

	wb := &Workbook{}

	formsSheet, ok := f.Sheet[sheetForms]
	if !ok {
		return nil, eris.Errorf("workbook: sheet %q not found", sheetForms)
	}
	wb.Forms, err = parseFormsSheet(formsSheet)
	if err != nil {
		return nil, err
	}

	aliasSheet, ok := f.Sheet[sheetAliases]
	if !ok {
		return nil, eris.Errorf("workbook: sheet %q not found", sheetAliases)
	}
	wb.Aliases, err = parseAliasSheet(aliasSheet)
	if err != nil {
		return nil, err
	}

	return wb, nil
}

func parseFormsSheet(sheet *xlsx.Sheet) ([]model.IngredientForm, error) {
	if len(sheet.Rows) == 0 {
		return nil, nil
	}
	cols := headerIndex(sheet.Rows[0])
	for _, required := range []string{"ingredient_id", "form_key"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("workbook: forms sheet missing column %q", required)
		}
	}

	var forms []model.IngredientForm
	for i, row := range sheet.Rows[1:] {
		cells := rowStrings(row)
		if blankRow(cells) {
			continue
		}

		ingredientID, err := cellInt64(cells, cols, "ingredient_id")
		if err != nil {
			return nil, eris.Wrapf(err, "workbook: forms row %d", i+2)
		}
		formKey := cellString(cells, cols, "form_key")
		if formKey == "" {
			return nil, eris.Errorf("workbook: forms row %d: empty form_key", i+2)
		}
		status, err := parseAuditStatus(cellString(cells, cols, "audit_status"))
		if err != nil {
			return nil, eris.Wrapf(err, "workbook: forms row %d", i+2)
		}

		forms = append(forms, model.IngredientForm{
			IngredientID:  ingredientID,
			FormKey:       formKey,
			Label:         cellString(cells, cols, "label"),
			AuditStatus:   status,
			Confidence:    cellFloat(cells, cols, "confidence"),
			PotencyFactor: cellFloatDefault(cells, cols, "potency_factor", 1),
		})
	}
	return forms, nil
}

func parseAliasSheet(sheet *xlsx.Sheet) ([]model.FormAlias, error) {
	if len(sheet.Rows) == 0 {
		return nil, nil
	}
	cols := headerIndex(sheet.Rows[0])
	for _, required := range []string{"alias", "form_key"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("workbook: aliases sheet missing column %q", required)
		}
	}

	var aliases []model.FormAlias
	for i, row := range sheet.Rows[1:] {
		cells := rowStrings(row)
		if blankRow(cells) {
			continue
		}

		alias := cellString(cells, cols, "alias")
		if alias == "" {
			return nil, eris.Errorf("workbook: aliases row %d: empty alias", i+2)
		}
		formKey := cellString(cells, cols, "form_key")
		if formKey == "" {
			return nil, eris.Errorf("workbook: aliases row %d: empty form_key", i+2)
		}
		// ingredient_id 0 (or blank) marks a global alias.
		ingredientID, err := cellInt64Default(cells, cols, "ingredient_id", 0)
		if err != nil {
			return nil, eris.Wrapf(err, "workbook: aliases row %d", i+2)
		}
		status, err := parseAuditStatus(cellString(cells, cols, "audit_status"))
		if err != nil {
			return nil, eris.Wrapf(err, "workbook: aliases row %d", i+2)
		}

		aliases = append(aliases, model.FormAlias{
			Alias:        alias,
			Normalized:   Normalize(alias),
			FormKey:      formKey,
			IngredientID: ingredientID,
			Confidence:   cellFloat(cells, cols, "confidence"),
			AuditStatus:  status,
			Source:       cellString(cells, cols, "source"),
		})
	}
	return aliases, nil
}

func parseAuditStatus(s string) (model.AuditStatus, error) {
	switch model.AuditStatus(strings.ToLower(strings.TrimSpace(s))) {
	case "", model.AuditDerived:
		return model.AuditDerived, nil
	case model.AuditVerified:
		return model.AuditVerified, nil
	default:
		return "", eris.Errorf("unknown audit_status %q", s)
	}
}

func headerIndex(row *xlsx.Row) map[string]int {
	cols := make(map[string]int, len(row.Cells))
	for j, cell := range row.Cells {
		name := strings.ToLower(strings.TrimSpace(cell.String()))
		if name != "" {
			cols[name] = j
		}
	}
	return cols
}

func rowStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func cellString(cells []string, cols map[string]int, name string) string {
	j, ok := cols[name]
	if !ok || j >= len(cells) {
		return ""
	}
	return cells[j]
}

func cellInt64(cells []string, cols map[string]int, name string) (int64, error) {
	raw := cellString(cells, cols, name)
	if raw == "" {
		return 0, eris.Errorf("empty %s", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse %s %q", name, raw)
	}
	return v, nil
}

func cellInt64Default(cells []string, cols map[string]int, name string, def int64) (int64, error) {
	raw := cellString(cells, cols, name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "parse %s %q", name, raw)
	}
	return v, nil
}

func cellFloat(cells []string, cols map[string]int, name string) float64 {
	return cellFloatDefault(cells, cols, name, 0)
}

func cellFloatDefault(cells []string, cols map[string]int, name string, def float64) float64 {
	raw := cellString(cells, cols, name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}
