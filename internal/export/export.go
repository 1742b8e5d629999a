// Package export writes ranked combination reports. Field order and score
// formatting are fixed so that re-exports of an unchanged snapshot diff
// clean.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/stpa-cli/internal/model"
)

// Record is one row of the ranked-combination report.
type Record struct {
	Rank        int      `json:"rank"`
	Controllers []string `json:"controllers"`
	Actions     []string `json:"actions"`
	Abstraction string   `json:"abstraction"`
	Type        string   `json:"type"`
	Score       int      `json:"score"`
	Rationale   string   `json:"rationale"`
	Signature   string   `json:"signature"`
}

// Records converts a prioritized combination list to report rows. Rank is
// 1-based position in the prioritized order.
func Records(list []model.CandidateCombination) []Record {
	out := make([]Record, len(list))
	for i, c := range list {
		out[i] = Record{
			Rank:        i + 1,
			Controllers: c.ControllerIDs(),
			Actions:     c.ActionIDs(),
			Abstraction: string(c.Abstraction),
			Type:        string(c.Type),
			Score:       c.Score,
			Rationale:   c.Rationale,
			Signature:   c.Signature(),
		}
	}
	return out
}

// header is the fixed CSV/XLSX column order.
var header = []string{"rank", "controllers", "actions", "abstraction", "type", "score", "rationale"}

// WriteJSON writes the report as an indented JSON array.
func WriteJSON(w io.Writer, list []model.CandidateCombination) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Records(list)); err != nil {
		return eris.Wrap(err, "export: encode json")
	}
	return nil
}

// WriteCSV writes the report with the fixed header row. Multi-valued fields
// are joined with "+" inside one column.
func WriteCSV(w io.Writer, list []model.CandidateCombination) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, r := range Records(list) {
		row := []string{
			strconv.Itoa(r.Rank),
			strings.Join(r.Controllers, "+"),
			strings.Join(r.Actions, "+"),
			r.Abstraction,
			r.Type,
			strconv.Itoa(r.Score),
			r.Rationale,
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes the report as a single-sheet workbook.
func WriteXLSX(path string, list []model.CandidateCombination) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Combinations")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hr := sheet.AddRow()
	for _, h := range header {
		hr.AddCell().Value = h
	}
	for _, r := range Records(list) {
		row := sheet.AddRow()
		row.AddCell().SetInt(r.Rank)
		row.AddCell().Value = strings.Join(r.Controllers, "+")
		row.AddCell().Value = strings.Join(r.Actions, "+")
		row.AddCell().Value = r.Abstraction
		row.AddCell().Value = r.Type
		row.AddCell().SetInt(r.Score)
		row.AddCell().Value = r.Rationale
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
