package attendance

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/courseportal/portal/internal/models"
)

var ErrMissingColumn = errors.New("roster csv is missing a required column")

// WriteCSV writes the board in the export layout.
func WriteCSV(w io.Writer, board models.AttendanceBoard, withPenalties bool) error {
	headers, rows := Table(board, withPenalties)

	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}

var rosterColumns = map[string]string{
	"erp":          "erp",
	"student name": "student_name",
	"name":         "student_name",
	"class no":     "class_no",
	"class no.":    "class_no",
	"class":        "class_no",
	"email":        "email",
}

// ParseRosterCSV reads a roster export with a header row. ERP and student
// name columns are required; rows with a blank ERP are skipped.
func ParseRosterCSV(r io.Reader) ([]models.RosterEntryRequest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read roster header: %w", err)
	}

	idx := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if col, ok := rosterColumns[key]; ok {
			if _, dup := idx[col]; !dup {
				idx[col] = i
			}
		}
	}
	for _, col := range []string{"erp", "student_name"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []models.RosterEntryRequest
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read roster line %d: %w", line, err)
		}
		erp := field(rec, "erp")
		if erp == "" {
			continue
		}
		out = append(out, models.RosterEntryRequest{
			ERP:         erp,
			StudentName: field(rec, "student_name"),
			ClassNo:     field(rec, "class_no"),
			Email:       field(rec, "email"),
		})
	}
	return out, nil
}
