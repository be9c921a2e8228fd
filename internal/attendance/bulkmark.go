// Package attendance implements the attendance rules that run outside the
// database: bulk marking from a pasted absentee list, the manual status cycle,
// public board normalization and CSV rendering.
package attendance

import (
	"sort"
	"strings"
	"unicode"

	"github.com/courseportal/portal/internal/models"
)

// ParseAbsentList splits free text on whitespace and commas and returns the
// lower-cased identifiers as a set.
func ParseAbsentList(text string) map[string]struct{} {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.ToLower(f)] = struct{}{}
	}
	return set
}

// Mark is one computed attendance row of a bulk mark.
type Mark struct {
	StudentERP  string                  `json:"student_erp"`
	StudentName string                  `json:"student_name"`
	Status      models.AttendanceStatus `json:"status"`
}

type BulkResult struct {
	Marks     []Mark   `json:"marks"`
	Absent    int      `json:"absent"`
	Present   int      `json:"present"`
	Unmatched []string `json:"unmatched"`
}

// BulkMark produces one row per roster member: absent when the member's ERP
// appears in text, present otherwise. Identifiers that match nobody are
// reported back sorted. Excused is never produced here.
func BulkMark(roster []models.Student, text string) BulkResult {
	absent := ParseAbsentList(text)
	matched := make(map[string]struct{}, len(absent))

	res := BulkResult{Marks: make([]Mark, 0, len(roster)), Unmatched: []string{}}
	for _, s := range roster {
		key := strings.ToLower(strings.TrimSpace(s.ERP))
		status := models.StatusPresent
		if _, ok := absent[key]; ok {
			status = models.StatusAbsent
			matched[key] = struct{}{}
			res.Absent++
		} else {
			res.Present++
		}
		res.Marks = append(res.Marks, Mark{StudentERP: s.ERP, StudentName: s.StudentName, Status: status})
	}

	for id := range absent {
		if _, ok := matched[id]; !ok {
			res.Unmatched = append(res.Unmatched, id)
		}
	}
	sort.Strings(res.Unmatched)
	return res
}

// NextStatus is the manual three-way cycle present -> absent -> excused ->
// present. An unmarked student starts at present.
func NextStatus(current models.AttendanceStatus) models.AttendanceStatus {
	switch current {
	case models.StatusPresent:
		return models.StatusAbsent
	case models.StatusAbsent:
		return models.StatusExcused
	default:
		return models.StatusPresent
	}
}
