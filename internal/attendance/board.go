package attendance

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/courseportal/portal/internal/models"
)

// NormalizeBoard returns a copy of the board with sessions sorted ascending by
// session number. Sessions without an id and students without an ERP are
// dropped, as are records pointing at dropped sessions. Each student's
// absence and naming penalty totals are recounted from the kept records.
func NormalizeBoard(in models.AttendanceBoard) models.AttendanceBoard {
	out := models.AttendanceBoard{
		Sessions: make([]models.BoardSession, 0, len(in.Sessions)),
		Students: make([]models.BoardStudent, 0, len(in.Students)),
	}

	known := make(map[string]struct{}, len(in.Sessions))
	for _, s := range in.Sessions {
		if strings.TrimSpace(s.ID) == "" {
			continue
		}
		known[s.ID] = struct{}{}
		out.Sessions = append(out.Sessions, s)
	}
	sort.SliceStable(out.Sessions, func(i, j int) bool {
		return out.Sessions[i].SessionNumber < out.Sessions[j].SessionNumber
	})

	for _, st := range in.Students {
		if strings.TrimSpace(st.ERP) == "" {
			continue
		}
		records := make(map[string]models.AttendanceStatus, len(st.Records))
		st.TotalAbsences = 0
		for id, status := range st.Records {
			if _, ok := known[id]; !ok {
				continue
			}
			records[id] = status
			if status == models.StatusAbsent {
				st.TotalAbsences++
			}
		}
		st.Records = records

		penalties := make(map[string]bool, len(st.Penalties))
		st.NamingPenalties = 0
		for id, flagged := range st.Penalties {
			if _, ok := known[id]; !ok || !flagged {
				continue
			}
			penalties[id] = true
			st.NamingPenalties++
		}
		st.Penalties = penalties
		out.Students = append(out.Students, st)
	}
	return out
}

// Symbol is the single-letter export form of a status.
func Symbol(status models.AttendanceStatus) string {
	switch status {
	case models.StatusPresent:
		return "P"
	case models.StatusAbsent:
		return "A"
	case models.StatusExcused:
		return "E"
	default:
		return "-"
	}
}

// SessionLabel formats a session number as S01, S02, ...
func SessionLabel(n int) string {
	return fmt.Sprintf("S%02d", n)
}

// Table renders a normalized board as a header row plus one row per student.
// The Naming Penalties column is only present when withPenalties is set.
func Table(board models.AttendanceBoard, withPenalties bool) ([]string, [][]string) {
	headers := []string{"Class No", "Student Name", "ERP"}
	if withPenalties {
		headers = append(headers, "Naming Penalties")
	}
	for _, s := range board.Sessions {
		headers = append(headers, SessionLabel(s.SessionNumber))
	}
	headers = append(headers, "Total Absences")

	rows := make([][]string, 0, len(board.Students))
	for _, st := range board.Students {
		row := []string{st.ClassNo, st.StudentName, st.ERP}
		if withPenalties {
			row = append(row, strconv.Itoa(st.NamingPenalties))
		}
		for _, s := range board.Sessions {
			row = append(row, Symbol(st.Records[s.ID]))
		}
		row = append(row, strconv.Itoa(st.TotalAbsences))
		rows = append(rows, row)
	}
	return headers, rows
}
