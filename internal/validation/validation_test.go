package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseportal/portal/internal/models"
)

func TestStruct_Valid(t *testing.T) {
	v := New()
	req := models.SubmitClaimRequest{AssignmentID: "7b0a3a52-6a3b-4f0e-9a4e-1f1f6f3c2d10", Days: 2}
	assert.Nil(t, v.Struct(req))
}

func TestStruct_UsesJSONNames(t *testing.T) {
	v := New()
	fields := v.Struct(models.SubmitClaimRequest{AssignmentID: "nope"})
	require.Len(t, fields, 2)

	byField := map[string]string{}
	for _, f := range fields {
		byField[f.Field] = f.Error
	}
	assert.Contains(t, byField, "assignment_id")
	assert.Equal(t, "days is required", byField["days"])
}

func TestStruct_NestedPath(t *testing.T) {
	v := New()
	req := models.ReplaceRosterRequest{Students: []models.RosterEntryRequest{
		{ERP: "10001", StudentName: "Ayesha"},
		{StudentName: "No ERP"},
	}}
	fields := v.Struct(req)
	require.Len(t, fields, 1)
	assert.Equal(t, "students[1].erp", fields[0].Field)
}

func TestNotBlank(t *testing.T) {
	type req struct {
		Title string `json:"title" validate:"notblank"`
	}
	v := New()
	fields := v.Struct(req{Title: "   "})
	require.Len(t, fields, 1)
	assert.Equal(t, "title cannot be blank", fields[0].Error)
	assert.Nil(t, v.Struct(req{Title: "PA1"}))
}
