package ids

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsSortable(t *testing.T) {
	a := New()
	b := New()
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}

func TestTicketReference(t *testing.T) {
	ref := TicketReference()
	assert.True(t, strings.HasPrefix(ref, "TKT-"))
	assert.Len(t, ref, 14)
	assert.NotEqual(t, ref, TicketReference())
}

func TestIsUUID(t *testing.T) {
	assert.True(t, IsUUID(UUID()))
	assert.False(t, IsUUID("not-a-uuid"))
}
