package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	at := time.Date(2026, 1, 5, 23, 0, 0, 0, time.UTC)

	k := Key("zoom-logs", `C:\Users\ta\participants.csv`, at)
	assert.True(t, strings.HasPrefix(k, "zoom-logs/2026/01/05/"), k)
	assert.True(t, strings.HasSuffix(k, "-participants.csv"), k)

	k = Key("exports", "../../etc/passwd", at)
	assert.True(t, strings.HasSuffix(k, "-passwd"), k)
	assert.NotContains(t, k, "..")

	assert.True(t, strings.HasSuffix(Key("exports", "", at), "-upload"))
}
