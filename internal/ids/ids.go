package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier used for change events.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// UUID returns a random entity id.
func UUID() string {
	return uuid.NewString()
}

// TicketReference returns a short human-readable ticket reference such as
// TKT-7ZQ4M2K9PA, taken from the random tail of a ULID.
func TicketReference() string {
	id := New()
	return "TKT-" + strings.ToUpper(id[len(id)-10:])
}

// IsUUID reports whether s parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
