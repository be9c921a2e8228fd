package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/courseportal/portal/internal/ids"
	"github.com/courseportal/portal/internal/models"
)

// NewEvent builds a change event for record. columns are the values that
// subscribers may filter on.
func NewEvent(table string, typ models.ChangeEventType, record any, columns map[string]string) (models.ChangeEvent, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return models.ChangeEvent{}, fmt.Errorf("failed to marshal %s record: %w", table, err)
	}
	return models.ChangeEvent{
		ID:        ids.New(),
		Table:     table,
		Type:      typ,
		Columns:   columns,
		Record:    body,
		Timestamp: time.Now().UTC(),
	}, nil
}
