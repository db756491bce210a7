package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/creatorsats/creatorsats-backend/pkg/enums"
)

// EventList stores a webhook's subscribed event set as a JSON array column.
type EventList []enums.WebhookEvent

func (l *EventList) Scan(src any) error {
	if src == nil {
		*l = EventList{}
		return nil
	}

	switch v := src.(type) {
	case string:
		return l.parseJSON([]byte(v))
	case []byte:
		return l.parseJSON(v)
	default:
		return fmt.Errorf("EventList: unsupported Scan type %T", src)
	}
}

func (l EventList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("EventList: marshal: %w", err)
	}
	return string(raw), nil
}

// Contains reports whether the list includes the given event.
func (l EventList) Contains(event enums.WebhookEvent) bool {
	for _, candidate := range l {
		if candidate == event {
			return true
		}
	}
	return false
}

func (l *EventList) parseJSON(raw []byte) error {
	if len(raw) == 0 {
		*l = EventList{}
		return nil
	}
	var out []enums.WebhookEvent
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("EventList: parse %q: %w", raw, err)
	}
	*l = EventList(out)
	return nil
}
