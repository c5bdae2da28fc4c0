package store

import (
	"encoding/json"
	"fmt"

	"github.com/coremarket/broker/internal/broker"
	"github.com/coremarket/broker/internal/mask"
)

// marshalSchedule converts a schedule to JSON TEXT for storage. The
// item order is part of the schedule's meaning and survives round trips.
func marshalSchedule(s broker.Schedule) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal schedule: %w", err)
	}
	return string(data), nil
}

// unmarshalSchedule parses JSON TEXT back into a schedule.
func unmarshalSchedule(data string) (broker.Schedule, error) {
	if data == "" {
		return nil, nil
	}
	var s broker.Schedule
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("unmarshal schedule: %w", err)
	}
	return s, nil
}

// parseMask decodes the stored 20-hex-digit mask column.
func parseMask(text string) (mask.CoreMask, error) {
	m, err := mask.Parse(text)
	if err != nil {
		return mask.CoreMask{}, fmt.Errorf("stored mask: %w", err)
	}
	return m, nil
}

// marshalNotification converts a notification's payload to JSON TEXT.
func marshalNotification(n broker.Notification) (string, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("marshal notification %s: %w", n.Kind(), err)
	}
	return string(data), nil
}
