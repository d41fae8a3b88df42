package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	OpCreated        Operation = "created"
	OpUpdated        Operation = "updated"
	OpDeleted        Operation = "deleted"
	OpImported       Operation = "imported"
	OpVehicleDeleted Operation = "vehicle_deleted"
)

// Operation names the mutation that produced a RecordEvent.
type Operation string

// RecordEvent announces that a vehicle's record sequence changed. It carries
// ids only; consumers reload the sequence from storage.
type RecordEvent struct {
	VehicleID string    `json:"vehicle_id"`
	RecordID  string    `json:"record_id,omitempty"`
	Operation Operation `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRecordEvent(vehicleID, recordID string, op Operation) *RecordEvent {
	return &RecordEvent{
		VehicleID: vehicleID,
		RecordID:  recordID,
		Operation: op,
		Timestamp: time.Now(),
	}
}

func (m *RecordEvent) Validate() error {
	if m.VehicleID == "" {
		return errors.New("record event without vehicle id")
	}
	switch m.Operation {
	case OpCreated, OpUpdated, OpDeleted, OpImported, OpVehicleDeleted:
		return nil
	}
	return errors.New("record event with unknown operation " + string(m.Operation))
}

// ToJSON converts the event to JSON bytes
func (m *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var msg RecordEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
