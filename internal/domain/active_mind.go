package domain

import "time"

// ActiveMindRecord is the persisted selection shared between CLI invocations.
type ActiveMindRecord struct {
	MindID     MindID
	PreviousID MindID
	SwitchedAt time.Time
}
