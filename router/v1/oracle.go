package v1

import (
	"oracle-node/oracle"
)

// Scheduler defines the scheduler contract the v1 router depends on, kept
// separate from *oracle.Scheduler so the router can be tested against a
// fake.
type Scheduler interface {
	Status() oracle.Status
}
