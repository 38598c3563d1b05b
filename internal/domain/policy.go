package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type PolicyStatus int

const (
	PolicyStatusIdle      PolicyStatus = 1
	PolicyStatusActive    PolicyStatus = 2
	PolicyStatusSuspended PolicyStatus = 4
	PolicyStatusExpired   PolicyStatus = 8
	PolicyStatusReady     PolicyStatus = 16
)

func (s PolicyStatus) String() string {
	switch s {
	case PolicyStatusIdle:
		return "idle"
	case PolicyStatusActive:
		return "active"
	case PolicyStatusSuspended:
		return "suspended"
	case PolicyStatusExpired:
		return "expired"
	case PolicyStatusReady:
		return "ready"
	default:
		return fmt.Sprintf("PolicyStatus(%d)", int(s))
	}
}

type Policy struct {
	ID     uuid.UUID
	Status PolicyStatus
	Value  int64
}
