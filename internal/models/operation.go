package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// OperationKind identifies one of the long-running worker operations.
// Kinds never share progress state.
type OperationKind int

const (
	OperationUpdateCheck OperationKind = iota
	OperationInstall
	OperationCreatePatch
)

func (k OperationKind) String() string {
	switch k {
	case OperationUpdateCheck:
		return "update_check"
	case OperationInstall:
		return "install"
	case OperationCreatePatch:
		return "create_patch"
	default:
		return "unknown"
	}
}

// Lifecycle is the state of a single-flight request for one operation kind.
type Lifecycle int

const (
	LifecycleIdle Lifecycle = iota
	LifecycleInFlight
	LifecycleSucceeded
	LifecycleFailed
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleIdle:
		return "idle"
	case LifecycleInFlight:
		return "in_flight"
	case LifecycleSucceeded:
		return "succeeded"
	case LifecycleFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Readiness is the state of the update-availability prerequisite.
type Readiness int

const (
	ReadinessUnknown Readiness = iota
	ReadinessReady
	ReadinessNotReady
)

func (r Readiness) String() string {
	switch r {
	case ReadinessReady:
		return "ready"
	case ReadinessNotReady:
		return "not_ready"
	default:
		return "unknown"
	}
}

// UpdateCheckStatus is the (ready, reason) pair carried by both the status
// query and the update-check-finished event.
type UpdateCheckStatus struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason"`
}

// UnmarshalJSON accepts either the object form or the positional
// [ready, reason] tuple form emitted by older workers.
func (s *UpdateCheckStatus) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tuple []json.RawMessage
		if err := json.Unmarshal(trimmed, &tuple); err != nil {
			return err
		}
		if len(tuple) != 2 {
			return fmt.Errorf("update check status: expected 2 elements, got %d", len(tuple))
		}
		if err := json.Unmarshal(tuple[0], &s.Ready); err != nil {
			return fmt.Errorf("update check status ready: %w", err)
		}
		if err := json.Unmarshal(tuple[1], &s.Reason); err != nil {
			return fmt.Errorf("update check status reason: %w", err)
		}
		return nil
	}

	type plain UpdateCheckStatus
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*s = UpdateCheckStatus(p)
	return nil
}
