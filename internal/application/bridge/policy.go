package bridge

import (
	"fmt"
	"strings"
)

// PersistFailurePolicy decides what happens when saving a reconciled order fails
type PersistFailurePolicy string

const (
	// PersistPolicyLog logs the failure and still broadcasts the reconciled snapshot
	PersistPolicyLog PersistFailurePolicy = "log"
	// PersistPolicyRetry retries the save with exponential backoff, then behaves like PersistPolicyLog
	PersistPolicyRetry PersistFailurePolicy = "retry"
	// PersistPolicyDrop logs the failure and drops the event without broadcasting
	PersistPolicyDrop PersistFailurePolicy = "drop"
)

// ParsePersistFailurePolicy parses a policy name, case-insensitively.
// An empty name yields PersistPolicyLog.
func ParsePersistFailurePolicy(s string) (PersistFailurePolicy, error) {
	p := PersistFailurePolicy(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return PersistPolicyLog, nil
	case PersistPolicyLog, PersistPolicyRetry, PersistPolicyDrop:
		return p, nil
	}
	return "", fmt.Errorf("unknown persist failure policy %q (expected log, retry or drop)", s)
}

// String returns the string representation of PersistFailurePolicy
func (p PersistFailurePolicy) String() string {
	return string(p)
}
