package types

import "time"

// HealthState is the reported condition of a collaborator.
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// HealthStatus is one health probe result.
type HealthStatus struct {
	State     HealthState `json:"state"`
	Message   string      `json:"message,omitempty"`
	CheckedAt time.Time   `json:"checked_at"`
}

func newHealthStatus(state HealthState, message string) HealthStatus {
	return HealthStatus{
		State:     state,
		Message:   message,
		CheckedAt: time.Now().UTC(),
	}
}

// Healthy reports a fully working collaborator.
func Healthy(message string) HealthStatus {
	return newHealthStatus(HealthStateHealthy, message)
}

// Degraded reports a collaborator that works but not fully.
func Degraded(message string) HealthStatus {
	return newHealthStatus(HealthStateDegraded, message)
}

// Unhealthy reports a collaborator that cannot serve requests.
func Unhealthy(message string) HealthStatus {
	return newHealthStatus(HealthStateUnhealthy, message)
}

func (h HealthStatus) IsHealthy() bool   { return h.State == HealthStateHealthy }
func (h HealthStatus) IsDegraded() bool  { return h.State == HealthStateDegraded }
func (h HealthStatus) IsUnhealthy() bool { return h.State == HealthStateUnhealthy }
