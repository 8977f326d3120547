package telemetry

// NewForTesting returns a no-op telemetry instance for use in tests.
// Components run with telemetry fully disabled to verify they do not
// depend on it.
func NewForTesting() Telemetry {
	return NewNoop()
}
