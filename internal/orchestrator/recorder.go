package orchestrator

// Recorder receives orchestration telemetry. Calls happen on the event
// loop and must not block.
type Recorder interface {
	RelayStarted(id string)
	RelayFailed(id string)
	RestartScheduled(id string)
	ChangeApplied(id string, enabled bool)
	StateCounts(running, pending, stopped int)
}

type nopRecorder struct{}

func (nopRecorder) RelayStarted(string)        {}
func (nopRecorder) RelayFailed(string)         {}
func (nopRecorder) RestartScheduled(string)    {}
func (nopRecorder) ChangeApplied(string, bool) {}
func (nopRecorder) StateCounts(int, int, int)  {}
