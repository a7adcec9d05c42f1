package updater

// State names one phase of an update run. States are recorded verbatim in
// the history journal and in metrics labels.
type State string

const (
	StateIdle       State = "idle"
	StateBackingUp  State = "backing-up"
	StateFetching   State = "fetching"
	StatePurging    State = "purging"
	StateInstalling State = "installing"
	StateRestoring  State = "restoring"
	StateCleaningUp State = "cleaning-up"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

func (s State) String() string { return string(s) }
