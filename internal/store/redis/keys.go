package redis

const (
	// KeyPrefix namespaces every key written by devdash
	KeyPrefix = "devdash:"
	// KeyRuns is the list of recent start-all runs, newest first
	KeyRuns = KeyPrefix + "runs"
)

// RunsKey returns the key of the run history list
func RunsKey() string {
	return KeyRuns
}
