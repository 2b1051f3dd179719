package constants

// JobStatus is the canonical status for rows in extraction_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending    JobStatus = "PENDING"    // created, not yet dispatched
	JobStatusProcessing JobStatus = "PROCESSING" // extraction running
	JobStatusCompleted  JobStatus = "COMPLETED"  // terminal, result attached
	JobStatusFailed     JobStatus = "FAILED"     // terminal failure
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Active reports whether a job in this status blocks new jobs for the same subject.
func (s JobStatus) Active() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

// CanTransition reports whether from -> to is a legal job transition.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusProcessing || to == JobStatusCompleted || to == JobStatusFailed
	}
	return false
}
