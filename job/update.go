package job

// Update describes a partial mutation of a Job record. Nil fields are left
// untouched; set fields overwrite unconditionally (last-writer-wins: two
// concurrent updates to the same job race and the later one's view wins,
// even if it was based on a stale read).
type Update struct {
	Status     *Status
	Progress   *int
	OutputPath *string
	Filename   *string
	Error      *string
}

// Apply merges the update into j. It does not touch UpdatedAt; the store
// bumps it as part of the same atomic operation.
func (u Update) Apply(j *Job) {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Progress != nil {
		j.Progress = *u.Progress
	}
	if u.OutputPath != nil {
		j.OutputPath = *u.OutputPath
	}
	if u.Filename != nil {
		j.Filename = *u.Filename
	}
	if u.Error != nil {
		j.Error = *u.Error
	}
}

// Processing returns an Update moving the job into processing at the given
// progress marker.
func Processing(progress int) Update {
	s := StatusProcessing
	return Update{Status: &s, Progress: &progress}
}

// Completed returns an Update for the success transition: progress 100,
// output fields set.
func Completed(outputPath, filename string) Update {
	s := StatusCompleted
	p := 100
	return Update{Status: &s, Progress: &p, OutputPath: &outputPath, Filename: &filename}
}

// Failed returns an Update for the failure transition: progress reset to 0,
// output fields cleared, error message set.
func Failed(msg string) Update {
	s := StatusFailed
	p := 0
	empty := ""
	return Update{Status: &s, Progress: &p, OutputPath: &empty, Filename: &empty, Error: &msg}
}
