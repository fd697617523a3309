package artron

// ResultCounts tallies tasks by their final state at the end of a run.
type ResultCounts struct {
	Success  int `json:"success"`
	Failures int `json:"failures"`
	Deps     int `json:"deps"`
	Nrun     int `json:"nrun"`
	Aborted  int `json:"aborted"`
	Ready    int `json:"ready"`
}

// Summary is the structured, machine-readable result of a completed (or
// timed-out) run, per spec.md §4.4.
type Summary struct {
	DateStart string       `json:"date_start"`
	DateEnd   string       `json:"date_end"`
	Elapsed   string       `json:"elapsed"`
	Tasks     []Task       `json:"tasks"`
	Results   ResultCounts `json:"results"`
	ExitCode  int          `json:"exit_code"`
}

// buildSummary tallies tasks into a Summary. tasks is the final table
// snapshot; Summary.Tasks preserves whatever order the caller supplies
// (the Manager passes insertion order).
func buildSummary(dateStart, dateEnd, elapsed string, tasks []Task) Summary {
	s := Summary{
		DateStart: dateStart,
		DateEnd:   dateEnd,
		Elapsed:   elapsed,
		Tasks:     tasks,
	}

	for _, task := range tasks {
		switch task.State {
		case StateSuccess:
			s.Results.Success++
		case StateError:
			s.Results.Failures++
		case StateDependency:
			s.Results.Deps++
		case StateInit:
			s.Results.Nrun++
		case StateRunning:
			s.Results.Aborted++
		case StateReady:
			s.Results.Ready++
		}
	}

	if s.Results.Success == len(tasks) {
		s.ExitCode = 0
	} else {
		s.ExitCode = 1
	}

	return s
}
