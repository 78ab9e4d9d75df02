// Package slurm submits simulation runs to the Slurm scheduler. Submission
// packages the FireSlurm binary next to the simulation config, writes a
// launch script that re-invokes it in direct-run mode on whichever node the
// scheduler picks, and hands that script to sbatch.
package slurm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NoJobID marks a JobInfo for which the scheduler assigned no id, as in a
// dry-run submission.
const NoJobID int64 = -1

var (
	// ErrSubmissionFailed wraps a non-zero exit of the submission tool.
	ErrSubmissionFailed = errors.New("job submission failed")
	// ErrUnparsableJobID is matched by UnparsableJobIDError.
	ErrUnparsableJobID = errors.New("unparsable job id")
)

// JobInfo ties a scheduler job to the run it executes.
type JobInfo struct {
	ID    int64
	RunID uuid.UUID
}

// Submitted reports whether the scheduler assigned an id.
func (j JobInfo) Submitted() bool {
	return j.ID != NoJobID
}

func (j JobInfo) String() string {
	if !j.Submitted() {
		return fmt.Sprintf("job <none> (run %s)", j.RunID)
	}
	return fmt.Sprintf("job %d (run %s)", j.ID, j.RunID)
}

// UnparsableJobIDError carries the scheduler output that did not contain a
// job id, for the operator to inspect.
type UnparsableJobIDError struct {
	Stdout string
}

func (e *UnparsableJobIDError) Error() string {
	return fmt.Sprintf("%v in sbatch output %q", ErrUnparsableJobID, e.Stdout)
}

func (e *UnparsableJobIDError) Is(target error) bool {
	return target == ErrUnparsableJobID
}

var submittedRe = regexp.MustCompile(`(?m)^Submitted batch job (\d+)\s*$`)

// ParseJobID extracts the id from sbatch's "Submitted batch job <n>" line.
// Success without that line is an error.
func ParseJobID(stdout string) (int64, error) {
	m := submittedRe.FindStringSubmatch(stdout)
	if m == nil {
		return NoJobID, &UnparsableJobIDError{Stdout: stdout}
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return NoJobID, &UnparsableJobIDError{Stdout: stdout}
	}
	return id, nil
}

// ExpandJobID substitutes the job id for the "%j" placeholder in a capture
// path.
func ExpandJobID(path string, id int64) string {
	return strings.ReplaceAll(path, "%j", strconv.FormatInt(id, 10))
}
