// Package apperr defines the error kinds shared across analysisd's
// components. Kinds are sentinel values, never exception classes:
// callers wrap them with fmt.Errorf("...: %w", Kind) and inspect with
// errors.Is/errors.As.
package apperr

import "errors"

// Validation failures against a project's schema.
var (
	ErrMissingColumn   = errors.New("missing column")
	ErrWrongColumnType = errors.New("wrong column type")
	ErrUnsyncedSchema  = errors.New("schema out of sync with workspace")
)

// Artifact access failures.
var (
	ErrFileNotExists = errors.New("file does not exist")
	ErrCorruptedFile = errors.New("file is corrupted or fails validation")
)

// ErrUnsyncedVectors indicates a cached vector file's row count disagrees
// with the current preprocessed corpus. Fatal for readers; recovered by
// rerunning topic modeling.
var ErrUnsyncedVectors = errors.New("vector file row count disagrees with preprocessed corpus")

// Lock contention on the interactive (caller-facing) path.
var (
	ErrUnallowedFileOperation   = errors.New("file is locked by another operation")
	ErrUnallowedColumnOperation = errors.New("column is locked by another operation")
)

// ErrTaskStop is the cooperative-cancellation sentinel raised by
// Proxy.CheckStop. It is never surfaced to a caller: the Task Proxy's
// Context wrapper maps it to a Failed status with a "cancelled" log
// entry before it can escape a job.
var ErrTaskStop = errors.New("task stop requested")

// Misconfiguration.
var (
	ErrInvalidValueType = errors.New("invalid value type")
	ErrDependencyImport = errors.New("dependency import failed")
)
