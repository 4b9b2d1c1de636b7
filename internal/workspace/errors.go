package workspace

import "fmt"

// ValidationError rejects input before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ReadError aborts a List when either source fails. Source is "store" or
// "backend".
type ReadError struct {
	Source string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading workspaces from %s: %v", e.Source, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// PartialWriteError reports that one store was written and the other was
// not. Record is the workspace as it is now visible (or still visible).
// Nothing is compensated.
type PartialWriteError struct {
	Op     string // "create" or "delete"
	Stage  string // the step that failed: "backend" or "store"
	Record Record
	Err    error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s workspace %s: %s step failed after the other store was written: %v",
		e.Op, e.Record.WorkspaceID, e.Stage, e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// DeleteRejectedError means the backend refused the delete; the document
// copy was left in place. Message is what the backend said.
type DeleteRejectedError struct {
	WorkspaceID string
	Message     string
	Err         error
}

func (e *DeleteRejectedError) Error() string {
	return fmt.Sprintf("delete of workspace %s rejected: %s", e.WorkspaceID, e.Message)
}

func (e *DeleteRejectedError) Unwrap() error {
	return e.Err
}
