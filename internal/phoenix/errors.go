package phoenix

import "github.com/zeebo/errs"

var (
	// ErrNotFound marks a partition or root that does not exist on disk. It
	// means zero files, not a failure.
	ErrNotFound = errs.Class("not found")
	// ErrUnknownEntity marks a file discovered for a subject or study that the
	// metadata store does not know.
	ErrUnknownEntity = errs.Class("unknown entity")
	// ErrTransientIO marks filesystem or store failures scoped to one subject.
	ErrTransientIO = errs.Class("transient io")
)
