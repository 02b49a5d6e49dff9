package ga

// PreconditionError reports operator misuse by the caller, such as a
// tournament smaller than two or parents with different structure.
type PreconditionError struct {
	Op     string
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Op + ": " + e.Reason
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// ValidationError represents an invalid configuration, problem, or run state field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// CompatibilityError is returned when a restored run state does not match
// the problem the engine was built for.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
