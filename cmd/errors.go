package cmd

import "fmt"

// InvalidTargetError reports an input that could not be scanned.
type InvalidTargetError struct {
	Input string
	Err   error
}

func (e *InvalidTargetError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("empty target: %v", e.Err)
	}
	return fmt.Sprintf("cannot scan %q: %v", e.Input, e.Err)
}

func (e *InvalidTargetError) Unwrap() error {
	return e.Err
}

// TargetFileError signals a problem with a batch target file.
type TargetFileError struct {
	Path string
	Line int
	Err  error
}

func (e *TargetFileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *TargetFileError) Unwrap() error {
	return e.Err
}
