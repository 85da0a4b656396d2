package render

import "fmt"

type (
	// TemplateNotFoundError indicates the root migration script does not
	// exist at the given path.
	TemplateNotFoundError struct {
		Name string
	}

	// FragmentNotFoundError indicates an included fragment could not be
	// found in the component source. It carries the offending name so an
	// operator knows which include failed.
	FragmentNotFoundError struct {
		Name string
	}

	// RenderError wraps a template syntax or evaluation failure.
	RenderError struct {
		Name  string
		Cause error
	}
)

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template not found: %s", e.Name)
}

func (e *FragmentNotFoundError) Error() string {
	return fmt.Sprintf("fragment not found: %s", e.Name)
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render %s: %v", e.Name, e.Cause)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}
