//go:build nogl

package glsdf

import "fmt"

var errNoGL = fmt.Errorf("%w: built with the nogl tag", ErrUnavailable)

// Available always reports false in builds without OpenGL.
func Available() bool { return false }

// Reprobe always reports false in builds without OpenGL.
func Reprobe() bool { return false }

// ProbeError returns why the device is unavailable.
func ProbeError() error { return errNoGL }

// Version returns an empty string in builds without OpenGL.
func Version() string { return "" }

// Run always fails in builds without OpenGL.
func Run(job Job) (Output, error) {
	if err := job.validate(); err != nil {
		return Output{}, err
	}
	return Output{}, errNoGL
}
