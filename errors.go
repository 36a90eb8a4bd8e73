package sdfgen

import "errors"

var (
	// ErrInvalidMesh is returned for meshes without vertices or triangles,
	// with out of range triangle indices or with non finite coordinates.
	ErrInvalidMesh = errors.New("sdfgen: invalid mesh")
	// ErrInvalidGrid is returned for non positive cell sizes or dimensions.
	ErrInvalidGrid = errors.New("sdfgen: invalid grid")
	// ErrInvalidOptions is returned for out of range option values.
	ErrInvalidOptions = errors.New("sdfgen: invalid options")
	// ErrBackendUnavailable is returned when the GPU backend is requested
	// explicitly and no OpenGL compute device can be used.
	ErrBackendUnavailable = errors.New("sdfgen: backend unavailable")
)
