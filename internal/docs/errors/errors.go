// Package errors provides sentinel errors for documentation source discovery.
package errors

import "errors"

var (
	// ErrDocsPathNotFound indicates the documentation source directory does not exist.
	ErrDocsPathNotFound = errors.New("documentation path not found")

	// ErrDocsDirWalkFailed indicates filesystem traversal of the docs directory failed.
	ErrDocsDirWalkFailed = errors.New("documentation directory walk failed")

	// ErrFileReadFailed indicates reading a discovered documentation file failed.
	ErrFileReadFailed = errors.New("documentation file read failed")

	// ErrInvalidRelativePath indicates calculating a path relative to the docs root failed.
	ErrInvalidRelativePath = errors.New("invalid relative path calculation")
)
