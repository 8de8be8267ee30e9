// Package uploader abstracts media storage: callers hand over a stream and
// get back a public URL plus, for video content, a duration probe.
package uploader

import (
	"context"
	"io"
)

// Asset describes a stored media object.
type Asset struct {
	URL             string
	DurationSeconds float64
}

// File is an upload payload detached from any transport.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Uploader stores a media stream and returns its public asset.
type Uploader interface {
	Upload(ctx context.Context, filename string, contentType string, reader io.Reader) (Asset, error)
}
