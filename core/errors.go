package core

import "errors"

var (
	// ErrNotFound covers both "does not exist" and "exists but is not
	// yours". Callers must not be able to tell the two apart.
	ErrNotFound = errors.New("not found")

	// ErrUnsupportedVersion marks a document tagged with a schema version
	// this reader does not know.
	ErrUnsupportedVersion = errors.New("unsupported document version")

	// ErrInvalidDocument marks a document that fails structural validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrDeliveryExists is returned when a card already has a share link.
	ErrDeliveryExists = errors.New("delivery already exists")
)
