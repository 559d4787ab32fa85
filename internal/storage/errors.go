package storage

import "errors"

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrSectionNotFound  = errors.New("section not found")
	ErrInvalidData      = errors.New("invalid data")
	ErrStorageInit      = errors.New("storage initialization failed")
	ErrFileOperation    = errors.New("file operation failed")
)
