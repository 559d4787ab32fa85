package client

import "errors"

var (
	ErrNotConnected       = errors.New("websocket is not connected")
	ErrFeedbackInFlight   = errors.New("feedback already in flight")
	ErrNoCurrentSection   = errors.New("no section awaiting review")
	ErrSectionNotEditable = errors.New("section is not editable")
	ErrAlreadyEditing     = errors.New("section already in edit mode")
	ErrNoSuchSection      = errors.New("section index out of range")
)
