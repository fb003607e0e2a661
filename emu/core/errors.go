package core

import "errors"

var (
	// ErrLinkDown returned by the send path when the interface or its link is down.
	ErrLinkDown = errors.New("link is down")
	// ErrNoInterface the interface id is not in the interface table
	ErrNoInterface = errors.New("no such interface")
)
