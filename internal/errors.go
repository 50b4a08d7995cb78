package internal

import "errors"

var (
	ErrLocked  = errors.New("store is locked by another process")
	ErrNoStore = errors.New("no chunk store here, run init first")
)
