package service

import "errors"

var (
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
	ErrSchedulerNotRunning     = errors.New("scheduler not running")
	ErrPositionAlreadyClosed   = errors.New("position already closed")
	ErrUnknownAction           = errors.New("unknown action")
)
