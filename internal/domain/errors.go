package domain

import "errors"

var (
	// ErrBankNotFound indicates the question bank for a category could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrEmptyBank indicates a bank with zero items; a configuration fault, fatal at startup.
	ErrEmptyBank = errors.New("question bank is empty")
	// ErrUnknownMode indicates an unrecognized quiz mode.
	ErrUnknownMode = errors.New("unknown quiz mode")
	// ErrInvalidScore indicates a submitted score outside [0, total].
	ErrInvalidScore = errors.New("score out of range")
	// ErrUserNotFound indicates the user row for a points update does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotPlaying is returned when an answer arrives for a mode with no live session.
	ErrNotPlaying = errors.New("no session in progress")
)
