package chat

import "errors"

var (
	ErrAlreadyMember = errors.New("user already in channel")
	ErrNotMember     = errors.New("not in channel")
	ErrEmptyMessage  = errors.New("message cannot be empty")
	ErrNoSuchChannel = errors.New("no such channel")
)
