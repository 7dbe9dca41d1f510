package domain

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrEmptySnapshot    = errors.New("snapshot data is empty")
	ErrEmptyLabel       = errors.New("snapshot label is empty")
)
