package service

import "errors"

var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrInsufficientHearts = errors.New("not enough hearts")
	ErrInvalidPoints      = errors.New("points must be positive")
	ErrGiftNotFound       = errors.New("gift not found")
	ErrGiftLocked         = errors.New("gift is locked")
	ErrUnknownLifeEvent   = errors.New("unknown life event")
)
