package api

import "errors"

var (
	ErrTooManyRequests   = errors.New("too many requests")
	ErrCrowded           = errors.New("mailbox is crowded")
	ErrNameplateNotFound = errors.New("nameplate not found")
	ErrMissingSide       = errors.New("missing side id")
	ErrInvalidNameplate  = errors.New("invalid nameplate")
	ErrInvalidChannel    = errors.New("invalid transit channel")
	ErrTransitTimeout    = errors.New("no transit peer arrived")
)
