package domain

import "errors"

var (
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrReplyNotAllowed  = errors.New("ticket is closed; reopen it before replying")
	ErrEmptyMessage     = errors.New("message body is empty")
	ErrInvalidStatus    = errors.New("invalid ticket status")
	ErrInvalidPriority  = errors.New("invalid ticket priority")
	ErrInvalidRequester = errors.New("ticket requires exactly one of user id or guest identity")
)
