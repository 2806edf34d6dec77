package usecases

import "errors"

var (
	ErrRunNotActive = errors.New("run is not active")
	ErrNilHistory   = errors.New("history store is nil")
)
