package executor

import (
	"errors"

	"github.com/caffeineduck/rulebox/modmap"
)

var (
	ErrInvalidBundle     = errors.New("invalid capability bundle")
	ErrInvalidConfig     = errors.New("invalid config")
	ErrEnvironmentClosed = errors.New("environment closed")
	ErrModuleNotFound    = modmap.ErrNotFound
)
