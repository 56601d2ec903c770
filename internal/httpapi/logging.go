package httpapi

import (
	"github.com/rs/zerolog"
)

// zlog is an optional structured logger. If unset, handlers stay quiet
// beyond chi's middleware.
var zlog *zerolog.Logger

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = &l }
