package core

import "errors"

// ErrAuth is wrapped by connection failures caused by rejected credentials.
var ErrAuth = errors.New("authentication failed")
