package interceptor

import "errors"

// ErrClosed is returned by Init after Close.
var ErrClosed = errors.New("interceptor is closed")
