package wailsapp

import "errors"

// ErrNotConnected is returned by bindings when startup could not reach the worker.
var ErrNotConnected = errors.New("not connected to the worker")
