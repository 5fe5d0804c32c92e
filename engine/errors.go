package engine

import "errors"

var errNotReconnectable = errors.New("gateway does not support reconnect")
