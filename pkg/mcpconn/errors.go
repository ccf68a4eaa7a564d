package mcpconn

import "errors"

// ErrNotConnected is returned by operations attempted while the
// manager has no live session.
var ErrNotConnected = errors.New("mcpconn: not connected")
