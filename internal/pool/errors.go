package pool

import "errors"

// ErrPoolClosed is returned by Get once the pool has been Closed.
var ErrPoolClosed = errors.New("pool: closed")
