package async

import "errors"

// ErrShutdown is resolved onto handles enqueued after Shutdown has begun.
var ErrShutdown = errors.New("extraction queue is shutting down")
