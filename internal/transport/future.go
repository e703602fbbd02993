package transport

import "context"

// Future is the pending result of an asynchronous request.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn in its own goroutine and returns its future result.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn()
	}()
	return f
}

// Receive waits for the result. It may be called any number of times.
func (f *Future[T]) Receive() (T, error) {
	<-f.done
	return f.val, f.err
}

// ReceiveContext is Receive that gives up when ctx is done. The request
// itself keeps running until its own context ends.
func (f *Future[T]) ReceiveContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }
