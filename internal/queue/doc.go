// Package queue provides a generic bounded FIFO for hand-offs between
// pipeline stages.
//
// The queue is a fixed ring buffer guarded by one mutex and two condition
// variables (items available, capacity available). Closing is explicit and
// observed by Dequeue atomically with the emptiness check, so a reader can
// tell "temporarily empty" from "no more data ever":
//
//	q := queue.New[string](64)
//
//	go func() {
//	    defer q.Close()
//	    for _, s := range input {
//	        if err := q.Enqueue(ctx, s); err != nil {
//	            return
//	        }
//	    }
//	}()
//
//	for {
//	    s, err := q.Dequeue(ctx)
//	    if errors.Is(err, queue.ErrClosed) {
//	        break
//	    }
//	    ...
//	}
//
// Every blocking call takes a context; cancelling it wakes the waiter.
package queue
