// Package eventq provides non-blocking channel sends for notification
// queues: a full queue drops the value instead of stalling the publisher.
package eventq

// Offer performs a non-blocking send. It returns true when the value was
// sent and false when the channel is full or closed.
func Offer[T any](ch chan<- T, value T) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()
	select {
	case ch <- value:
		return true
	default:
		return false
	}
}
