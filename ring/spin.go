package ring

import "runtime"

// spinYield is the pause hint inside the NextFree busy-wait. Gosched lets
// the consumer goroutine run when both roles share a thread and keeps the
// loop from monopolizing a P.
func spinYield() {
	runtime.Gosched()
}
