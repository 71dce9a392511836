// Package pool runs accepted connections on a fixed set of workers.
//
// Queue is an unbounded FIFO with a blocking Pop. Pool starts N workers on a
// Queue; each worker pops one item and runs the handler to completion before
// taking the next. Stop hands every item still queued to the abandon
// callback and waits for the workers, so each submitted item is either
// handled or abandoned, exactly once.
package pool
