// Package progress records component startup events and replays them to viewers.
//
// # Overview
//
// The Bus is an append-only log with a single monotonic sequence counter and a
// one-way completion flag:
//
//	bus := progress.NewBus(logger)
//	bus.Append("db")     // Seq 1
//	bus.Append("cache")  // Seq 2
//	bus.Complete()       // no further appends
//
// # Subscriptions
//
// Viewers read with a cursor instead of receiving pushed values. Every
// subscription starts at sequence 1, so a viewer that connects after ten
// events have fired still receives all ten, in order, before any live ones:
//
//	sub := bus.Subscribe(ctx)
//	defer bus.Unsubscribe(sub)
//	for {
//		batch, err := bus.Pull(ctx, sub)
//		if err != nil {
//			return err
//		}
//		for _, ev := range batch.Events {
//			// deliver ev
//		}
//		if batch.Completed {
//			return nil
//		}
//	}
//
// Pull blocks only while the subscription has consumed everything and the log
// is still open. Appends never wait on viewers: the bus closes a generation
// channel to signal that data is available and each viewer pulls at its own
// pace.
//
// # Completion
//
// Complete runs registered OnComplete callbacks once, outside the bus lock.
// The request gate uses this to deregister itself from the request pipeline.
package progress
