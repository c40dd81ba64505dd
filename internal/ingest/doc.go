// Package ingest moves YoLink events from the vendor MQTT broker to devices.
//
// The pipeline has three parts:
//
//	Subscriber  vendor MQTT session; parses payloads and pushes events
//	Queue       bounded FIFO with a drop or block overflow policy
//	Consumer    single worker; dispatches each event to its Device
//
// The Subscriber runs on paho's callback goroutines and the Consumer on
// its own goroutine. The Queue is the only state they share.
//
// Usage:
//
//	q := ingest.NewQueue(cfg.Queue.Capacity, cfg.Queue.Overflow, log)
//	sub := ingest.NewSubscriber(subCfg, tokens, q, log)
//	con := ingest.NewConsumer(q, registry, log)
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(func() error { return sub.Run(ctx) })
//	g.Go(func() error { return con.Run(ctx) })
package ingest
