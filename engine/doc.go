// Package engine wires the queuectl subsystems together and provides the
// application-level API used by the CLI and the HTTP server.
//
// The engine sits above every subsystem package (job, worker, dlq,
// status, ext, middleware) and below the application layer. The root
// queuectl package defines Config and the sentinel errors and cannot
// import those packages back.
//
// # Building an Engine
//
//	eng, err := engine.New(store,
//	    engine.WithConfig(queuectl.NewConfig(queuectl.WithMaxRetries(5))),
//	    engine.WithLogger(logger),
//	    engine.WithExtension(amqphook.New(pub)),
//	)
//
// # Enqueuing Jobs
//
//	j, err := eng.Enqueue(ctx, "echo hi")
//	j, err = eng.Enqueue(ctx, "./backup.sh", job.WithMaxRetries(5))
//
// # Workers
//
//	err := eng.StartWorkers(ctx, 4)   // queuectl.ErrWorkersRunning if already started
//	err = eng.StopWorkers(ctx)        // drains in-flight jobs
//
// When the store also implements cluster.Store, every worker keeps a
// liveness record there, and [Engine.DrainWorkers] lets another process
// ask those workers to stop.
//
// # Options
//
//   - [WithConfig]: engine and pool settings
//   - [WithLogger]: structured logger
//   - [WithClock]: time source for eligibility and stored timestamps
//   - [WithRunner]: command runner (defaults to sh -c)
//   - [WithBackoff]: retry backoff strategy
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware to the execution chain
//   - [WithTracerProvider]: set the OpenTelemetry tracer provider
//   - [WithMeterProvider]: set the OpenTelemetry meter provider
package engine
