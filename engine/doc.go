// Package engine wires a griddispatch node together and provides the
// application-level API for registering handlers and enqueuing work.
//
// The engine package exists to break an import cycle: the root
// griddispatch package defines the sentinel errors every subsystem
// imports, so it cannot import those subsystems back. Engine sits above
// them and below the application layer.
//
// # Building an Engine
//
//	n, err := griddispatch.New(
//	    griddispatch.WithStore(redisstore.New(client)),
//	    griddispatch.WithPoolSize(16),
//	)
//
//	eng, err := engine.Build(n,
//	    engine.WithExtension(myExtension),
//	    engine.WithJobTimeout(time.Minute),
//	)
//
// # Registering and Enqueuing
//
//	engine.Register(eng, job.NewDefinition("resize", resize))
//	j, err := engine.Enqueue(ctx, eng, "resize", taskID, ResizeInput{Width: 640})
//
// # Options
//
//   - [WithExtension] registers a lifecycle extension
//   - [WithMiddleware] adds a middleware to the grid's execution chain
//   - [WithJobTimeout] bounds each job's execution
//   - [WithMembership] reads and publishes membership somewhere other than
//     the store, e.g. a cluster/k8s Provider
//   - [WithTracerProvider] and [WithMeterProvider] set OpenTelemetry providers
//   - [WithMetricFactory] sets the go-utils metrics factory
package engine
