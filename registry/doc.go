// Package registry is the entry point for hosting HTTP servers.
//
// A ListenerConnectionManager owns the three schedulers servers run on:
// the selector pool performing socket writes, the shared worker pool
// running request handlers, and the idle-timeout pool closing inactive
// connections. Servers are keyed by address and identifier; creating a
// second server for the same pair fails with SERVER_ALREADY_EXISTS.
//
//	reg := registry.New(registry.Options{Logger: logger})
//	if err := reg.Initialize(); err != nil { ... }
//	defer reg.Dispose(ctx)
//
//	srv, err := reg.Create(ctx, registry.ServerConfiguration{
//		Name: "api", Host: "0.0.0.0", Port: 8081, UsePersistentConnections: true,
//	}, "orders")
package registry
