// Package client provides a load generator for the web server.
//
// Each request is one job on a local threadpool.Pool. A job dials the server,
// sends a single request line, and reads the response until the server
// closes the connection. The pool records latency and the client counts
// responses by status line.
//
// # Basic Usage
//
//	c := client.New(client.Config{
//	    Addr:       "127.0.0.1:7878",
//	    NumWorkers: 8,
//	    SleepRatio: 0.1, // 10% of requests hit /sleep
//	})
//	result := c.RunRequests(ctx, 1000)
//	fmt.Println(result.Report())
package client
