// Package server is a minimal multithreaded static web server built on the
// thread pool.
//
// The accept loop runs on the caller's goroutine and hands every accepted
// connection to the pool as one Job. A job reads the request line, picks a
// page, and writes a bare HTTP/1.1 response with a Content-Length header:
//
//	GET / HTTP/1.1       -> 200 OK, hello.html
//	GET /sleep HTTP/1.1  -> 200 OK, hello.html after SleepDelay
//	anything else        -> 404 NOT FOUND, 404.html
//
// Pages are read from Config.Root on every request.
//
// Serve returns when its context is cancelled or after MaxRequests
// connections, and in both cases only after the pool has finished every
// connection it already accepted.
package server
