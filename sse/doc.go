// Package sse streams server-sent events to admin API clients.
//
// A Hub owns the subscriber set and runs on its own goroutine; publishers
// call Publish, which never blocks. ServeSSE attaches one HTTP request to
// the hub as a Client with a key filter:
//
//	hub := sse.NewHub(log)
//	go hub.Run()
//	hub.Publish("digest", sse.EventTypeJob, sse.JobEvent{ID: "digest", From: "idle", To: "firing"})
//
// Component wraps a Hub for the component registry.
package sse
