package main

import (
	"net/http"
	"slices"
	"strings"
	"sync"
)

// Observer accumulates the exchanges reported by the Proxy. Each spec
// creates its own and closes it when done.
type Observer struct {
	mu       sync.Mutex
	requests []Request
	done     chan struct{}
	stopped  chan struct{}
}

func NewObserver(input <-chan Request) *Observer {
	o := &Observer{
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go o.collect(input)
	return o
}

func (o *Observer) collect(input <-chan Request) {
	defer close(o.stopped)
	for {
		select {
		case r, ok := <-input:
			if !ok {
				return
			}
			o.mu.Lock()
			o.requests = append(o.requests, r)
			o.mu.Unlock()
		case <-o.done:
			return
		}
	}
}

// Requests returns what was observed so far, oldest first.
func (o *Observer) Requests() []Request {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.requests)
}

// Gets returns the GET exchanges whose path starts with prefix.
func (o *Observer) Gets(prefix string) []Request {
	return slices.DeleteFunc(o.Requests(), func(r Request) bool {
		return r.Request.Method != http.MethodGet || !strings.HasPrefix(r.Request.URL.Path, prefix)
	})
}

// Close stops collecting; exchanges sent afterwards go to the next observer.
func (o *Observer) Close() {
	close(o.done)
	<-o.stopped
}
