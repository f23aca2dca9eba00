package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/obdai/obdai/internal/diagnosis"
)

// defaultKeepAlive is how often an idle diagnosis stream sends a comment line
// so proxies do not close it while the model is still generating.
const defaultKeepAlive = 15 * time.Second

// SSEEmitter implements diagnosis.ProgressEmitter by writing Server-Sent Events.
// It is safe for concurrent use.
type SSEEmitter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEEmitter creates an SSEEmitter for the given ResponseWriter.
// Returns nil if the writer does not support flushing.
func NewSSEEmitter(w http.ResponseWriter) *SSEEmitter {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil
	}
	return &SSEEmitter{w: w, flusher: f}
}

// Emit writes a progress event as an SSE data line and flushes.
func (e *SSEEmitter) Emit(ev diagnosis.ProgressEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.w, "event: %s\ndata: %s\n\n", ev.Type, data)
	e.flusher.Flush()
}

// KeepAlive writes an SSE comment line, which clients ignore.
func (e *SSEEmitter) KeepAlive() {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = io.WriteString(e.w, ": keep-alive\n\n")
	e.flusher.Flush()
}

// StartKeepAlive sends KeepAlive every interval until the returned stop
// function is called. Stop waits for the sender to exit, so no write happens
// after it returns.
func (e *SSEEmitter) StartKeepAlive(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				e.KeepAlive()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}
