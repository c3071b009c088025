package backend

import (
	"context"
	"sync"
)

// Mock is a scripted backend for tests. It records every request it
// receives and replays configured responses, fragments, or errors. It is
// never registered in the provider factory.
type Mock struct {
	// Response is returned by Generate when Err is nil.
	Response string
	// Fragments are emitted in order by GenerateStream.
	Fragments []string
	// Err fails Generate immediately, or GenerateStream after FailAfter
	// fragments.
	Err error
	// FailAfter is the number of fragments delivered before Err is
	// reported on the stream path.
	FailAfter int

	mu       sync.Mutex
	requests []Request
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) record(req Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
}

// Requests returns every request seen, in order.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request and true, or false when none
// was made.
func (m *Mock) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}

func (m *Mock) Generate(ctx context.Context, req Request) (string, error) {
	m.record(req)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *Mock) GenerateStream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	m.record(req)
	contentChan := make(chan string, len(m.Fragments)+1)
	errorChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errorChan)
		for i, fragment := range m.Fragments {
			if m.Err != nil && i >= m.FailAfter {
				errorChan <- m.Err
				return
			}
			select {
			case contentChan <- fragment:
			case <-ctx.Done():
				errorChan <- ctx.Err()
				return
			}
		}
		if m.Err != nil && m.FailAfter >= len(m.Fragments) {
			errorChan <- m.Err
		}
	}()

	return contentChan, errorChan
}
