package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/trainforge/training-generator-backend/internal/ai"
)

// fakeProvider serves canned responses per prompt kind. Responses are popped
// in order; the last one repeats once the queue drains.
type fakeProvider struct {
	mu        sync.Mutex
	responses map[ai.PromptKind][]string
	errs      map[ai.PromptKind]error
	calls     map[ai.PromptKind]int
	prompts   map[ai.PromptKind][]string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		responses: make(map[ai.PromptKind][]string),
		errs:      make(map[ai.PromptKind]error),
		calls:     make(map[ai.PromptKind]int),
		prompts:   make(map[ai.PromptKind][]string),
	}
}

func (f *fakeProvider) respond(kind ai.PromptKind, responses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[kind] = append(f.responses[kind], responses...)
}

func (f *fakeProvider) fail(kind ai.PromptKind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[kind] = err
}

func (f *fakeProvider) callCount(kind ai.PromptKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

func (f *fakeProvider) GenerateJSON(_ context.Context, kind ai.PromptKind, _, user string, _ ...ai.Option) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[kind]++
	f.prompts[kind] = append(f.prompts[kind], user)
	if err := f.errs[kind]; err != nil {
		return nil, err
	}
	queue := f.responses[kind]
	if len(queue) == 0 {
		return nil, errNoCannedResponse
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[kind] = queue[1:]
	}
	return json.RawMessage(resp), nil
}

var errNoCannedResponse = errNoResponse{}

type errNoResponse struct{}

func (errNoResponse) Error() string { return "no canned response configured" }
