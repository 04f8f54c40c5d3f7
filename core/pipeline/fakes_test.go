package pipeline

import (
	"context"
	"sync"
)

// fakeProvider returns vectors derived from the text and can fail scripted calls.
type fakeProvider struct {
	mu        sync.Mutex
	dimension int
	calls     [][]string
	errs      []error
	override  map[string][]float32
}

func newFakeProvider(dimension int) *fakeProvider {
	return &fakeProvider{
		dimension: dimension,
		override:  map[string][]float32{},
	}
}

func (p *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	call := len(p.calls)
	p.calls = append(p.calls, append([]string(nil), texts...))
	if call < len(p.errs) && p.errs[call] != nil {
		return nil, p.errs[call]
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := p.override[text]; ok {
			vectors[i] = v
			continue
		}
		v := make([]float32, p.dimension)
		v[0] = float32(len(text))
		vectors[i] = v
	}
	return vectors, nil
}

func (p *fakeProvider) Model() string {
	return "fake"
}

func (p *fakeProvider) Dimension() int {
	return p.dimension
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
