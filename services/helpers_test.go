package services

import (
	"context"
	"errors"

	"eebc-advisor/internal/ai"
)

// fakeEmbedder produces deterministic vectors without any network call.
// Exact vectors can be pinned per text via the vectors map; everything else
// falls back to a character-histogram embedding. The dimension is mutable so
// tests can simulate a provider/model change between calls.
type fakeEmbedder struct {
	dim     int
	vectors map[string][]float32
	fail    bool
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.fail {
		return nil, errors.New("embedder unavailable")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := f.vectors[text]; ok {
			out[i] = v
			continue
		}
		v := make([]float32, f.dim)
		for j, r := range text {
			v[(j+int(r))%f.dim] += float32(int(r)%13 + 1)
		}
		out[i] = v
	}
	return out, nil
}

// fakeGenerator returns canned output per generation mode, records prompts,
// and can be set to fail selected modes.
type fakeGenerator struct {
	responses   map[ai.GenerationMode]string
	failModes   map[ai.GenerationMode]bool
	lastSystem  string
	lastPrompts []string
}

func (f *fakeGenerator) Complete(ctx context.Context, mode ai.GenerationMode, system, user string) (string, error) {
	f.lastSystem = system
	f.lastPrompts = append(f.lastPrompts, user)
	if f.failModes[mode] {
		return "", errors.New("generation unavailable")
	}
	if resp, ok := f.responses[mode]; ok {
		return resp, nil
	}
	return "", errors.New("no canned response")
}

// staticStores satisfies StoreSource with a fixed store.
type staticStores struct {
	store *VectorStore
}

func (s staticStores) Get(ctx context.Context) *VectorStore { return s.store }

func float64Ptr(v float64) *float64 { return &v }
func stringPtr(v string) *string    { return &v }
func boolPtr(v bool) *bool          { return &v }
