package extract

import (
	"context"
	"sync"

	"github.com/spherical/docstruct/internal/domain"
)

// fakeAI is a scripted AIService. The reply function receives the
// 1-based call number; call counting is safe under concurrency.
type fakeAI struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	reply   func(call int, prompt string, payload domain.Payload) (string, error)
}

func (f *fakeAI) Infer(ctx context.Context, prompt string, payload domain.Payload) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", domain.ServiceError("request cancelled", false, err)
	}
	return f.reply(call, prompt, payload)
}

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeDecoder serves preset units and rasters without touching a PDF.
type fakeDecoder struct {
	units  []domain.RawContentUnit
	err    error
	raster []byte
}

func (f *fakeDecoder) Decode(ctx context.Context, src domain.Source) ([]domain.RawContentUnit, error) {
	return f.units, f.err
}

func (f *fakeDecoder) DecodePage(ctx context.Context, src domain.Source, pageIndex int) ([]domain.RawContentUnit, error) {
	var out []domain.RawContentUnit
	for _, u := range f.units {
		if u.Position.PageIndex == pageIndex {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeDecoder) RenderPage(ctx context.Context, src domain.Source, pageIndex int) ([]byte, error) {
	return f.raster, nil
}
