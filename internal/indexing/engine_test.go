package indexing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/templateguard/simengine/internal/config"
	"github.com/templateguard/simengine/internal/fetch"
	"github.com/templateguard/simengine/pkg/models"
)

const fixtureHTML = `<!DOCTYPE html>
<html><head><title>t</title><style>.hero{color:red;padding:4px}</style></head>
<body>
<header class="site-header w-nav"><nav><ul><li>Home</li><li>About</li></ul></nav></header>
<main><section class="hero"><h1>Welcome</h1><p>Hello world</p></section></main>
</body></html>`

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(fixtureHTML))
	})
	return httptest.NewServer(mux)
}

const divergentFixtureHTML = `<!DOCTYPE html>
<html><head><title>unrelated</title><style>.checkout{display:flex;gap:2rem}</style></head>
<body>
<aside class="cart-summary"><ul><li>Item one</li><li>Item two</li><li>Item three</li></ul></aside>
<form><input type="text" name="card"><button>Pay now</button></form>
</body></html>`

func newDivergentFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(divergentFixtureHTML))
	})
	return httptest.NewServer(mux)
}

func TestFingerprintPageProducesAllThreeVariants(t *testing.T) {
	srv := newFixtureServer(t)
	defer srv.Close()

	cfg := config.Defaults()
	engine := NewEngine(fetch.NewClient(zap.NewNop()), nil, cfg, zap.NewNop())

	fp, err := engine.FingerprintPage(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fp.CSS.IsEmpty() {
		t.Error("expected non-empty CSS sketch")
	}
	if fp.HTML.IsEmpty() {
		t.Error("expected non-empty HTML sketch")
	}
	if fp.Combined.IsEmpty() {
		t.Error("expected non-empty combined sketch")
	}
	if len(fp.Rules) == 0 {
		t.Error("expected at least one parsed CSS rule")
	}
	if len(fp.StructuralPatterns) == 0 {
		t.Error("expected at least one structural pattern")
	}
	if fp.PageType != models.PageHome {
		t.Errorf("expected root path to classify as home, got %s", fp.PageType)
	}
}

type fakeStore struct {
	mu        sync.Mutex
	templates map[string]models.Template
	sketches  map[string]models.TemplateSketches
	pages     map[string][]models.Page
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		templates: make(map[string]models.Template),
		sketches:  make(map[string]models.TemplateSketches),
		pages:     make(map[string][]models.Page),
	}
}

func (f *fakeStore) PutTemplate(ctx context.Context, tmpl models.Template, sketches models.TemplateSketches, bandRows map[models.Variant][]models.BandRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templates[tmpl.ID] = tmpl
	f.sketches[tmpl.ID] = sketches
	return nil
}

func (f *fakeStore) PutPage(ctx context.Context, page models.Page, sketch models.PageSketch, bandRows []models.BandRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[page.TemplateID] = append(f.pages[page.TemplateID], page)
	return nil
}

func (f *fakeStore) GetTemplateSketches(ctx context.Context, templateID string) (models.TemplateSketches, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sketches[templateID]
	if !ok {
		return models.TemplateSketches{}, models.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) GetTemplate(ctx context.Context, templateID string) (models.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[templateID]
	if !ok {
		return models.Template{}, models.ErrNotFound
	}
	return t, nil
}

func (f *fakeStore) ListPages(ctx context.Context, templateID string) ([]models.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[templateID], nil
}

func TestIndexTemplatePersistsTemplateAndOnePage(t *testing.T) {
	srv := newFixtureServer(t)
	defer srv.Close()

	cfg := config.Defaults()
	st := newFakeStore()
	engine := NewEngine(fetch.NewClient(zap.NewNop()), st, cfg, zap.NewNop())

	tmpl, err := engine.IndexTemplate(context.Background(), "tmpl-1", srv.URL+"/", "reporter-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tmpl.ID != "tmpl-1" {
		t.Fatalf("expected template id to round-trip, got %s", tmpl.ID)
	}

	stored, err := st.GetTemplateSketches(context.Background(), "tmpl-1")
	if err != nil {
		t.Fatalf("expected stored sketches, got error: %v", err)
	}
	if stored.Combined.IsEmpty() {
		t.Error("expected stored combined sketch to be non-empty")
	}

	pages, _ := st.ListPages(context.Background(), "tmpl-1")
	if len(pages) != 1 {
		t.Fatalf("expected exactly one page persisted, got %d", len(pages))
	}
}

func TestIndexTemplateWithoutStoreErrors(t *testing.T) {
	cfg := config.Defaults()
	engine := NewEngine(fetch.NewClient(zap.NewNop()), nil, cfg, zap.NewNop())

	_, err := engine.IndexTemplate(context.Background(), "tmpl-1", "http://example.invalid/", "")
	if err == nil {
		t.Fatal("expected error when store is nil")
	}
}
