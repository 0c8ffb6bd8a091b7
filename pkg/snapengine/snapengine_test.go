package snapengine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type echoEngine struct{ lastReq Request }

func (e *echoEngine) Snap(ctx context.Context, q Request) (*Response, error) {
	e.lastReq = q
	if !q.Vertices && !q.Segments {
		return &Response{}, nil
	}
	return &Response{Matched: true, X: q.X + 1, Y: q.Y - 1, Kind: KindVertex}, nil
}

type failEngine struct{}

func (failEngine) Snap(ctx context.Context, q Request) (*Response, error) {
	return nil, errors.New("engine exploded")
}

func TestClientServerRoundTrip(t *testing.T) {
	eng := &echoEngine{}
	srv := httptest.NewServer(Handler(eng))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
	out, err := c.Snap(context.Background(), Request{X: 3.25, Y: -7.5, Tolerance: 0.5, Vertices: true, Segments: true})
	if err != nil {
		t.Fatalf("Snap: %v", err)
	}
	if !out.Matched || out.X != 4.25 || out.Y != -8.5 || out.Kind != KindVertex {
		t.Fatalf("Snap = %+v", out)
	}
	if eng.lastReq.Tolerance != 0.5 || !eng.lastReq.Vertices || !eng.lastReq.Segments {
		t.Fatalf("request did not survive the wire: %+v", eng.lastReq)
	}
}

func TestHandlerRejectsBadCoordinates(t *testing.T) {
	srv := httptest.NewServer(Handler(&echoEngine{}))
	defer srv.Close()

	for _, q := range []string{"x=abc&y=1", "x=1&y=NaN", "y=1", "x=1&y=2&tolerance=Inf"} {
		resp, err := http.Get(srv.URL + "/snap?" + q)
		if err != nil {
			t.Fatalf("Get(%q): %v", q, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("query %q: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestClientSurfacesEngineError(t *testing.T) {
	srv := httptest.NewServer(Handler(failEngine{}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Snap(context.Background(), Request{X: 1, Y: 2}); err == nil {
		t.Fatal("expected error from failing engine")
	}
}
