package snapengine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Engine：引擎实现方需要提供的吸附函数
type Engine interface {
	Snap(ctx context.Context, q Request) (*Response, error)
}

// Handler：把 Engine 包装成满足契约的 http.Handler
// 背景：第三方引擎只需实现 Snap 一个方法即可挂到任意 mux 上
func Handler(e Engine) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/snap", func(w http.ResponseWriter, r *http.Request) {
		q, err := parseRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out, err := e.Snap(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if out == nil {
			out = &Response{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	return mux
}

func parseRequest(r *http.Request) (Request, error) {
	var q Request
	var err error
	if q.X, err = parseCoord(r.URL.Query().Get("x")); err != nil {
		return q, fmt.Errorf("bad x: %w", err)
	}
	if q.Y, err = parseCoord(r.URL.Query().Get("y")); err != nil {
		return q, fmt.Errorf("bad y: %w", err)
	}
	if s := r.URL.Query().Get("tolerance"); s != "" {
		if q.Tolerance, err = parseCoord(s); err != nil {
			return q, fmt.Errorf("bad tolerance: %w", err)
		}
	}
	q.Vertices = r.URL.Query().Get("vertices") != "false"
	q.Segments = r.URL.Query().Get("segments") != "false"
	return q, nil
}
