package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVisitorIPHeaderOrder(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"xff_first_hop", map[string]string{"X-Forwarded-For": "9.9.9.9, 10.0.0.1"}, "127.0.0.1:100", "9.9.9.9"},
		{"x_real_ip", map[string]string{"X-Real-IP": "8.8.8.8"}, "127.0.0.1:100", "8.8.8.8"},
		{"x_client_ip", map[string]string{"X-Client-IP": "7.7.7.7"}, "127.0.0.1:100", "7.7.7.7"},
		{"forwarded_for", map[string]string{"Forwarded": "for=6.6.6.6;proto=https"}, "127.0.0.1:100", "6.6.6.6"},
		{"forwarded_quoted_port", map[string]string{"Forwarded": `for="5.5.5.5:8080"`}, "127.0.0.1:100", "5.5.5.5"},
		{"remote_addr", nil, "4.4.4.4:5566", "4.4.4.4"},
		{"remote_addr_v6", nil, "[2001:db8::1]:443", "2001:db8::1"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = c.remote
			for k, v := range c.headers {
				r.Header.Set(k, v)
			}
			if got := VisitorIP(r); got != c.want {
				t.Fatalf("VisitorIP = %q, want %q", got, c.want)
			}
		})
	}
}

func TestRateLimitPerVisitor(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_QPS", "2")

	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	hit := func(addr string) int {
		r := httptest.NewRequest(http.MethodGet, "/snap", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	codes := []int{hit("1.1.1.1:10"), hit("1.1.1.1:10"), hit("1.1.1.1:10")}
	ok, limited := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			limited++
		}
	}
	if ok != 2 || limited != 1 {
		t.Fatalf("burst of 3 at qps 2: ok=%d limited=%d, want 2/1", ok, limited)
	}
	// 另一来源拥有独立的桶
	if c := hit("2.2.2.2:10"); c != http.StatusOK {
		t.Fatalf("second visitor got %d, want 200", c)
	}
}

func TestRateLimitDisabledPassthrough(t *testing.T) {
	calls := 0
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	for i := 0; i < 5; i++ {
		r := httptest.NewRequest(http.MethodGet, "/snap", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
	}
	if calls != 5 {
		t.Fatalf("calls = %d, want 5", calls)
	}
}
