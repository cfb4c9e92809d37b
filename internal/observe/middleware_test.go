package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// respond returns a handler that answers with status and body.
func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func spanAttr(s tracetest.SpanStub, key string) (string, int64, bool) {
	for _, a := range s.Attributes {
		if string(a.Key) == key {
			return a.Value.Emit(), a.Value.AsInt64(), true
		}
	}
	return "", 0, false
}

func TestMiddleware_Span(t *testing.T) {
	exp := withTracing(t)
	m, _ := newTestMetrics(t)

	tests := []struct {
		name     string
		status   int
		wantCode codes.Code
	}{
		{"ok", http.StatusOK, codes.Unset},
		{"client error", http.StatusNotFound, codes.Unset},
		{"server error", http.StatusServiceUnavailable, codes.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp.Reset()
			h := Middleware(m)(respond(tt.status, ""))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("POST", "/spell", nil))

			if rec.Code != tt.status {
				t.Errorf("response status = %d, want %d", rec.Code, tt.status)
			}
			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("spans = %d, want 1", len(spans))
			}
			s := spans[0]
			if s.Name != "HTTP POST /spell" {
				t.Errorf("span name = %q", s.Name)
			}
			if _, code, ok := spanAttr(s, "http.response.status_code"); !ok || code != int64(tt.status) {
				t.Errorf("http.response.status_code = %d (present %v), want %d", code, ok, tt.status)
			}
			if s.Status.Code != tt.wantCode {
				t.Errorf("span status = %v, want %v", s.Status.Code, tt.wantCode)
			}
		})
	}
}

func TestMiddleware_ImplicitOK(t *testing.T) {
	exp := withTracing(t)
	m, reader := newTestMetrics(t)

	h := Middleware(m)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))

	if _, code, _ := spanAttr(exp.GetSpans()[0], "http.response.status_code"); code != 200 {
		t.Errorf("status attribute = %d, want 200", code)
	}
	hist := findMetric(collect(t, reader), "spellin.http.request.duration").Data.(metricdata.Histogram[float64])
	if s, _ := hist.DataPoints[0].Attributes.Value("status"); s.AsString() != "200" {
		t.Errorf("status metric attribute = %q, want 200", s.AsString())
	}
}

func TestMiddleware_CorrelationID(t *testing.T) {
	withTracing(t)
	m, _ := newTestMetrics(t)

	var seen string
	h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
	}))

	t.Run("fresh trace", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/x", nil))
		if len(seen) != 32 {
			t.Fatalf("handler correlation ID = %q, want 32 hex chars", seen)
		}
		if got := rec.Header().Get(CorrelationHeader); got != seen {
			t.Errorf("%s = %q, want %q", CorrelationHeader, got, seen)
		}
		if rec.Header().Get("traceparent") == "" {
			t.Error("response lacks traceparent")
		}
	})

	t.Run("continued trace", func(t *testing.T) {
		const traceID = "0af7651916cd43dd8448eb211c80319c"
		req := httptest.NewRequest("GET", "/x", nil)
		req.Header.Set("traceparent", "00-"+traceID+"-b7ad6b7169203331-01")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if seen != traceID {
			t.Errorf("handler correlation ID = %q, want %q", seen, traceID)
		}
		if got := rec.Header().Get(CorrelationHeader); got != traceID {
			t.Errorf("%s = %q, want %q", CorrelationHeader, got, traceID)
		}
	})
}

func TestMiddleware_ChiRoutePattern(t *testing.T) {
	exp := withTracing(t)
	m, reader := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(Middleware(m))
	r.Get("/api/favourites/{key}", respond(http.StatusOK, "Hi"))

	for _, key := range []string{"hello-world", "lima-alfa", "x"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/favourites/"+key, nil))
	}

	for _, s := range exp.GetSpans() {
		if s.Name != "HTTP GET /api/favourites/{key}" {
			t.Errorf("span name = %q, want route pattern", s.Name)
		}
		if route, _, _ := spanAttr(s, "http.route"); route != "/api/favourites/{key}" {
			t.Errorf("http.route = %q", route)
		}
	}

	met := findMetric(collect(t, reader), "spellin.http.request.duration")
	if met == nil {
		t.Fatal("duration histogram not recorded")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 {
		t.Fatalf("data points = %d, want one series per route", len(hist.DataPoints))
	}
	dp := hist.DataPoints[0]
	if dp.Count != 3 {
		t.Errorf("count = %d, want 3", dp.Count)
	}
	for key, want := range map[string]string{"method": "GET", "path": "/api/favourites/{key}", "status": "200"} {
		if v, _ := dp.Attributes.Value(attribute.Key(key)); v.AsString() != want {
			t.Errorf("%s = %q, want %q", key, v.AsString(), want)
		}
	}
}
