package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/atlasmap-sc/embedview/internal/category"
	"github.com/atlasmap-sc/embedview/internal/service"
)

func TestQueryFilter(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"no parameter", "method=both", nil},
		{"comma list", "categories=3,1", []string{"3", "1"}},
		{"comma list with spaces", "categories=" + url.QueryEscape(" 3 , 1 "), []string{"3", "1"}},
		{"number array", "categories=" + url.QueryEscape("[3,1]"), []string{"3", "1"}},
		{"string array", "categories=" + url.QueryEscape(`["3"," 1"]`), []string{"3", "1"}},
		{"mixed array", "categories=" + url.QueryEscape(`[3,"1"]`), []string{"3", "1"}},
		{"repeated", "categories=3&categories=1,7", []string{"3", "1", "7"}},
		{"empty hides all", "categories=", []string{}},
		{"empty array hides all", "categories=" + url.QueryEscape("[]"), []string{}},
		{"broken array kept as text", "categories=" + url.QueryEscape("[3"), []string{"[3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			got := queryFilter(q)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("queryFilter(%q) = %#v, want %#v", tt.query, got, tt.want)
			}
			if len(got) != 0 || len(tt.want) != 0 {
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("queryFilter(%q) = %#v, want %#v", tt.query, got, tt.want)
				}
			}
		})
	}
}

func TestBodyFilter(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        []string
	}{
		{"empty body", "application/json", "", nil},
		{"whitespace body", "application/json", " \n", nil},
		{"bare array", "application/json", "[3,1]", []string{"3", "1"}},
		{"object", "application/json", `{"categories":[3]}`, []string{"3"}},
		{"object with strings", "application/json", `{"categories":["3","1"]}`, []string{"3", "1"}},
		{"object null", "application/json", `{"categories":null}`, nil},
		{"object missing field", "application/json", `{"method":"both"}`, nil},
		{"object empty array", "application/json", `{"categories":[]}`, []string{}},
		{"object comma string", "application/json", `{"categories":"3,1"}`, []string{"3", "1"}},
		{"form body", "application/x-www-form-urlencoded", "categories=3&categories=1", []string{"3", "1"}},
		{"comma body", "text/plain", "3,1", []string{"3", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/plot.png", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)
			got, err := bodyFilter(r)
			if err != nil {
				t.Fatalf("bodyFilter(%q): %v", tt.body, err)
			}
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("bodyFilter(%q) = %#v, want %#v", tt.body, got, tt.want)
			}
			if len(got) != 0 || len(tt.want) != 0 {
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("bodyFilter(%q) = %#v, want %#v", tt.body, got, tt.want)
				}
			}
		})
	}
}

func TestBodyFilter_Invalid(t *testing.T) {
	bodies := []string{
		`{"categories":[true]}`,
		`{"categories":[{"id":3}]}`,
		`{"categories":{"3":true}}`,
		`{bad`,
		`[3,`,
		"[" + strings.Repeat("1,", maxFilterBodyBytes/2) + "1]",
	}
	for _, body := range bodies {
		r := httptest.NewRequest(http.MethodPost, "/plot.png", strings.NewReader(body))
		if _, err := bodyFilter(r); !errors.Is(err, category.ErrInvalidInput) {
			name := body
			if len(name) > 32 {
				name = name[:32] + "..."
			}
			t.Errorf("bodyFilter(%q): expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestRequestFilter_GETIgnoresBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/figure?categories=7", strings.NewReader(`{"categories":[3]}`))
	got, err := requestFilter(r)
	if err != nil {
		t.Fatalf("requestFilter: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"7"}) {
		t.Errorf("requestFilter = %#v, want [7]", got)
	}
}

func TestCategoryFilterEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	visibility := func(t *testing.T, body []byte) map[string]string {
		t.Helper()
		var fig service.Figure
		if err := json.Unmarshal(body, &fig); err != nil {
			t.Fatalf("Failed to decode JSON: %v", err)
		}
		out := make(map[string]string, len(fig.Data))
		for _, tr := range fig.Data {
			out[tr.Name] = tr.Visible
		}
		return out
	}

	t.Run("json array in query", func(t *testing.T) {
		resp, body := ts.get(t, "/d/worm/api/figure?method=proposed&categories="+url.QueryEscape("[1]"))
		assertStatusCode(t, resp, http.StatusOK)
		got := visibility(t, body)
		if got["0 - neuron"] != "legendonly" || got["1 - muscle"] != "" {
			t.Errorf("Unexpected visibility: %v", got)
		}
	})

	t.Run("empty value hides all", func(t *testing.T) {
		resp, body := ts.get(t, "/d/worm/api/figure?method=proposed&categories=")
		assertStatusCode(t, resp, http.StatusOK)
		for name, v := range visibility(t, body) {
			if v != "legendonly" {
				t.Errorf("Trace %q visible=%q, want legendonly", name, v)
			}
		}
	})

	t.Run("non-integer key", func(t *testing.T) {
		resp, _ := ts.get(t, "/d/worm/api/figure?categories=T")
		assertStatusCode(t, resp, http.StatusBadRequest)
	})

	t.Run("post figure with bare array", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodPost, "/d/worm/api/figure?method=proposed", "[0]")
		assertStatusCode(t, resp, http.StatusOK)
		got := visibility(t, body)
		if got["0 - neuron"] != "" || got["1 - muscle"] != "legendonly" {
			t.Errorf("Unexpected visibility: %v", got)
		}
	})

	t.Run("post plot hiding all", func(t *testing.T) {
		resp, body := ts.do(t, http.MethodPost, "/d/worm/plot.png?width=64&height=64", `{"categories":[]}`)
		assertStatusCode(t, resp, http.StatusOK)
		assertPNG(t, body)
	})

	t.Run("post plot with bad entries", func(t *testing.T) {
		for _, body := range []string{`["x"]`, `{"categories":[true]}`, `{bad`} {
			resp, _ := ts.do(t, http.MethodPost, "/d/worm/plot.png", body)
			assertStatusCode(t, resp, http.StatusBadRequest)
		}
	})
}
