package integration

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func uiURL(path string) string {
	return strings.TrimRight(testServer, "/") + path
}

func TestWebUI_Dashboard(t *testing.T) {
	resp, err := http.Get(uiURL("/ui"))
	if err != nil {
		t.Fatalf("HTTP error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("expected HTML, got %q", ct)
	}
}

func TestWebUI_EvaluationDetail(t *testing.T) {
	ev := evaluate(t, "6*7")
	name, _ := ev["name"].(string)

	resp, err := http.Get(uiURL("/ui/" + name))
	if err != nil {
		t.Fatalf("HTTP error: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "6 7 *") {
		t.Error("detail page should show the postfix form")
	}
}

func TestWebUI_RootRedirects(t *testing.T) {
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Get(uiURL("/"))
	if err != nil {
		t.Fatalf("HTTP error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		t.Errorf("expected redirect, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/ui" {
		t.Errorf("Location = %q, want /ui", loc)
	}
}
