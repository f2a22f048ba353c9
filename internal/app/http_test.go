package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, svc *Service) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewHTTPServer(svc, "*").Handler())
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("x-syllabus-sync-token", token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, payload
}

func TestHealthEndpoint(t *testing.T) {
	svc := newTestService(&fakeCaller{}, &fakeDataStore{}, &fakeLoader{}, nil, nil)
	server := newTestServer(t, svc)

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if payload["ok"] != true {
		t.Errorf("ok = %v, want true", payload["ok"])
	}
}

func TestSyncRequiresToken(t *testing.T) {
	svc := newTestService(&fakeCaller{}, &fakeDataStore{}, &fakeLoader{bundle: validBundle()}, nil, nil)
	server := newTestServer(t, svc)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/courses/42/sync", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if payload["code"] != "UNAUTHORIZED" {
		t.Errorf("code = %v", payload["code"])
	}
}

func TestSyncLegacyEndpoint(t *testing.T) {
	caller := &fakeCaller{
		rowFn: func(name string, dest []any, args []any) error {
			returnPairs(dest, `[1]`)
			return nil
		},
	}
	ds := &fakeDataStore{questionIDs: map[string]int64{"q1": 101}}
	svc := newTestService(caller, ds, &fakeLoader{bundle: validBundle()}, &fakeRunStore{}, nil)
	server := newTestServer(t, svc)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/courses/42/sync/legacy", "secret", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, payload)
	}
	if payload["pipeline"] != PipelineLegacy {
		t.Errorf("pipeline = %v, want legacy", payload["pipeline"])
	}
	if caller.calls[0].name != "sync_course_tags" {
		t.Errorf("first proc = %s", caller.calls[0].name)
	}
}

func TestSyncDefaultsToCurrentPipeline(t *testing.T) {
	caller := &fakeCaller{
		rowFn: func(name string, dest []any, args []any) error {
			returnPairs(dest, `[["algebra", 5]]`)
			return nil
		},
	}
	ds := &fakeDataStore{questionIDs: map[string]int64{"q1": 101}}
	svc := newTestService(caller, ds, &fakeLoader{bundle: validBundle()}, &fakeRunStore{}, nil)
	server := newTestServer(t, svc)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/courses/42/sync", "secret", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, payload)
	}
	if payload["pipeline"] != PipelineCurrent {
		t.Errorf("pipeline = %v, want current", payload["pipeline"])
	}
}

func TestSyncFromGitSourceOverHTTP(t *testing.T) {
	caller := &fakeCaller{
		rowFn: func(name string, dest []any, args []any) error {
			returnPairs(dest, `[["algebra", 5]]`)
			return nil
		},
	}
	ds := &fakeDataStore{questionIDs: map[string]int64{"q1": 101}}
	loader := &fakeLoader{bundle: validBundle()}
	svc := newTestService(caller, ds, loader, &fakeRunStore{}, nil)
	git := &fakeGitFetcher{dir: "/tmp/repos/42"}
	svc.git = git
	server := newTestServer(t, svc)

	body := `{"source":"git","repoUrl":"https://example.com/algebra.git","ref":"main"}`
	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/courses/42/sync", "secret", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, payload)
	}
	if len(git.urls) != 1 || git.urls[0] != "https://example.com/algebra.git" {
		t.Errorf("git fetch urls = %v", git.urls)
	}
	if len(loader.dirs) != 1 || loader.dirs[0] != "/tmp/repos/42" {
		t.Errorf("loaded dirs = %v", loader.dirs)
	}
}

func TestSyncRejectsNonNumericCourseID(t *testing.T) {
	svc := newTestService(&fakeCaller{}, &fakeDataStore{}, &fakeLoader{}, nil, nil)
	server := newTestServer(t, svc)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/courses/algebra/sync", "secret", "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestSearchRejectsBadType(t *testing.T) {
	svc := newTestService(&fakeCaller{}, &fakeDataStore{}, &fakeLoader{}, nil, nil)
	server := newTestServer(t, svc)

	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/search?q=x&type=thread", "secret", "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestSearchWithoutBackendReturnsEmpty(t *testing.T) {
	svc := newTestService(&fakeCaller{}, &fakeDataStore{}, &fakeLoader{}, nil, nil)
	server := newTestServer(t, svc)

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/search?q=algebra", "secret", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	results, ok := payload["results"].([]any)
	if !ok || len(results) != 0 {
		t.Errorf("results = %v, want empty list", payload["results"])
	}
}

func TestLTILinkLifecycleOverHTTP(t *testing.T) {
	ds := &fakeDataStore{}
	svc := newTestService(&fakeCaller{}, ds, &fakeLoader{}, nil, nil)
	server := newTestServer(t, svc)

	resp, payload := doJSON(t, http.MethodPut, server.URL+"/api/courses/42/lti-links", "secret",
		`{"resourceKey":"unit-1","launchUrl":"https://lms.example.com/launch/1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert status = %d, body %v", resp.StatusCode, payload)
	}
	if payload["resourceKey"] != "unit-1" {
		t.Errorf("resourceKey = %v", payload["resourceKey"])
	}

	resp, payload = doJSON(t, http.MethodGet, server.URL+"/api/courses/42/lti-links", "secret", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	items, _ := payload["items"].([]any)
	if len(items) != 1 {
		t.Errorf("items = %v, want one link", payload["items"])
	}

	resp, _ = doJSON(t, http.MethodDelete, server.URL+"/api/courses/42/lti-links/unit-1", "secret", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", resp.StatusCode)
	}

	resp, payload = doJSON(t, http.MethodDelete, server.URL+"/api/courses/42/lti-links/missing", "secret", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete missing status = %d, body %v", resp.StatusCode, payload)
	}
}

func TestUpsertLTILinkValidation(t *testing.T) {
	svc := newTestService(&fakeCaller{}, &fakeDataStore{}, &fakeLoader{}, nil, nil)
	server := newTestServer(t, svc)

	resp, _ := doJSON(t, http.MethodPut, server.URL+"/api/courses/42/lti-links", "secret",
		`{"launchUrl":"https://lms.example.com/launch/1"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}
