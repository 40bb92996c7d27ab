package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStandardClient_Wraps(t *testing.T) {
	customClient := &http.Client{}
	client := NewStandardClient(customClient)

	if client.Client != customClient {
		t.Error("expected custom client to be wrapped")
	}
	if NewStandardClient(nil).Client != http.DefaultClient {
		t.Error("expected nil to select http.DefaultClient")
	}
}

func TestGetJSON_Success(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `[{"prediction":"Idle"}]`)

	body, err := GetJSON(context.Background(), mock, "http://example.com/api/analysis-data")
	if err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if string(body) != `[{"prediction":"Idle"}]` {
		t.Errorf("got body %q", body)
	}

	req := mock.GetRequest(0)
	if req == nil || req.Method != http.MethodGet {
		t.Fatalf("expected a recorded GET, got %+v", req)
	}
	if req.Header.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", req.Header.Get("Accept"))
	}
}

func TestGetJSON_StatusError(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusInternalServerError, "boom\n")

	_, err := GetJSON(context.Background(), mock, "http://example.com/x")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusInternalServerError || statusErr.Body != "boom" {
		t.Errorf("unexpected status error: %+v", statusErr)
	}
}

func TestGetJSON_TransportError(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddErrorResponse(errors.New("connection refused"))

	if _, err := GetJSON(context.Background(), mock, "http://example.com/x"); err == nil {
		t.Fatal("expected error")
	}
	if mock.RequestCount() != 1 {
		t.Errorf("got %d requests, want 1", mock.RequestCount())
	}
}

func TestPostJSON_EmptyAndBody(t *testing.T) {
	var gotBodies []string
	var gotTypes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBodies = append(gotBodies, string(b))
		gotTypes = append(gotTypes, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client := NewStandardClient(srv.Client())
	if _, err := PostJSON(context.Background(), client, srv.URL+"/api/start-logging", nil); err != nil {
		t.Fatalf("PostJSON(nil) failed: %v", err)
	}
	if _, err := PostJSON(context.Background(), client, srv.URL+"/api/data-stream", map[string]float64{"acc_x": 1}); err != nil {
		t.Fatalf("PostJSON(body) failed: %v", err)
	}

	if gotBodies[0] != "" || gotTypes[0] != "" {
		t.Errorf("empty post sent body %q type %q", gotBodies[0], gotTypes[0])
	}
	if gotBodies[1] != `{"acc_x":1}` || gotTypes[1] != "application/json" {
		t.Errorf("json post sent body %q type %q", gotBodies[1], gotTypes[1])
	}
}

func TestMockHTTPClient_DoFunc(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.DoFunc = func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("custom")
	}
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	if _, err := mock.Do(req); err == nil || err.Error() != "custom" {
		t.Errorf("expected custom error, got %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("request not recorded")
	}
}

func TestMockHTTPClient_DefaultResponse(t *testing.T) {
	mock := NewMockHTTPClient()
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	resp, err := mock.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
