package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// --- ParseTasks Tests ---

func TestParseTasks(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
		first string
	}{
		{"json array", `[{"name":"Fight","stage":"1-7"},{"name":"Mall"}]`, 2, "Fight"},
		{"json object", `{"tasks":[{"name":"Award"}]}`, 1, "Award"},
		{"yaml", "tasks:\n  - name: StartUp\n    client_type: Bilibili\n  - name: Fight\n    times: 2\n", 2, "StartUp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raws, err := ParseTasks([]byte(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(raws) != tt.count {
				t.Fatalf("expected %d tasks, got %d", tt.count, len(raws))
			}
			var first map[string]any
			if err := json.Unmarshal(raws[0], &first); err != nil {
				t.Fatalf("task is not json: %v", err)
			}
			if first["name"] != tt.first {
				t.Errorf("expected %s, got %v", tt.first, first["name"])
			}
		})
	}
}

func TestParseTasks_Errors(t *testing.T) {
	for _, input := range []string{`[]`, `{"tasks": 3}`, `[1, 2]`, `: bad`} {
		if _, err := ParseTasks([]byte(input)); err == nil {
			t.Errorf("expected error for %q", input)
		}
	}
}

// --- Client Tests ---

func TestClient_SendsTokenAndDecodes(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Access-Token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"status":"running","tasks":[{"id":"1","taskName":"Fight","typeTag":"Fight","status":"running"}],"logs":[]}}`))
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL, "s3cret").GetPipeline()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotToken != "s3cret" {
		t.Errorf("expected token header, got %q", gotToken)
	}
	if p.Status != "running" || len(p.Tasks) != 1 || p.Tasks[0].TaskName != "Fight" {
		t.Errorf("unexpected pipeline: %+v", p)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"code":"BUSY","message":"pipeline is busy"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Start()
	if err == nil || !strings.Contains(err.Error(), "BUSY") {
		t.Errorf("expected BUSY error, got %v", err)
	}
}

// --- Command Tests ---

func newTestRoot(t *testing.T, handler http.HandlerFunc, jsonMode bool) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var stdout, stderr bytes.Buffer
	clientFn := func() *Client { return NewClient(srv.URL, "") }
	outputFn := func() *Output { return NewOutputTo(jsonMode, &stdout, &stderr) }

	root := &cobra.Command{Use: "maa-cli", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(
		NewPipelineCmd(clientFn, outputFn),
		NewHistoryCmd(clientFn, outputFn),
		NewTypesCmd(clientFn, outputFn),
	)
	return root, &stdout
}

func TestPipelineAppendCmd(t *testing.T) {
	var body struct {
		Tasks []map[string]any `json:"tasks"`
	}
	root, stdout := newTestRoot(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/maa/pipeline/tasks" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":[{"id":"a","taskName":"Fight","typeTag":"Fight","status":"pending","maxRetries":3}]}`))
	}, false)

	path := filepath.Join(t.TempDir(), "tasks.yaml")
	os.WriteFile(path, []byte("- name: Fight\n  stage: 1-7\n"), 0o644)

	root.SetArgs([]string{"pipeline", "append", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(body.Tasks) != 1 || body.Tasks[0]["stage"] != "1-7" {
		t.Errorf("unexpected request body: %+v", body.Tasks)
	}
	if !strings.Contains(stdout.String(), "Fight") || !strings.Contains(stdout.String(), "pending") {
		t.Errorf("unexpected output:\n%s", stdout.String())
	}
}

func TestHistoryListCmd_JSON(t *testing.T) {
	root, stdout := newTestRoot(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			t.Errorf("expected limit=5, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{"data":[{"id":"r1","batch":2,"status":"completed","tasks":3,"completed":3}],"total":1}`))
	}, true)

	root.SetArgs([]string{"history", "list", "--limit", "5"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var runs []HistoryResponse
	if err := json.Unmarshal(stdout.Bytes(), &runs); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, stdout.String())
	}
	if len(runs) != 1 || runs[0].ID != "r1" {
		t.Errorf("unexpected runs: %+v", runs)
	}
}
