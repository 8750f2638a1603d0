package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestBridge(t *testing.T, handler http.HandlerFunc) *bridge {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return &bridge{baseURL: ts.URL, username: "u", password: "p", client: ts.Client()}
}

func callTool(t *testing.T, b *bridge, name string, arguments map[string]any) callResult {
	t.Helper()
	params, _ := json.Marshal(map[string]any{"name": name, "arguments": arguments})
	resp := b.dispatch(rpcRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp.Error != nil {
		t.Fatalf("%s: rpc error %+v", name, resp.Error)
	}
	return resp.Result.(callResult)
}

func TestDispatchProtocol(t *testing.T) {
	b := &bridge{}

	initResp := b.dispatch(rpcRequest{ID: 1, Method: "initialize"})
	info := initResp.Result.(map[string]any)
	if info["protocolVersion"] != protocolVersion {
		t.Errorf("initialize = %+v", info)
	}

	listed := b.dispatch(rpcRequest{ID: 2, Method: "tools/list"}).Result.(map[string]any)["tools"].([]tool)
	if len(listed) != len(tools) {
		t.Errorf("tools/list returned %d tools", len(listed))
	}

	tests := []struct {
		req  rpcRequest
		code int
	}{
		{rpcRequest{ID: 3, Method: "resources/list"}, codeMethodNotFound},
		{rpcRequest{ID: 4, Method: "tools/call", Params: json.RawMessage(`[`)}, codeInvalidParams},
	}
	for _, tt := range tests {
		if resp := b.dispatch(tt.req); resp.Error == nil || resp.Error.Code != tt.code {
			t.Errorf("%s = %+v, want code %d", tt.req.Method, resp, tt.code)
		}
	}
}

func TestToolsEncodeWithoutRoute(t *testing.T) {
	data, err := json.Marshal(tools[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"inputSchema"`) || strings.Contains(string(data), "route") {
		t.Errorf("tool JSON = %s", data)
	}
}

func TestToolCallsHitAPI(t *testing.T) {
	tests := []struct {
		tool       string
		args       map[string]any
		wantMethod string
		wantURI    string
		wantBody   string
	}{
		{"tasksync_list_tasks", map[string]any{"all": true}, "GET", "/api/tasks?all=1", ""},
		{"tasksync_list_tasks", nil, "GET", "/api/tasks", ""},
		{"tasksync_create_task", map[string]any{"title": "Buy milk"}, "POST", "/api/tasks", `{"title":"Buy milk"}`},
		{"tasksync_complete_task", map[string]any{"task_id": float64(7)}, "POST", "/api/task/7/done", ""},
		{"tasksync_reopen_task", map[string]any{"task_id": "7"}, "POST", "/api/task/7/undone", ""},
		{"tasksync_delete_task", map[string]any{"task_id": "7", "event": "delete-both"}, "DELETE", "/api/task/7?event=delete-both", ""},
		{"tasksync_list_providers", nil, "GET", "/api/providers", ""},
		{"tasksync_search", map[string]any{"provider": "work", "query": "report"}, "GET", "/api/search?provider=work&q=report", ""},
		{"tasksync_sync", nil, "POST", "/api/sync", ""},
	}

	for _, tt := range tests {
		t.Run(tt.wantURI, func(t *testing.T) {
			var gotMethod, gotURI, gotBody string
			b := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
				gotMethod, gotURI = r.Method, r.URL.RequestURI()
				body, _ := io.ReadAll(r.Body)
				gotBody = string(body)
				if u, p, ok := r.BasicAuth(); !ok || u != "u" || p != "p" {
					t.Errorf("basic auth = %q %q %v", u, p, ok)
				}
				w.Write([]byte(`{"success":true,"data":{"ok":1}}`))
			})

			res := callTool(t, b, tt.tool, tt.args)
			if res.IsError {
				t.Fatalf("isError, text %q", res.Content[0].Text)
			}
			if gotMethod != tt.wantMethod || gotURI != tt.wantURI {
				t.Errorf("request = %s %s, want %s %s", gotMethod, gotURI, tt.wantMethod, tt.wantURI)
			}
			if strings.TrimSpace(gotBody) != tt.wantBody {
				t.Errorf("body = %q, want %q", gotBody, tt.wantBody)
			}
			if !strings.Contains(res.Content[0].Text, `"ok": 1`) {
				t.Errorf("text = %q", res.Content[0].Text)
			}
		})
	}
}

func TestToolCallErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		tool   string
		want   string
	}{
		{"api error", http.StatusNotFound, `{"success":false,"error":"task not found"}`, "tasksync_complete_task", "API error: task not found"},
		{"plain text", http.StatusUnauthorized, "Unauthorized\n", "tasksync_sync", "HTTP 401: Unauthorized"},
		{"unknown tool", http.StatusOK, `{"success":true}`, "tasksync_teleport", "Unknown tool: tasksync_teleport"},
	}
	for _, tt := range tests {
		b := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			w.Write([]byte(tt.body))
		})
		res := callTool(t, b, tt.tool, map[string]any{"task_id": "99"})
		if !res.IsError || res.Content[0].Text != tt.want {
			t.Errorf("%s: got %+v, want %q", tt.name, res, tt.want)
		}
	}
}

func TestServeSkipsNotifications(t *testing.T) {
	b := &bridge{}
	in := strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}
not json

{"jsonrpc":"2.0","id":5,"method":"ping"}`)
	var out strings.Builder
	if err := b.serve(in, &out); err != nil {
		t.Fatalf("serve: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], `"id":5`) {
		t.Errorf("output = %q", out.String())
	}
}
