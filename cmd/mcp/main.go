// Command mcp exposes the tasksync HTTP API as MCP tools over stdio.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const protocolVersion = "2024-11-05"

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

type schema struct {
	Type       string              `json:"type"`
	Properties map[string]property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

type textBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callResult struct {
	Content []textBlock `json:"content"`
	IsError bool        `json:"isError,omitempty"`
}

// request is one HTTP call against the tasksync API
type request struct {
	method string
	path   string
	body   any
}

type args map[string]any

// str renders an argument for use in a URL; JSON numbers arrive as float64
func (a args) str(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}

type tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema schema `json:"inputSchema"`

	route func(args) request
}

func taskID(a args) string {
	return "/api/task/" + url.PathEscape(a.str("task_id"))
}

func taskIDSchema() schema {
	return schema{
		Type:       "object",
		Properties: map[string]property{"task_id": {Type: "string", Description: "Local task ID"}},
		Required:   []string{"task_id"},
	}
}

func noArgs() schema {
	return schema{Type: "object", Properties: map[string]property{}}
}

var tools = []tool{
	{
		Name:        "tasksync_list_tasks",
		Description: "List local tasks, including the ones mirrored from CalDAV todos and events.",
		InputSchema: schema{
			Type:       "object",
			Properties: map[string]property{"all": {Type: "boolean", Description: "Include done tasks"}},
		},
		route: func(a args) request {
			if all, _ := a["all"].(bool); all {
				return request{http.MethodGet, "/api/tasks?all=1", nil}
			}
			return request{http.MethodGet, "/api/tasks", nil}
		},
	},
	{
		Name:        "tasksync_create_task",
		Description: "Create a local task that is not linked to any calendar.",
		InputSchema: schema{
			Type:       "object",
			Properties: map[string]property{"title": {Type: "string", Description: "Task title"}},
			Required:   []string{"title"},
		},
		route: func(a args) request {
			return request{http.MethodPost, "/api/tasks", map[string]string{"title": a.str("title")}}
		},
	},
	{
		Name:        "tasksync_complete_task",
		Description: "Mark a task done. Linked todos are completed on the server when the provider allows it.",
		InputSchema: taskIDSchema(),
		route: func(a args) request {
			return request{http.MethodPost, taskID(a) + "/done", nil}
		},
	},
	{
		Name:        "tasksync_reopen_task",
		Description: "Mark a done task open again.",
		InputSchema: taskIDSchema(),
		route: func(a args) request {
			return request{http.MethodPost, taskID(a) + "/undone", nil}
		},
	},
	{
		Name:        "tasksync_delete_task",
		Description: "Delete a task. For events with write-back, choose whether the calendar event goes too.",
		InputSchema: schema{
			Type: "object",
			Properties: map[string]property{
				"task_id": {Type: "string", Description: "Local task ID"},
				"event":   {Type: "string", Description: "What to do with a linked event", Enum: []string{"delete-both", "keep-event"}},
			},
			Required: []string{"task_id"},
		},
		route: func(a args) request {
			path := taskID(a)
			if event := a.str("event"); event != "" {
				path += "?event=" + url.QueryEscape(event)
			}
			return request{http.MethodDelete, path, nil}
		},
	},
	{
		Name:        "tasksync_list_providers",
		Description: "List configured CalDAV providers.",
		InputSchema: noArgs(),
		route: func(args) request {
			return request{http.MethodGet, "/api/providers", nil}
		},
	},
	{
		Name:        "tasksync_search",
		Description: "Search open items of a provider by title.",
		InputSchema: schema{
			Type: "object",
			Properties: map[string]property{
				"provider": {Type: "string", Description: "Provider ID"},
				"query":    {Type: "string", Description: "Text to look for in titles"},
			},
			Required: []string{"provider"},
		},
		route: func(a args) request {
			q := url.Values{"provider": {a.str("provider")}, "q": {a.str("query")}}
			return request{http.MethodGet, "/api/search?" + q.Encode(), nil}
		},
	},
	{
		Name:        "tasksync_sync",
		Description: "Pull changes from every enabled provider now.",
		InputSchema: noArgs(),
		route: func(args) request {
			return request{http.MethodPost, "/api/sync", nil}
		},
	},
}

func findTool(name string) (tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return tool{}, false
}

// bridge forwards tool calls to the API with basic auth
type bridge struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

func newBridge() *bridge {
	base := os.Getenv("TASKSYNC_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	return &bridge{
		baseURL:  strings.TrimSuffix(base, "/"),
		username: os.Getenv("TASKSYNC_API_USERNAME"),
		password: os.Getenv("TASKSYNC_API_PASSWORD"),
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// serve answers one JSON-RPC message per line until in is exhausted
func (b *bridge) serve(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Printf("Bad JSON-RPC message: %v", err)
			continue
		}
		if req.ID == nil {
			continue // notification
		}

		if err := enc.Encode(b.dispatch(req)); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return scanner.Err()
}

func (b *bridge) dispatch(req rpcRequest) rpcResponse {
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]string{"name": "tasksync-mcp", "version": "1.0.0"},
		}
	case "ping":
		resp.Result = map[string]any{}
	case "tools/list":
		resp.Result = map[string]any{"tools": tools}
	case "tools/call":
		var params struct {
			Name      string `json:"name"`
			Arguments args   `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			resp.Error = &rpcError{Code: codeInvalidParams, Message: "Invalid params"}
			return resp
		}
		t, ok := findTool(params.Name)
		if !ok {
			resp.Result = toolError("Unknown tool: " + params.Name)
			return resp
		}
		resp.Result = b.call(t.route(params.Arguments))
	default:
		resp.Error = &rpcError{Code: codeMethodNotFound, Message: "Method not found"}
	}
	return resp
}

func toolError(text string) callResult {
	return callResult{Content: []textBlock{{Type: "text", Text: text}}, IsError: true}
}

func (b *bridge) call(r request) callResult {
	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return toolError(err.Error())
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequest(r.method, b.baseURL+r.path, body)
	if err != nil {
		return toolError(fmt.Sprintf("build request: %v", err))
	}
	httpReq.SetBasicAuth(b.username, b.password)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return toolError(fmt.Sprintf("tasksync API unreachable: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return toolError(fmt.Sprintf("read response: %v", err))
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		// plain-text replies such as the basic auth challenge
		text := strings.TrimSpace(string(raw))
		if resp.StatusCode >= 400 {
			return toolError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text))
		}
		return callResult{Content: []textBlock{{Type: "text", Text: text}}}
	}
	if !envelope.Success {
		return toolError("API error: " + envelope.Error)
	}

	text := "ok"
	if len(envelope.Data) > 0 {
		var pretty bytes.Buffer
		if json.Indent(&pretty, envelope.Data, "", "  ") == nil {
			text = pretty.String()
		} else {
			text = string(envelope.Data)
		}
	}
	return callResult{Content: []textBlock{{Type: "text", Text: text}}}
}

func main() {
	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	if err := newBridge().serve(os.Stdin, os.Stdout); err != nil {
		log.Fatalf("mcp: %v", err)
	}
}
