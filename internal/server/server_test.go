package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func newTestServer() *Server {
	return New(nil, zerolog.Nop())
}

func TestNew(t *testing.T) {
	s := newTestServer()
	if s.cache == nil {
		t.Fatal("New() did not initialize cache")
	}
	if s.cfg == nil || s.cfg.Flood.Iterations != 2500 {
		t.Fatal("New(nil) should fall back to the default configuration")
	}
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{"string id", `{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`, "test-1", "tools/list"},
		{"number id", `{"jsonrpc":"2.0","id":42,"method":"ping"}`, float64(42), "ping"},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"initialize"}`, nil, "initialize"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}
			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestErrorResponse_OmitsEmptyData(t *testing.T) {
	s := newTestServer()
	data, err := json.Marshal(s.errorResponse(7, -32601, "Method not found: x", ""))
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if strings.Contains(string(data), `"data"`) {
		t.Errorf("empty data should be omitted: %s", data)
	}
	if strings.Contains(string(data), `"result"`) {
		t.Errorf("error response should not carry a result: %s", data)
	}
}

func TestHandleRequest_Initialize(t *testing.T) {
	resp := newTestServer().handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "initialize"})
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	var result struct {
		ProtocolVersion string                     `json:"protocolVersion"`
		Capabilities    map[string]json.RawMessage `json:"capabilities"`
		ServerInfo      ServerInfo                 `json:"serverInfo"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if result.ProtocolVersion != "2024-11-05" {
		t.Errorf("protocolVersion: got %s", result.ProtocolVersion)
	}
	if _, ok := result.Capabilities["tools"]; !ok {
		t.Errorf("tools capability missing: %s", data)
	}
	if result.ServerInfo.Name != "shadow-tools-mcp" || result.ServerInfo.Version != Version {
		t.Errorf("serverInfo: got %+v", result.ServerInfo)
	}
}

func TestHandleRequest_Routing(t *testing.T) {
	s := newTestServer()

	for _, m := range []string{"notifications/initialized", "notifications/cancelled"} {
		if resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", Method: m}); resp != nil {
			t.Errorf("%s should not be answered, got %+v", m, resp)
		}
	}

	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: "ping-1", Method: "ping"})
	if resp == nil || resp.Error != nil || resp.ID != "ping-1" {
		t.Errorf("ping: got %+v", resp)
	}

	resp = s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 3, Method: "resources/list"})
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Errorf("unknown method: got %+v", resp)
	}

	resp = s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 4, Method: "tools/list"})
	list, ok := resp.Result.(ToolsListResult)
	if !ok || len(list.Tools) != len(GetToolDefinitions()) {
		t.Errorf("tools/list: got %v", resp.Result)
	}
}

func TestServe_LineProtocol(t *testing.T) {
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"nope","arguments":{}}}`,
	}, "\n")

	var out bytes.Buffer
	if err := newTestServer().Serve(strings.NewReader(in), &out); err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	var responses []MCPResponse
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var r MCPResponse
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("response is not JSON: %q", sc.Text())
		}
		responses = append(responses, r)
	}

	if len(responses) != 4 {
		t.Fatalf("responses: got %d, want 4 (initialize, parse error, ping, tool error)", len(responses))
	}
	if responses[0].ID != float64(1) || responses[0].Error != nil {
		t.Errorf("initialize: got %+v", responses[0])
	}
	if responses[1].Error == nil || responses[1].Error.Code != -32700 {
		t.Errorf("parse error: got %+v", responses[1])
	}
	if responses[2].ID != float64(2) {
		t.Errorf("ping: got %+v", responses[2])
	}
	if responses[3].Error == nil || responses[3].Error.Code != -32000 {
		t.Errorf("unknown tool: got %+v", responses[3])
	}
}

func TestServe_OversizedLine(t *testing.T) {
	in := `{"jsonrpc":"2.0","id":1,"method":"ping","params":"` + strings.Repeat("x", maxRequestBytes) + `"}`
	var out bytes.Buffer
	if err := newTestServer().Serve(strings.NewReader(in), &out); err == nil {
		t.Error("Serve should report a line longer than the buffer")
	}
}
