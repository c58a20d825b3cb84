package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/AntanasZilinskas/fd2p/application/service"
	"github.com/AntanasZilinskas/fd2p/domain/search"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSearch implements Searcher with canned rows and records its arguments.
type fakeSearch struct {
	rows      []search.Row
	err       error
	lastQuery string
	lastLimit int
}

func (f *fakeSearch) Similar(_ context.Context, query string, topN int) ([]search.Row, error) {
	f.lastQuery, f.lastLimit = query, topN
	return f.rows, f.err
}

func (f *fakeSearch) Lexical(_ context.Context, query string, maxResults int) ([]search.Row, error) {
	f.lastQuery, f.lastLimit = query, maxResults
	return f.rows, f.err
}

// sendMessage marshals a JSON-RPC request, sends it through HandleMessage,
// and returns the JSONRPCResponse.
func sendMessage(t *testing.T, srv *Server, method string, id int, params map[string]any) mcp.JSONRPCResponse {
	t.Helper()

	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	result := srv.MCPServer().HandleMessage(context.Background(), raw)

	resp, ok := result.(mcp.JSONRPCResponse)
	require.True(t, ok, "expected JSONRPCResponse, got %T: %+v", result, result)
	return resp
}

// resultJSON re-marshals the Result field through JSON into dst.
func resultJSON(t *testing.T, resp mcp.JSONRPCResponse, dst any) {
	t.Helper()
	b, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, dst))
}

func textFromContent(t *testing.T, result mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	b, err := json.Marshal(result.Content[0])
	require.NoError(t, err)
	var tc struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(b, &tc))
	return tc.Text
}

func initializeParams() map[string]any {
	return map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "test-client",
			"version": "0.0.1",
		},
	}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) mcp.CallToolResult {
	t.Helper()
	sendMessage(t, srv, "initialize", 1, initializeParams())
	resp := sendMessage(t, srv, "tools/call", 2, map[string]any{
		"name":      name,
		"arguments": args,
	})
	var result mcp.CallToolResult
	resultJSON(t, resp, &result)
	return result
}

func TestServer_Initialize(t *testing.T) {
	srv := NewServer(&fakeSearch{}, "1.2.3", nil)
	resp := sendMessage(t, srv, "initialize", 1, initializeParams())

	var result mcp.InitializeResult
	resultJSON(t, resp, &result)

	assert.Equal(t, "fd2p", result.ServerInfo.Name)
	assert.Equal(t, "1.2.3", result.ServerInfo.Version)
	assert.NotNil(t, result.Capabilities.Tools)
}

func TestServer_ListTools(t *testing.T) {
	srv := NewServer(&fakeSearch{}, "1.2.3", nil)
	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "tools/list", 2, nil)

	var result mcp.ListToolsResult
	resultJSON(t, resp, &result)

	tools := map[string]mcp.Tool{}
	for _, tool := range result.Tools {
		tools[tool.Name] = tool
	}
	require.Len(t, tools, 3)

	similar, ok := tools["search_similar_titles"]
	require.True(t, ok)
	assert.Contains(t, similar.InputSchema.Properties, "top_n")
	assert.Contains(t, similar.InputSchema.Required, "query")

	titles, ok := tools["search_titles"]
	require.True(t, ok)
	assert.Contains(t, titles.InputSchema.Properties, "max_results")
	assert.Contains(t, titles.InputSchema.Required, "query")

	assert.Contains(t, tools, "get_version")
}

func TestServer_SearchSimilarTitles(t *testing.T) {
	fake := &fakeSearch{rows: []search.Row{{"id": 1, "title": "Hey Jude", "similarity": 0.93}}}
	srv := NewServer(fake, "1.2.3", nil)

	result := callTool(t, srv, "search_similar_titles", map[string]any{"query": "hey", "top_n": 3})

	require.False(t, result.IsError, textFromContent(t, result))
	assert.JSONEq(t, `[{"id":1,"title":"Hey Jude","similarity":0.93}]`, textFromContent(t, result))
	assert.Equal(t, "hey", fake.lastQuery)
	assert.Equal(t, 3, fake.lastLimit)
}

func TestServer_SearchTitles_DefaultLimit(t *testing.T) {
	fake := &fakeSearch{rows: []search.Row{}}
	srv := NewServer(fake, "1.2.3", nil)

	result := callTool(t, srv, "search_titles", map[string]any{"query": "jude"})

	require.False(t, result.IsError)
	assert.Equal(t, "[]", textFromContent(t, result))
	assert.Equal(t, 0, fake.lastLimit, "zero defers to the service default")
}

func TestServer_MissingQuery(t *testing.T) {
	srv := NewServer(&fakeSearch{}, "1.2.3", nil)

	for _, tool := range []string{"search_similar_titles", "search_titles"} {
		t.Run(tool, func(t *testing.T) {
			result := callTool(t, srv, tool, map[string]any{})
			assert.True(t, result.IsError)
			assert.Equal(t, "query is required", textFromContent(t, result))
		})
	}
}

func TestServer_SearchErrorsHideDetail(t *testing.T) {
	tests := []struct {
		name string
		tool string
		err  error
		want string
	}{
		{"index failure", "search_similar_titles", fmt.Errorf("%w: relation missing", service.ErrSearch), "Error fetching similar songs"},
		{"lexical failure", "search_titles", fmt.Errorf("%w: relation missing", service.ErrSearch), "Error executing search"},
		{"embed failure", "search_similar_titles", fmt.Errorf("%w: timeout", service.ErrEmbed), "Error processing request"},
		{"blank query", "search_titles", service.ErrEmptyQuery, "query is required"},
		{"unknown", "search_titles", errors.New("boom"), "Error processing request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&fakeSearch{err: tt.err}, "1.2.3", nil)
			result := callTool(t, srv, tt.tool, map[string]any{"query": "x"})
			assert.True(t, result.IsError)
			assert.Equal(t, tt.want, textFromContent(t, result))
		})
	}
}

func TestServer_GetVersion(t *testing.T) {
	srv := NewServer(&fakeSearch{}, "0.1.0-test", nil)

	result := callTool(t, srv, "get_version", map[string]any{})

	require.False(t, result.IsError)
	assert.Equal(t, "0.1.0-test", textFromContent(t, result))
}

var _ Searcher = (*fakeSearch)(nil)
