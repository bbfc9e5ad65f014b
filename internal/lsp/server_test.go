package lsp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/sqlscope/internal/engine"
	_ "github.com/leapstack-labs/sqlscope/pkg/dialects/postgres"
	"github.com/leapstack-labs/sqlscope/pkg/schema"
)

func testServer(t *testing.T, input *bytes.Buffer) (*Server, *bytes.Buffer) {
	t.Helper()

	cache := schema.NewCache(&schema.StaticFetcher{
		Tables: []*schema.Table{
			{
				Schema: "public", Name: "users", Kind: schema.KindTable,
				Columns: []schema.Column{
					{Name: "id", DataType: "bigint", Position: 1},
					{Name: "email", DataType: "text", Nullable: true, Position: 2},
				},
				PrimaryKey: []string{"id"},
			},
		},
	})

	var output bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServerWithLogger(input, &output, engine.New(cache), "postgres", logger), &output
}

// frame encodes a JSON-RPC message with a Content-Length header.
func frame(t *testing.T, msg JSONRPCMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return fmt.Appendf(nil, "Content-Length: %d\r\n\r\n%s", len(body), body)
}

func request(t *testing.T, id int, method string, params any) JSONRPCMessage {
	t.Helper()
	rawID := json.RawMessage(fmt.Sprintf("%d", id))
	msg := JSONRPCMessage{JSONRPC: "2.0", ID: &rawID, Method: method}
	if params != nil {
		p, err := json.Marshal(params)
		require.NoError(t, err)
		msg.Params = p
	}
	return msg
}

func notification(t *testing.T, method string, params any) JSONRPCMessage {
	t.Helper()
	msg := JSONRPCMessage{JSONRPC: "2.0", Method: method}
	if params != nil {
		p, err := json.Marshal(params)
		require.NoError(t, err)
		msg.Params = p
	}
	return msg
}

// decodeFrames parses every framed message the server wrote.
func decodeFrames(t *testing.T, output *bytes.Buffer) []JSONRPCMessage {
	t.Helper()

	var msgs []JSONRPCMessage
	data := output.Bytes()
	for len(data) > 0 {
		var length int
		n, err := fmt.Sscanf(string(data), "Content-Length: %d", &length)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		sep := bytes.Index(data, []byte("\r\n\r\n"))
		require.GreaterOrEqual(t, sep, 0)
		body := data[sep+4 : sep+4+length]

		var msg JSONRPCMessage
		require.NoError(t, json.Unmarshal(body, &msg))
		msgs = append(msgs, msg)
		data = data[sep+4+length:]
	}
	return msgs
}

func responseFor(t *testing.T, msgs []JSONRPCMessage, id int) *JSONRPCMessage {
	t.Helper()
	want := fmt.Sprintf("%d", id)
	for i := range msgs {
		if msgs[i].ID != nil && string(*msgs[i].ID) == want {
			return &msgs[i]
		}
	}
	t.Fatalf("no response with id %d", id)
	return nil
}

func notificationsFor(msgs []JSONRPCMessage, method string) []JSONRPCMessage {
	var out []JSONRPCMessage
	for _, m := range msgs {
		if m.Method == method && m.ID == nil {
			out = append(out, m)
		}
	}
	return out
}

func TestServerSession(t *testing.T) {
	uri := "file:///q.sql"
	text := "SELECT id FROM users"

	var input bytes.Buffer
	input.Write(frame(t, request(t, 1, "initialize", InitializeParams{RootURI: "file:///proj"})))
	input.Write(frame(t, notification(t, "initialized", nil)))
	input.Write(frame(t, notification(t, "textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, LanguageID: "sql", Version: 1, Text: text},
	})))
	input.Write(frame(t, request(t, 2, "textDocument/completion", CompletionParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     Position{Line: 0, Character: 20},
		},
	})))
	input.Write(frame(t, request(t, 3, "textDocument/hover", HoverParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: uri},
			Position:     Position{Line: 0, Character: 16},
		},
	})))
	input.Write(frame(t, request(t, 4, "shutdown", nil)))

	server, output := testServer(t, &input)
	require.NoError(t, server.Run())

	msgs := decodeFrames(t, output)

	// initialize advertises sync, completion and hover
	var init InitializeResult
	require.NoError(t, json.Unmarshal(responseFor(t, msgs, 1).Result, &init))
	require.NotNil(t, init.Capabilities.TextDocumentSync)
	assert.Equal(t, TextDocumentSyncKindFull, init.Capabilities.TextDocumentSync.Change)
	require.NotNil(t, init.Capabilities.CompletionProvider)
	assert.Contains(t, init.Capabilities.CompletionProvider.TriggerCharacters, ".")
	assert.True(t, init.Capabilities.HoverProvider)

	// didOpen published empty diagnostics for a valid statement
	pubs := notificationsFor(msgs, "textDocument/publishDiagnostics")
	require.Len(t, pubs, 1)
	var pub PublishDiagnosticsParams
	require.NoError(t, json.Unmarshal(pubs[0].Params, &pub))
	assert.Equal(t, uri, pub.URI)
	assert.Empty(t, pub.Diagnostics)

	// completion after "users" offers the matching table
	var list CompletionList
	require.NoError(t, json.Unmarshal(responseFor(t, msgs, 2).Result, &list))
	require.NotEmpty(t, list.Items)
	assert.Equal(t, "users", list.Items[0].Label)
	assert.Equal(t, CompletionItemKindClass, list.Items[0].Kind)
	assert.Equal(t, "0000", list.Items[0].SortText)

	// hover over the table names it and counts its columns
	var hover Hover
	require.NoError(t, json.Unmarshal(responseFor(t, msgs, 3).Result, &hover))
	assert.Equal(t, MarkupKindMarkdown, hover.Contents.Kind)
	assert.Contains(t, hover.Contents.Value, "public.users")
	assert.Contains(t, hover.Contents.Value, "2 columns")
}

func TestServerPublishesParseDiagnostics(t *testing.T) {
	uri := "file:///broken.sql"

	var input bytes.Buffer
	input.Write(frame(t, notification(t, "textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, Version: 1, Text: "SELECT FROM WHERE"},
	})))

	server, output := testServer(t, &input)
	require.NoError(t, server.Run())

	pubs := notificationsFor(decodeFrames(t, output), "textDocument/publishDiagnostics")
	require.Len(t, pubs, 1)

	var pub PublishDiagnosticsParams
	require.NoError(t, json.Unmarshal(pubs[0].Params, &pub))
	require.NotEmpty(t, pub.Diagnostics)
	assert.Equal(t, DiagnosticSeverityError, pub.Diagnostics[0].Severity)
	assert.Equal(t, diagnosticSource, pub.Diagnostics[0].Source)
	assert.NotEmpty(t, pub.Diagnostics[0].Message)
}

func TestServerDidChangeRefreshesDiagnostics(t *testing.T) {
	uri := "file:///c.sql"

	var input bytes.Buffer
	input.Write(frame(t, notification(t, "textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, Version: 1, Text: "SELECT bogus FROM users"},
	})))
	input.Write(frame(t, notification(t, "textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{TextDocumentIdentifier: TextDocumentIdentifier{URI: uri}, Version: 2},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: "SELECT id FROM users"}},
	})))

	server, output := testServer(t, &input)
	require.NoError(t, server.Run())

	pubs := notificationsFor(decodeFrames(t, output), "textDocument/publishDiagnostics")
	require.Len(t, pubs, 2)

	var first, second PublishDiagnosticsParams
	require.NoError(t, json.Unmarshal(pubs[0].Params, &first))
	require.NoError(t, json.Unmarshal(pubs[1].Params, &second))
	assert.NotEmpty(t, first.Diagnostics)
	assert.Equal(t, "unknown-column", first.Diagnostics[0].Code)
	assert.Empty(t, second.Diagnostics)
}

func TestServerDidCloseClearsDiagnostics(t *testing.T) {
	uri := "file:///d.sql"

	var input bytes.Buffer
	input.Write(frame(t, notification(t, "textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: uri, Version: 1, Text: "SELECT id FROM users"},
	})))
	input.Write(frame(t, notification(t, "textDocument/didClose", DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
	})))

	server, output := testServer(t, &input)
	require.NoError(t, server.Run())

	pubs := notificationsFor(decodeFrames(t, output), "textDocument/publishDiagnostics")
	require.Len(t, pubs, 2)

	var last PublishDiagnosticsParams
	require.NoError(t, json.Unmarshal(pubs[1].Params, &last))
	assert.Equal(t, uri, last.URI)
	assert.Empty(t, last.Diagnostics)
	assert.Nil(t, server.documents.Get(uri))
}

func TestServerUnknownMethod(t *testing.T) {
	var input bytes.Buffer
	input.Write(frame(t, request(t, 7, "textDocument/definition", nil)))

	server, output := testServer(t, &input)
	require.NoError(t, server.Run())

	resp := responseFor(t, decodeFrames(t, output), 7)
	require.NotNil(t, resp.Error)
	assert.Equal(t, -32601, resp.Error.Code)
}

// Run must stop cleanly when the client goes away without a shutdown request.
func TestServerStopsOnEOF(t *testing.T) {
	server, _ := testServer(t, &bytes.Buffer{})
	require.NoError(t, server.Run())
}
