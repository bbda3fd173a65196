package lsp

import (
	"context"
	"encoding/json"
	"fmt"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/mcncl/gitlab-ci-ls/internal/config"
	"github.com/mcncl/gitlab-ci-ls/internal/git"
	"github.com/mcncl/gitlab-ci-ls/internal/graph"
	"github.com/mcncl/gitlab-ci-ls/internal/parser"
	"github.com/mcncl/gitlab-ci-ls/internal/treesitter"
	"github.com/mcncl/gitlab-ci-ls/internal/workspace"
)

// Server wires the workspace index, the position classifier and the document
// cache behind the LSP method surface. One message is handled at a time; the
// workspace's own locking covers structural sharing.
type Server struct {
	conn       jsonrpc2.Conn
	log        *zap.SugaredLogger
	cfg        *config.Config
	docs       *DocumentManager
	classifier *treesitter.Classifier

	fetcher *git.Fetcher
	graph   *graph.Graph
	ws      *workspace.Workspace
}

func NewServer(cfg *config.Config, log *zap.SugaredLogger) (*Server, error) {
	classifier, err := treesitter.NewClassifier(log)
	if err != nil {
		return nil, fmt.Errorf("build classifier: %w", err)
	}
	return &Server{
		log:        log,
		cfg:        cfg,
		docs:       NewDocumentManager(),
		classifier: classifier,
	}, nil
}

// SetConnection hands the server its jsonrpc2 connection so it can push
// diagnostics notifications.
func (s *Server) SetConnection(conn jsonrpc2.Conn) {
	s.conn = conn
}

func (s *Server) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	rootDir := s.cfg.RootDir
	if params.RootURI != "" {
		rootDir = params.RootURI.Filename()
	}
	s.log.Infow("initializing", "root", rootDir)

	s.graph = graph.New()
	s.fetcher = git.NewFetcher(s.cfg.CachePath, s.cfg.RemoteHosts, s.cfg.ProjectMap, s.log)
	resolver := parser.NewResolver(rootDir, s.fetcher, s.graph, s.log)
	s.ws = workspace.New(rootDir, resolver, s.graph, s.log)

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
			HoverProvider: true,
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{" ", ":", "-", "$", "."},
			},
			DefinitionProvider: true,
			ReferencesProvider: true,
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "gitlab-ci-ls",
			Version: s.cfg.Version,
		},
	}, nil
}

// Initialized runs the initial indexing pass. It happens synchronously on
// the single message queue; clients see their first requests answered from
// a complete index.
func (s *Server) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	if err := s.ws.Index(ctx); err != nil {
		s.log.Warnw("initial indexing failed", "error", err, "state", s.ws.State())
		return nil
	}
	s.log.Infow("initial indexing done", "state", s.ws.State())
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infow("shutting down")
	return nil
}

func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text
	s.docs.Open(uri, int32(params.TextDocument.Version), text)

	// Opening re-runs include following; editing does not. Roots re-index
	// first so the buffer's contributions are applied last and win.
	s.reindexRoots(ctx, string(uri))
	s.ws.IndexDocument(ctx, string(uri), text, true)
	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	uri := params.TextDocument.URI
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	s.docs.Update(uri, params.TextDocument.Version, text)

	// Edits never re-follow includes; only the file's own contributions are
	// recomputed until the next didOpen.
	s.ws.IndexDocument(ctx, string(uri), text, false)
	s.publishDiagnostics(ctx, uri, text)
	return nil
}

// reindexRoots refreshes every pipeline root that pulls the given file in, so
// aggregates computed along the include chain (stages, variables) catch up
// when an included file is opened.
func (s *Server) reindexRoots(ctx context.Context, uri string) {
	if len(s.graph.IncludedBy(uri)) == 0 {
		return
	}
	roots := s.graph.Roots(uri, func(u string) bool {
		_, ok := s.ws.Content(u)
		return ok
	})
	for _, root := range roots {
		if root == uri {
			continue
		}
		content, ok := s.ws.Content(root)
		if !ok {
			continue
		}
		s.ws.IndexDocument(ctx, root, content, true)
	}
}

func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.docs.Close(params.TextDocument.URI)
	return nil
}

func (s *Server) publishDiagnostics(ctx context.Context, uri protocol.DocumentURI, content string) {
	if s.conn == nil {
		return
	}
	diags := s.ws.Diagnostics(string(uri), content)
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, protocol.Diagnostic{
			Range:    toProtocolRange(d.Range),
			Severity: protocol.DiagnosticSeverityWarning,
			Source:   "gitlab-ci-ls",
			Message:  d.Message,
		})
	}
	err := s.conn.Notify(ctx, "textDocument/publishDiagnostics", &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: out,
	})
	if err != nil {
		s.log.Warnw("publish diagnostics failed", "uri", uri, "error", err)
	}
}

// classifyAt runs the position classifier for a cursor inside an open
// document.
func (s *Server) classifyAt(uri protocol.DocumentURI, pos protocol.Position) (treesitter.PositionType, *Document, bool) {
	doc, ok := s.docs.Get(uri)
	if !ok {
		// Fall back to the indexed copy for documents the client never sent.
		content, found := s.ws.Content(string(uri))
		if !found {
			return treesitter.PositionType{}, nil, false
		}
		doc = newDocument(uri, 0, content)
	}
	return s.classifier.Classify(doc.Content, int(pos.Line), int(pos.Character)), doc, true
}

func toProtocolRange(r parser.Range) protocol.Range {
	return protocol.Range{
		Start: protocol.Position{Line: uint32(r.Start.Line), Character: uint32(r.Start.Character)},
		End:   protocol.Position{Line: uint32(r.End.Line), Character: uint32(r.End.Character)},
	}
}

func toLocation(el parser.Element) protocol.Location {
	return protocol.Location{
		URI:   protocol.DocumentURI(el.URI),
		Range: toProtocolRange(el.Range),
	}
}

// Handler dispatches inbound jsonrpc2 messages to the typed methods.
func (s *Server) Handler() jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		s.log.Debugw("request", "method", req.Method())
		switch req.Method() {
		case "initialize":
			var params protocol.InitializeParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return reply(ctx, nil, err)
			}
			result, err := s.Initialize(ctx, &params)
			return reply(ctx, result, err)

		case "initialized":
			var params protocol.InitializedParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return reply(ctx, nil, err)
			}
			return reply(ctx, nil, s.Initialized(ctx, &params))

		case "shutdown":
			return reply(ctx, nil, s.Shutdown(ctx))

		case "exit":
			return nil

		case "textDocument/didOpen":
			var params protocol.DidOpenTextDocumentParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return reply(ctx, nil, err)
			}
			return reply(ctx, nil, s.DidOpen(ctx, &params))

		case "textDocument/didChange":
			var params protocol.DidChangeTextDocumentParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return reply(ctx, nil, err)
			}
			return reply(ctx, nil, s.DidChange(ctx, &params))

		case "textDocument/didClose":
			var params protocol.DidCloseTextDocumentParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return reply(ctx, nil, err)
			}
			return reply(ctx, nil, s.DidClose(ctx, &params))

		case "textDocument/hover":
			var params protocol.HoverParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return reply(ctx, nil, err)
			}
			result, err := s.Hover(ctx, &params)
			return reply(ctx, result, err)

		case "textDocument/completion":
			var params protocol.CompletionParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return reply(ctx, nil, err)
			}
			result, err := s.Completion(ctx, &params)
			return reply(ctx, result, err)

		case "textDocument/definition":
			var params protocol.DefinitionParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return reply(ctx, nil, err)
			}
			result, err := s.Definition(ctx, &params)
			return reply(ctx, result, err)

		case "textDocument/references":
			var params protocol.ReferenceParams
			if err := json.Unmarshal(req.Params(), &params); err != nil {
				return reply(ctx, nil, err)
			}
			result, err := s.References(ctx, &params)
			return reply(ctx, result, err)

		default:
			return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
		}
	}
}
