package lsp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/ocls-project/ocls/internal/config"
	"github.com/ocls-project/ocls/internal/device"
	"github.com/ocls-project/ocls/internal/diagnostics"
	"github.com/ocls-project/ocls/internal/rpc"
)

// Server bridges JSON-RPC methods dispatched by an *rpc.Endpoint into the
// Diagnostics Engine and the open-document store.
type Server struct {
	documents *DocumentStore
	engine    *diagnostics.Engine
	endpoint  *rpc.Endpoint

	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	logger    *slog.Logger
	sessionID string

	stateMu           sync.RWMutex
	shutdownRequested bool
	done              bool
	exitCode          int
}

// NewServer creates a Server backed by the real OpenCL driver, logging to
// stderr at info level.
func NewServer(reader io.Reader, writer io.Writer) *Server {
	return NewServerWithLogger(reader, writer, nil)
}

// NewServerWithLogger creates a Server backed by the real OpenCL driver,
// logging through logger. If logger is nil, a default stderr logger is used.
func NewServerWithLogger(reader io.Reader, writer io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	inspector := device.NewInspector(logger)
	engine := diagnostics.NewEngine(logger, inspector)
	return newServer(reader, writer, logger, engine)
}

func newServer(reader io.Reader, writer io.Writer, logger *slog.Logger, engine *diagnostics.Engine) *Server {
	sessionID := uuid.NewString()
	logger = logger.With("session", sessionID)

	s := &Server{
		documents: NewDocumentStore(),
		engine:    engine,
		endpoint:  rpc.NewEndpoint(logger),
		reader:    bufio.NewReader(reader),
		writer:    writer,
		logger:    logger,
		sessionID: sessionID,
	}

	s.endpoint.RegisterOutput(s.write)
	s.endpoint.RegisterMethod("initialize", s.handleInitialize)
	s.endpoint.RegisterMethod("initialized", s.handleInitialized)
	s.endpoint.RegisterMethod("textDocument/didOpen", s.handleDidOpen)
	s.endpoint.RegisterMethod("textDocument/didChange", s.handleDidChange)
	s.endpoint.RegisterMethod("textDocument/didClose", s.handleDidClose)
	s.endpoint.RegisterMethod("$/setDevice", s.handleSetDevice)
	s.endpoint.RegisterMethod("shutdown", s.handleShutdown)
	s.endpoint.RegisterMethod("exit", s.handleExit)

	return s
}

// ApplySettings seeds the diagnostics engine from ambient configuration
// loaded before any client has connected. A client's initialize request may
// subsequently override any of these fields for the session.
func (s *Server) ApplySettings(cfg config.Config) {
	if len(cfg.BuildOptions) > 0 {
		s.engine.SetBuildOptions(toAnySlice(cfg.BuildOptions))
	}
	if cfg.MaxNumberOfProblems > 0 {
		s.engine.SetMaxProblems(cfg.MaxNumberOfProblems)
	}
	if err := s.engine.SetDevice(cfg.DeviceID); err != nil {
		s.logger.Error("failed to select initial opencl device", "error", err)
	}
}

// ExitCode reports the process exit code Run's caller should use: 0 after a
// clean shutdown/exit sequence, nonzero if exit arrived without shutdown.
func (s *Server) ExitCode() int {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.exitCode
}

// Run drives the byte pump until the client disconnects or issues exit.
func (s *Server) Run() error {
	s.logger.Info("ocls lsp server starting")

	buf := make([]byte, 1)
	for {
		s.stateMu.RLock()
		done := s.done
		s.stateMu.RUnlock()
		if done {
			return nil
		}

		n, err := s.reader.Read(buf)
		if n > 0 {
			s.endpoint.Consume(buf[0])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("client disconnected")
				return nil
			}
			return fmt.Errorf("read client stream: %w", err)
		}
	}
}

func (s *Server) write(data []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.writer.Write(data); err != nil {
		s.logger.Error("failed to write to client", "error", err)
	}
}

func (s *Server) handleInitialize(msg *rpc.Message) {
	var params InitializeParams
	if err := msg.UnmarshalParams(&params); err != nil {
		s.logger.Error("failed to parse initialize params", "error", err)
	}

	if opts := params.InitializationOptions; opts != nil {
		if opts.BuildOptions != nil {
			s.engine.SetBuildOptions(toAnySlice(opts.BuildOptions))
		}
		if opts.MaxNumberOfProblems != nil {
			s.engine.SetMaxProblems(*opts.MaxNumberOfProblems)
		}
		if opts.DeviceID != nil {
			if err := s.engine.SetDevice(*opts.DeviceID); err != nil {
				s.logger.Error("failed to select opencl device", "error", err)
			}
		}
	}

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
			},
		},
	}
	s.endpoint.WriteResponse(msg.ID, result)
}

// handleInitialized acknowledges the client's post-initialize notification.
// There is nothing to negotiate at this point; the handler exists so the
// endpoint doesn't answer the notification with a bogus MethodNotFound.
func (s *Server) handleInitialized(*rpc.Message) {
	s.logger.Debug("client sent initialized")
}

func (s *Server) handleDidOpen(msg *rpc.Message) {
	var params DidOpenTextDocumentParams
	if err := msg.UnmarshalParams(&params); err != nil {
		s.logger.Error("failed to parse didOpen params", "error", err)
		return
	}
	s.documents.Open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	s.publishDiagnostics(params.TextDocument.URI)
}

func (s *Server) handleDidChange(msg *rpc.Message) {
	var params DidChangeTextDocumentParams
	if err := msg.UnmarshalParams(&params); err != nil {
		s.logger.Error("failed to parse didChange params", "error", err)
		return
	}
	if len(params.ContentChanges) == 0 {
		return
	}
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	s.documents.Update(params.TextDocument.URI, text, params.TextDocument.Version)
	s.publishDiagnostics(params.TextDocument.URI)
}

func (s *Server) handleDidClose(msg *rpc.Message) {
	var params DidCloseTextDocumentParams
	if err := msg.UnmarshalParams(&params); err != nil {
		s.logger.Error("failed to parse didClose params", "error", err)
		return
	}
	s.documents.Close(params.TextDocument.URI)
}

func (s *Server) handleSetDevice(msg *rpc.Message) {
	var params SetDeviceParams
	if err := msg.UnmarshalParams(&params); err != nil {
		s.logger.Error("failed to parse setDevice params", "error", err)
		if !msg.IsNotification() {
			s.endpoint.WriteError(msg.ID, rpc.InvalidParams, "invalid $/setDevice params")
		}
		return
	}

	if err := s.engine.SetDevice(params.DeviceID); err != nil {
		s.logger.Error("failed to switch opencl device", "error", err, "device_id", params.DeviceID)
		if !msg.IsNotification() {
			s.endpoint.WriteError(msg.ID, rpc.InternalError, err.Error())
		}
		return
	}

	if !msg.IsNotification() {
		s.endpoint.WriteResponse(msg.ID, nil)
	}
	for _, uri := range s.documents.List() {
		s.publishDiagnostics(uri)
	}
}

func (s *Server) handleShutdown(msg *rpc.Message) {
	s.stateMu.Lock()
	s.shutdownRequested = true
	s.stateMu.Unlock()
	s.endpoint.WriteResponse(msg.ID, nil)
}

func (s *Server) handleExit(*rpc.Message) {
	s.stateMu.Lock()
	if s.shutdownRequested {
		s.exitCode = 0
	} else {
		s.exitCode = 1
	}
	s.done = true
	s.stateMu.Unlock()
}

func (s *Server) publishDiagnostics(uri string) {
	doc := s.documents.Get(uri)
	if doc == nil {
		return
	}

	source := diagnostics.Source{Text: doc.Content, FilePath: URIToPath(uri)}
	diags, err := s.engine.Get(source)
	if err != nil {
		s.logger.Warn("diagnostics unavailable", "uri", uri, "error", err)
		diags = nil
	}

	s.endpoint.WriteNotification("textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: convertDiagnostics(diags),
	})
}

func convertDiagnostics(in []diagnostics.Diagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(in))
	for _, d := range in {
		out = append(out, Diagnostic{
			Range: Range{
				Start: Position{Line: uint32(d.Range.Start.Line), Character: uint32(d.Range.Start.Character)},
				End:   Position{Line: uint32(d.Range.End.Line), Character: uint32(d.Range.End.Character)},
			},
			Severity: DiagnosticSeverity(d.Severity),
			Source:   d.Source,
			Message:  d.Message,
		})
	}
	return out
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
