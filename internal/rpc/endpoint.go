package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Phase is the endpoint's position in the framing state machine.
type Phase int

const (
	// PhaseReadingHeaders accumulates "Name: Value" header lines until a
	// blank CRLF line closes the header block.
	PhaseReadingHeaders Phase = iota
	// PhaseReadingBody accumulates exactly Content-Length bytes of JSON.
	PhaseReadingBody
)

// headerLineRegexp matches a single completed "Name: Value" header line
// (CRLF already stripped) mirroring the reference server's header regex.
var headerLineRegexp = regexp.MustCompile(`^([^:]+):\s*(.+?)\s*$`)

const contentTypeHeaderValue = "application/vscode-jsonrpc;charset=utf-8"

// Endpoint is a byte-stream-driven JSON-RPC 2.0 framer and dispatcher. It
// implements the LSP handshake (uninitialized -> initialized), the
// Content-Length header/body framing, and method/response dispatch.
//
// An Endpoint is driven by exactly one goroutine calling Consume; it performs
// no internal locking, matching the single-threaded cooperative model this
// protocol assumes. A handler invoked synchronously from Consume may call
// Write, but must not call Consume on the same Endpoint.
type Endpoint struct {
	logger *slog.Logger

	initialized    bool
	tracing        bool
	verboseTracing bool

	phase         Phase
	headerBuf     []byte
	bodyBuf       []byte
	headers       map[string]string
	contentLength int

	busy bool

	methodHandlers  map[string]MethodHandler
	responseHandler ResponseHandler
	outputSink      OutputSink
}

// NewEndpoint creates an Endpoint ready to receive bytes. If logger is nil, a
// discarding logger is used.
func NewEndpoint(logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Endpoint{
		logger:         logger,
		phase:          PhaseReadingHeaders,
		headers:        make(map[string]string),
		methodHandlers: make(map[string]MethodHandler),
	}
}

// RegisterMethod installs or replaces the handler for method.
func (e *Endpoint) RegisterMethod(method string, handler MethodHandler) {
	e.methodHandlers[method] = handler
}

// RegisterResponseHandler installs the sink for inbound responses to
// server-initiated requests. There is exactly one; if the server ever issues
// concurrent outbound requests, demuxing by id is the caller's job.
func (e *Endpoint) RegisterResponseHandler(handler ResponseHandler) {
	e.responseHandler = handler
}

// RegisterOutput installs the sink that receives fully framed outbound bytes.
func (e *Endpoint) RegisterOutput(sink OutputSink) {
	e.outputSink = sink
}

// IsReady reports whether the endpoint is ready to start reading the next
// message, i.e. no message is currently in flight through dispatch.
func (e *Endpoint) IsReady() bool {
	return !e.busy
}

// IsInitialized reports whether an initialize request has completed.
func (e *Endpoint) IsInitialized() bool {
	return e.initialized
}

// Reset clears per-message parsing state while preserving lifecycle flags
// (initialized, tracing) and handler registrations. Unlike the state
// clearing that happens automatically after a successfully dispatched
// message, Reset marks the endpoint busy: the caller is expected to feed a
// full message through Consume before IsReady reports true again.
func (e *Endpoint) Reset() {
	e.clearMessageState()
	e.busy = true
}

func (e *Endpoint) clearMessageState() {
	e.headerBuf = e.headerBuf[:0]
	e.bodyBuf = nil
	e.headers = make(map[string]string)
	e.contentLength = 0
	e.phase = PhaseReadingHeaders
}

// Consume feeds one byte into the framing state machine. It never blocks and
// never panics across the call boundary; parse failures are converted into
// JSON-RPC error responses on the output sink.
func (e *Endpoint) Consume(c byte) {
	if e.phase == PhaseReadingBody {
		e.consumeBodyByte(c)
		return
	}
	e.consumeHeaderByte(c)
}

func (e *Endpoint) consumeHeaderByte(c byte) {
	e.headerBuf = append(e.headerBuf, c)

	if !bytes.HasSuffix(e.headerBuf, []byte("\r\n")) {
		return
	}

	line := e.headerBuf[:len(e.headerBuf)-2]
	e.headerBuf = e.headerBuf[:0]

	if len(line) == 0 {
		if e.contentLength > 0 {
			e.phase = PhaseReadingBody
			e.bodyBuf = make([]byte, 0, e.contentLength)
		} else {
			e.logger.Error("invalid content length header")
			e.writeError(nil, InvalidRequest, "Invalid content length")
			e.clearMessageState()
		}
		return
	}

	if match := headerLineRegexp.FindSubmatch(line); match != nil {
		name := string(match[1])
		value := string(match[2])
		e.headers[name] = value
		if name == "Content-Length" {
			if n, err := strconv.Atoi(value); err == nil {
				e.contentLength = n
			}
		}
	}
}

func (e *Endpoint) consumeBodyByte(c byte) {
	e.bodyBuf = append(e.bodyBuf, c)
	if len(e.bodyBuf) != e.contentLength {
		return
	}
	e.dispatchBody()
}

func (e *Endpoint) dispatchBody() {
	var msg Message
	if err := json.Unmarshal(e.bodyBuf, &msg); err != nil {
		e.logger.Error("failed to parse request", "error", err)
		e.writeError(nil, ParseError, "Failed to parse request")
		e.bodyBuf = nil
		e.phase = PhaseReadingHeaders
		return
	}

	if msg.Method != "" {
		e.dispatchMethod(&msg)
	} else if e.responseHandler != nil {
		e.invokeSafely("<response>", func() { e.responseHandler(&msg) })
	}

	e.clearMessageState()
	e.busy = false
}

func (e *Endpoint) dispatchMethod(msg *Message) {
	switch {
	case msg.Method == "initialize":
		e.applyInitialize(msg)
	case !e.initialized:
		e.writeError(msg.ID, NotInitialized, "Server was not initialized.")
		return
	case msg.Method == "$/setTrace":
		e.applySetTrace(msg)
	}

	handler, ok := e.methodHandlers[msg.Method]
	if !ok {
		mustRespond := !msg.IsNotification() || !strings.HasPrefix(msg.Method, "$/")
		if mustRespond {
			e.writeError(msg.ID, MethodNotFound, fmt.Sprintf("Method %q is not supported.", msg.Method))
		}
		return
	}
	e.invokeSafely(msg.Method, func() { handler(msg) })
}

func (e *Endpoint) applyInitialize(msg *Message) {
	var params struct {
		Trace string `json:"trace"`
	}
	if err := msg.UnmarshalParams(&params); err != nil {
		e.logger.Error("failed to read initialize params", "error", err)
	}
	if params.Trace == "" {
		params.Trace = "off"
	}
	e.tracing = params.Trace != "off"
	e.verboseTracing = params.Trace == "verbose"
	e.initialized = true
}

func (e *Endpoint) applySetTrace(msg *Message) {
	var params struct {
		Value string `json:"value"`
	}
	if err := msg.UnmarshalParams(&params); err != nil {
		e.logger.Error("failed to read setTrace params", "error", err)
		return
	}
	e.tracing = params.Value != "off"
	e.verboseTracing = params.Value == "verbose"
}

func (e *Endpoint) invokeSafely(label string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("handler panicked", "method", label, "recovered", r)
		}
	}()
	fn()
}

// Write serializes v with "jsonrpc":"2.0" merged in and emits it to the
// output sink, framed with Content-Length/Content-Type headers.
func (e *Endpoint) Write(v any) {
	if e.outputSink == nil {
		return
	}

	raw, err := json.Marshal(v)
	if err != nil {
		e.logger.Error("failed to marshal outgoing message", "error", err)
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		e.logger.Error("failed to merge jsonrpc version", "error", err)
		return
	}
	fields["jsonrpc"] = json.RawMessage(`"2.0"`)

	body, err := json.Marshal(fields)
	if err != nil {
		e.logger.Error("failed to marshal outgoing message", "error", err)
		return
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(body))
	fmt.Fprintf(&buf, "Content-Type: %s\r\n", contentTypeHeaderValue)
	buf.WriteString("\r\n")
	buf.Write(body)

	e.logger.Debug("outgoing message", "body", string(body))
	e.outputSink(buf.Bytes())
}

// WriteResponse writes a JSON-RPC response carrying result for the given id.
func (e *Endpoint) WriteResponse(id json.RawMessage, result any) {
	payload := map[string]any{"id": rawOrNull(id)}
	if result != nil {
		payload["result"] = result
	}
	e.Write(payload)
}

func (e *Endpoint) writeError(id json.RawMessage, code ErrorCode, message string) {
	e.WriteError(id, code, message)
}

// WriteError writes a JSON-RPC error response. id is omitted from the
// payload when it was never known (e.g. a header-phase failure preceding any
// parsed message); otherwise it is echoed back, including explicit null.
func (e *Endpoint) WriteError(id json.RawMessage, code ErrorCode, message string) {
	payload := map[string]any{
		"error": Error{Code: code, Message: message},
	}
	if len(id) > 0 {
		payload["id"] = json.RawMessage(id)
	}
	e.Write(payload)
}

// WriteNotification writes a JSON-RPC notification for method with params.
func (e *Endpoint) WriteNotification(method string, params any) {
	payload := map[string]any{"method": method}
	if params != nil {
		payload["params"] = params
	}
	e.Write(payload)
}

// LogTrace emits a $/logTrace notification if tracing is enabled. The
// verbose field is only included when verbose tracing is enabled.
func (e *Endpoint) LogTrace(message, verbose string) {
	if !e.tracing {
		return
	}
	params := map[string]any{"message": message}
	if e.verboseTracing {
		params["verbose"] = verbose
	}
	e.WriteNotification("$/logTrace", params)
}

func rawOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
