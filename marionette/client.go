package marionette

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mailru/easyjson"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/liuxd6825/foxshot/errext"
	"github.com/liuxd6825/foxshot/log"
)

// Protocol constants checked during the handshake.
const (
	ApplicationType = "gecko"
	ProtocolVersion = 3
)

const (
	cmdNewSession     = "WebDriver:NewSession"
	cmdNavigate       = "WebDriver:Navigate"
	cmdExecuteScript  = "WebDriver:ExecuteScript"
	cmdFindElements   = "WebDriver:FindElements"
	cmdTakeScreenshot = "WebDriver:TakeScreenshot"
	cmdPrint          = "WebDriver:Print"
	cmdQuit           = "Marionette:Quit"
)

// State is the lifecycle stage of a Client.
type State int32

// Client states, in the order a session normally goes through them.
const (
	StateConnecting State = iota
	StateHandshaking
	StateSessionEstablished
	StateCommandInFlight
	StateTerminating
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateSessionEstablished:
		return "session-established"
	case StateCommandInFlight:
		return "command-in-flight"
	case StateTerminating:
		return "terminating"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ElementID is the opaque handle the browser hands out for a DOM element.
type ElementID string

// Capabilities are the parts of the NewSession reply foxshot cares about.
type Capabilities struct {
	BrowserName    string
	BrowserVersion string
	PlatformName   string
	Raw            easyjson.RawMessage
}

// ClientOptions configure Connect.
type ClientOptions struct {
	// DialTimeout bounds the TCP connect. Zero means only ctx bounds it.
	DialTimeout time.Duration
	// Capabilities are requested through capabilities.alwaysMatch. With none
	// set NewSession is sent with empty arguments.
	Capabilities map[string]interface{}
	Logger       *log.Logger
	Tracer       trace.Tracer
}

// Client is a Marionette session over a single connection. One command is
// in flight at a time.
type Client struct {
	conn   *Conn
	logger *log.Logger
	tracer trace.Tracer

	mu     sync.Mutex
	nextID uint64
	state  atomic.Int32

	sessionID string
	caps      Capabilities
}

// Connect dials addr, validates the server handshake and opens a session.
func Connect(ctx context.Context, addr string, opts ClientOptions) (*Client, error) {
	c := &Client{
		logger: opts.Logger,
		tracer: opts.Tracer,
	}
	if c.logger == nil {
		c.logger = log.NewNullLogger()
	}
	if c.tracer == nil {
		c.tracer = noop.NewTracerProvider().Tracer("")
	}
	c.setState(StateConnecting)

	conn, err := Dial(ctx, addr, opts.DialTimeout, c.logger)
	if err != nil {
		c.setState(StateClosed)
		return nil, err
	}
	c.conn = conn
	c.logger.Debugf("marionette", "connected to %s", addr)

	c.setState(StateHandshaking)
	if err := c.handshake(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	if err := c.newSession(ctx, opts.Capabilities); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// State returns the current lifecycle stage.
func (c *Client) State() State {
	return State(c.state.Load())
}

// SessionID returns the id assigned by NewSession.
func (c *Client) SessionID() string {
	return c.sessionID
}

// Capabilities returns what the browser reported when the session opened.
func (c *Client) Capabilities() Capabilities {
	return c.caps
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Client) handshake(ctx context.Context) error {
	payload, err := c.conn.ReadFrame(ctx)
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(payload) {
		return &errext.ProtocolError{Reason: fmt.Sprintf("malformed handshake %q", payload)}
	}

	app := gjson.GetBytes(payload, "applicationType")
	if app.String() != ApplicationType {
		return &errext.ProtocolError{
			Reason: fmt.Sprintf("expected application to be %s, not %q", ApplicationType, app.String()),
		}
	}
	version := gjson.GetBytes(payload, "marionetteProtocol")
	if version.Type != gjson.Number || version.Raw != strconv.Itoa(ProtocolVersion) {
		got := version.Raw
		if got == "" {
			got = "missing"
		}
		return &errext.ProtocolError{
			Reason: fmt.Sprintf("expected marionetteProtocol to be %d, not %s", ProtocolVersion, got),
		}
	}

	c.logger.Debugf("marionette", "handshake ok: %s protocol %d", app.String(), version.Int())
	return nil
}

func (c *Client) newSession(ctx context.Context, caps map[string]interface{}) error {
	reply, err := c.send(ctx, cmdNewSession, newSessionParams{capabilities: caps})
	if err != nil {
		return err
	}

	id := gjson.GetBytes(reply, "sessionId")
	if id.String() == "" {
		return &errext.ProtocolError{Command: cmdNewSession, Reason: "reply has no sessionId"}
	}
	c.sessionID = id.String()

	capsRes := gjson.GetBytes(reply, "capabilities")
	c.caps = Capabilities{
		BrowserName:    capsRes.Get("browserName").String(),
		BrowserVersion: capsRes.Get("browserVersion").String(),
		PlatformName:   capsRes.Get("platformName").String(),
		Raw:            easyjson.RawMessage(capsRes.Raw),
	}
	c.setState(StateSessionEstablished)

	c.logger.Infof("marionette", "session %s opened (%s %s)",
		c.sessionID, c.caps.BrowserName, c.caps.BrowserVersion)
	return nil
}

// send performs one command/response round trip and returns the reply.
// Message ids start at 0 and advance on every attempt, failed ones included.
func (c *Client) send(ctx context.Context, name string, params easyjson.Marshaler) (_ easyjson.RawMessage, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	defer func() { c.nextID++ }()

	ctx, span := c.tracer.Start(ctx, "marionette."+name, trace.WithAttributes(
		attribute.Int64("marionette.message_id", int64(id)),
		attribute.String("marionette.command", name),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	prev := c.State()
	if prev == StateClosed {
		return nil, &errext.ConnectionError{Op: "send " + name + " to", Addr: c.conn.RemoteAddr(), Err: net.ErrClosed}
	}
	c.setState(StateCommandInFlight)
	defer c.state.CompareAndSwap(int32(StateCommandInFlight), int32(prev))

	buf, err := encodeCommand(&Command{ID: id, Name: name, Params: params})
	if err != nil {
		return nil, err
	}
	if err := c.conn.WriteFrame(buf); err != nil {
		return nil, err
	}

	payload, err := c.conn.ReadFrame(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := decodeResponse(name, payload)
	if err != nil {
		return nil, err
	}
	if resp.ID != id {
		return nil, &errext.ProtocolError{
			Command: name,
			Reason:  fmt.Sprintf("response id %d does not match command id %d", resp.ID, id),
		}
	}
	if resp.Error != nil {
		return nil, peerError(name, resp.Error)
	}

	return resp.Result, nil
}

func peerError(command string, payload easyjson.RawMessage) error {
	res := gjson.ParseBytes(payload)
	perr := &errext.ProtocolError{
		Command:    command,
		Payload:    payload,
		Name:       res.Get("error").String(),
		Message:    res.Get("message").String(),
		Stacktrace: res.Get("stacktrace").String(),
	}
	if perr.Name == "" {
		perr.Name = "unknown error"
	}
	if perr.Message == "" {
		perr.Message = string(payload)
	}
	return perr
}

// Navigate loads url in the current browsing context and waits for it.
func (c *Client) Navigate(ctx context.Context, url string) error {
	_, err := c.send(ctx, cmdNavigate, navigateParams{url: url})
	return err
}

// ExecuteScript runs src in the page with no arguments and returns the raw
// JSON of the script's return value.
func (c *Client) ExecuteScript(ctx context.Context, src string) (easyjson.RawMessage, error) {
	reply, err := c.send(ctx, cmdExecuteScript, executeScriptParams{script: src})
	if err != nil {
		return nil, err
	}
	value := gjson.GetBytes(reply, "value")
	if !value.Exists() {
		return easyjson.RawMessage("null"), nil
	}
	return easyjson.RawMessage(value.Raw), nil
}

// FindElement returns the first element matching the CSS selector. An empty
// match list is a ProtocolError wrapping errext.ErrElementNotFound.
func (c *Client) FindElement(ctx context.Context, selector string) (ElementID, error) {
	reply, err := c.send(ctx, cmdFindElements, findElementsParams{selector: selector})
	if err != nil {
		return "", err
	}

	list := gjson.ParseBytes(reply)
	if list.IsObject() && list.Get("value").IsArray() {
		list = list.Get("value")
	}
	if !list.IsArray() {
		return "", &errext.ProtocolError{Command: cmdFindElements, Reason: fmt.Sprintf("expected a list, got %s", reply)}
	}

	elems := list.Array()
	if len(elems) == 0 {
		return "", &errext.ProtocolError{
			Command: cmdFindElements,
			Reason:  fmt.Sprintf("selector %q", selector),
			Err:     errext.ErrElementNotFound,
		}
	}

	var id string
	elems[0].ForEach(func(_, v gjson.Result) bool {
		id = v.String()
		return false
	})
	if id == "" {
		return "", &errext.ProtocolError{
			Command: cmdFindElements,
			Reason:  fmt.Sprintf("malformed element reference %s", elems[0].Raw),
		}
	}

	return ElementID(id), nil
}

// TakeScreenshot captures the element's bounding box as PNG bytes.
func (c *Client) TakeScreenshot(ctx context.Context, id ElementID) ([]byte, error) {
	reply, err := c.send(ctx, cmdTakeScreenshot, screenshotParams{id: id})
	if err != nil {
		return nil, err
	}
	return decodeValue(cmdTakeScreenshot, reply)
}

// Print renders the current document to PDF.
func (c *Client) Print(ctx context.Context, opts PrintOptions) ([]byte, error) {
	reply, err := c.send(ctx, cmdPrint, printParams{opts: opts.withDefaults()})
	if err != nil {
		return nil, err
	}
	return decodeValue(cmdPrint, reply)
}

func decodeValue(command string, reply easyjson.RawMessage) ([]byte, error) {
	value := gjson.GetBytes(reply, "value")
	if value.Type != gjson.String {
		return nil, &errext.ProtocolError{Command: command, Reason: "reply has no string value"}
	}
	data, err := base64.StdEncoding.DecodeString(value.String())
	if err != nil {
		return nil, &errext.ProtocolError{Command: command, Reason: "value is not base64", Err: err}
	}
	return data, nil
}

// Quit asks the browser to exit and expects it to close the connection
// without sending anything else. The socket is closed either way.
func (c *Client) Quit(ctx context.Context) error {
	c.setState(StateTerminating)
	defer func() { _ = c.Close() }()

	if _, err := c.send(ctx, cmdQuit, quitParams{}); err != nil {
		return err
	}
	if err := c.conn.ExpectEOF(ctx); err != nil {
		return err
	}

	c.logger.Infof("marionette", "connection closed")
	return nil
}

// Close closes the connection. It can be called more than once.
func (c *Client) Close() error {
	c.setState(StateClosed)
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
