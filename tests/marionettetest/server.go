// Package marionettetest provides a scripted Marionette peer for tests. It
// speaks the real framing over a loopback TCP socket, records every command
// it receives and answers from per-command handlers.
package marionettetest

import (
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"

	uuid "github.com/nu7hatch/gouuid"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/liuxd6825/foxshot/marionette"
)

// ElementKey is the web element reference key Firefox uses in replies.
const ElementKey = "element-6066-11e4-a52e-4f735466cecf"

// DefaultHandshake is what a current Firefox sends on accept.
const DefaultHandshake = `{"applicationType":"gecko","marionetteProtocol":3}`

// Default capture payloads.
var (
	DefaultPNG = []byte("PNGDATA")
	DefaultPDF = []byte("%PDF-1.4\n%foxshot test document\n%%EOF\n")
)

// Reply is what a Handler answers with. Exactly one of Result and Error is
// used; Raw, when set, is written as the whole frame payload instead.
type Reply struct {
	Result string
	Error  string
	Raw    []byte
}

// Result returns a successful reply carrying the raw JSON result.
func Result(raw string) Reply {
	return Reply{Result: raw}
}

// Error returns a failure reply in the Marionette error object shape.
func Error(name, message string) Reply {
	return Reply{Error: fmt.Sprintf(`{"error":%s,"message":%s,"stacktrace":"stub"}`,
		strconv.Quote(name), strconv.Quote(message))}
}

// Handler answers one command. params is the raw JSON of the arguments.
type Handler func(id uint64, params gjson.Result) Reply

// Command is a recorded incoming command.
type Command struct {
	ID     uint64
	Name   string
	Params string
}

// Server is a Marionette peer listening on loopback.
type Server struct {
	ln        net.Listener
	handshake []byte
	handlers  map[string]Handler
	linger    bool
	trailer   []byte
	SessionID string

	mu       sync.Mutex
	commands []Command
	conns    map[net.Conn]struct{}

	wg        sync.WaitGroup
	quitCh    chan struct{}
	quitOnce  sync.Once
	closeOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithHandshake replaces the handshake object sent on accept.
func WithHandshake(raw string) Option {
	return func(s *Server) {
		s.handshake = []byte(raw)
	}
}

// WithHandler answers the named command with h.
func WithHandler(name string, h Handler) Option {
	return func(s *Server) {
		s.handlers[name] = h
	}
}

// WithReply answers every occurrence of the named command with r.
func WithReply(name string, r Reply) Option {
	return WithHandler(name, func(uint64, gjson.Result) Reply { return r })
}

// WithScreenshot makes TakeScreenshot return png.
func WithScreenshot(png []byte) Option {
	return WithReply("WebDriver:TakeScreenshot", valueReply(png))
}

// WithPDF makes Print return pdf.
func WithPDF(pdf []byte) Option {
	return WithReply("WebDriver:Print", valueReply(pdf))
}

// WithLingerAfterQuit keeps the socket open after answering Quit.
func WithLingerAfterQuit() Option {
	return func(s *Server) {
		s.linger = true
	}
}

// WithTrailerAfterQuit writes extra bytes after the Quit reply, before
// closing.
func WithTrailerAfterQuit(b []byte) Option {
	return func(s *Server) {
		s.trailer = b
	}
}

// Listen starts a Server on addr, e.g. "127.0.0.1:0".
func Listen(addr string, opts ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		_ = ln.Close()
		return nil, err
	}

	s := &Server{
		ln:        ln,
		handshake: []byte(DefaultHandshake),
		handlers:  make(map[string]Handler),
		SessionID: id.String(),
		conns:     make(map[net.Conn]struct{}),
		quitCh:    make(chan struct{}),
	}
	s.handlers["WebDriver:NewSession"] = s.newSession
	s.handlers["WebDriver:Navigate"] = nullValue
	s.handlers["WebDriver:ExecuteScript"] = nullValue
	s.handlers["WebDriver:FindElements"] = findElements
	s.handlers["WebDriver:TakeScreenshot"] = func(uint64, gjson.Result) Reply { return valueReply(DefaultPNG) }
	s.handlers["WebDriver:Print"] = func(uint64, gjson.Result) Reply { return valueReply(DefaultPDF) }
	s.handlers["Marionette:Quit"] = func(uint64, gjson.Result) Reply {
		return Result(`{"cause":"shutdown","forced":true,"in_app":false}`)
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.acceptLoop()

	return s, nil
}

// NewServer returns a running Server that is closed when the test ends.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s, err := Listen("127.0.0.1:0", opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port //nolint:forcetypeassert
}

// Commands returns a copy of the commands received so far.
func (s *Server) Commands() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// CommandNames returns the names of the commands received so far.
func (s *Server) CommandNames() []string {
	cmds := s.Commands()
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name
	}
	return names
}

// QuitReceived is closed once a Marionette:Quit has been answered.
func (s *Server) QuitReceived() <-chan struct{} {
	return s.quitCh
}

// Close stops accepting, drops open connections and waits for the handlers.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		_ = s.ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(c)
			s.mu.Lock()
			delete(s.conns, c)
			s.mu.Unlock()
			_ = c.Close()
		}()
	}
}

func (s *Server) serve(c net.Conn) {
	if _, err := c.Write(marionette.EncodeFrame(s.handshake)); err != nil {
		return
	}

	var (
		buf     []byte
		scratch = make([]byte, 4096)
	)
	for {
		payload, n, err := marionette.DecodeFrame(buf)
		if err != nil {
			return
		}
		if n == 0 {
			m, rerr := c.Read(scratch)
			buf = append(buf, scratch[:m]...)
			if rerr != nil && m == 0 {
				return
			}
			continue
		}
		msg := gjson.ParseBytes(payload)
		buf = buf[n:]

		cmd := Command{
			ID:     msg.Get("1").Uint(),
			Name:   msg.Get("2").String(),
			Params: msg.Get("3").Raw,
		}
		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		s.mu.Unlock()

		if _, err := c.Write(marionette.EncodeFrame(s.respond(cmd))); err != nil {
			return
		}

		if cmd.Name != "Marionette:Quit" {
			continue
		}
		if len(s.trailer) > 0 {
			_, _ = c.Write(s.trailer)
		}
		s.quitOnce.Do(func() { close(s.quitCh) })
		if !s.linger {
			return
		}
		drain(c)
		return
	}
}

func (s *Server) respond(cmd Command) []byte {
	h, ok := s.handlers[cmd.Name]
	if !ok {
		h = func(uint64, gjson.Result) Reply {
			return Error("unknown command", cmd.Name)
		}
	}

	r := h(cmd.ID, gjson.Parse(cmd.Params))
	if r.Raw != nil {
		return r.Raw
	}
	if r.Error != "" {
		return []byte(fmt.Sprintf(`[1,%d,%s,null]`, cmd.ID, r.Error))
	}
	result := r.Result
	if result == "" {
		result = "null"
	}
	return []byte(fmt.Sprintf(`[1,%d,null,%s]`, cmd.ID, result))
}

func (s *Server) newSession(uint64, gjson.Result) Reply {
	return Result(fmt.Sprintf(
		`{"sessionId":%s,"capabilities":{"browserName":"firefox","browserVersion":"115.0","platformName":"linux"}}`,
		strconv.Quote(s.SessionID)))
}

func nullValue(uint64, gjson.Result) Reply {
	return Result(`{"value":null}`)
}

func findElements(uint64, gjson.Result) Reply {
	id, err := uuid.NewV4()
	if err != nil {
		return Error("unknown error", err.Error())
	}
	return Result(fmt.Sprintf(`[{%q:%q}]`, ElementKey, id.String()))
}

func valueReply(data []byte) Reply {
	return Result(fmt.Sprintf(`{"value":%q}`, base64.StdEncoding.EncodeToString(data)))
}

func drain(c net.Conn) {
	scratch := make([]byte, 512)
	for {
		if _, err := c.Read(scratch); err != nil {
			return
		}
	}
}
