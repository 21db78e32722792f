package marionette

import (
	"fmt"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/liuxd6825/foxshot/errext"
)

// Message kinds as they appear in the first array slot.
const (
	kindCommand  = 0
	kindResponse = 1
)

// Command is an outgoing [0, id, name, params] message.
type Command struct {
	ID     uint64
	Name   string
	Params easyjson.Marshaler
}

// MarshalEasyJSON implements easyjson.Marshaler.
func (c *Command) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('[')
	w.Int(kindCommand)
	w.RawByte(',')
	w.Uint64(c.ID)
	w.RawByte(',')
	w.String(c.Name)
	w.RawByte(',')
	if c.Params == nil {
		w.RawString("{}")
	} else {
		c.Params.MarshalEasyJSON(w)
	}
	w.RawByte(']')
}

// Response is an incoming [1, id, error, result] message. Error is nil when
// the peer sent null.
type Response struct {
	Kind   int
	ID     uint64
	Error  easyjson.RawMessage
	Result easyjson.RawMessage
}

// UnmarshalEasyJSON implements easyjson.Unmarshaler.
func (r *Response) UnmarshalEasyJSON(in *jlexer.Lexer) {
	in.Delim('[')
	r.Kind = in.Int()
	in.WantComma()
	r.ID = in.Uint64()
	in.WantComma()
	if in.IsNull() {
		in.Skip()
		r.Error = nil
	} else {
		r.Error = append(easyjson.RawMessage(nil), in.Raw()...)
	}
	in.WantComma()
	r.Result = append(easyjson.RawMessage(nil), in.Raw()...)
	in.WantComma()
	in.Delim(']')
}

func encodeCommand(cmd *Command) ([]byte, error) {
	w := jwriter.Writer{}
	cmd.MarshalEasyJSON(&w)
	if w.Error != nil {
		return nil, fmt.Errorf("encoding %s: %w", cmd.Name, w.Error)
	}
	return w.BuildBytes()
}

func decodeResponse(command string, payload []byte) (*Response, error) {
	var resp Response
	in := jlexer.Lexer{Data: payload}
	resp.UnmarshalEasyJSON(&in)
	in.Consumed()
	if err := in.Error(); err != nil {
		return nil, &errext.ProtocolError{Command: command, Reason: "malformed response", Err: err}
	}
	if resp.Kind != kindResponse {
		return nil, &errext.ProtocolError{
			Command: command,
			Reason:  fmt.Sprintf("expected a response (kind %d), got kind %d", kindResponse, resp.Kind),
		}
	}
	return &resp, nil
}
