package dbg

import (
	"encoding/json"
	"net"

	"github.com/dcci/rr/pkg/logflags"
	"github.com/sirupsen/logrus"
)

// wireMessage is the newline-delimited JSON framing used by JSONConn.
// Exactly one of the reply fields is populated per outbound message.
type wireMessage struct {
	Kind string `json:"kind"`

	// request fields
	Type       RequestType `json:"type,omitempty"`
	Tid        int         `json:"tid,omitempty"`
	SiginfoLen int         `json:"siginfo_len,omitempty"`
	Addr       uint64      `json:"addr,omitempty"`
	Data       []byte      `json:"data,omitempty"`

	// reply and notification fields
	Payload []byte `json:"payload,omitempty"`
	Pid     int    `json:"pid,omitempty"`
	Sig     int    `json:"sig,omitempty"`
}

// JSONConn adapts a net.Conn into a Connection using newline-delimited
// JSON messages. The gdb remote encoding proper lives in the replay
// engine; this adapter exists so the experiment loop has a concrete,
// testable transport.
type JSONConn struct {
	conn net.Conn
	dec  *json.Decoder
	enc  *json.Encoder
	log  *logrus.Entry
}

// NewJSONConn wraps conn.
func NewJSONConn(conn net.Conn) *JSONConn {
	return &JSONConn{
		conn: conn,
		dec:  json.NewDecoder(conn),
		enc:  json.NewEncoder(conn),
		log:  logflags.DbgWireLogger(),
	}
}

// GetRequest blocks until the frontend sends the next command.
func (c *JSONConn) GetRequest() (Request, error) {
	var msg wireMessage
	if err := c.dec.Decode(&msg); err != nil {
		return Request{}, err
	}
	req := Request{
		Type:       msg.Type,
		Tid:        msg.Tid,
		SiginfoLen: msg.SiginfoLen,
		Addr:       msg.Addr,
		Data:       msg.Data,
	}
	c.log.Debugf("request %s", req.Type)
	return req, nil
}

func (c *JSONConn) ReplyReadSiginfo(payload []byte) error {
	c.log.Debugf("reply siginfo (%d bytes)", len(payload))
	return c.enc.Encode(wireMessage{Kind: "siginfo", Payload: payload})
}

func (c *JSONConn) ReplyWriteSiginfo() error {
	c.log.Debug("reply write-siginfo ack")
	return c.enc.Encode(wireMessage{Kind: "write-siginfo-ack"})
}

func (c *JSONConn) NotifyStop(pid, tid, sig int) error {
	c.log.Debugf("notify stop pid=%d tid=%d sig=%d", pid, tid, sig)
	return c.enc.Encode(wireMessage{Kind: "stop", Pid: pid, Tid: tid, Sig: sig})
}

func (c *JSONConn) Close() error {
	return c.conn.Close()
}
