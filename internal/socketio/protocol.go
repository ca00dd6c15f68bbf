package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"
)

// Engine.IO v4 packet types, as the first byte of every text frame.
//
//   0 open     server → client  {"sid","upgrades","pingInterval","pingTimeout","maxPayload"}
//   1 close    both
//   2 ping     server → client
//   3 pong     client → server
//   4 message  both, carries one Socket.IO packet
//   5 upgrade  client → server
//   6 noop     both
const (
	eioOpen    byte = '0'
	eioClose   byte = '1'
	eioPing    byte = '2'
	eioPong    byte = '3'
	eioMessage byte = '4'
	eioUpgrade byte = '5'
	eioNoop    byte = '6'
)

// recordSeparator delimits packets in a long-polling payload.
const recordSeparator = "\x1e"

// PacketType is a Socket.IO v5 packet type.
type PacketType byte

const (
	PacketConnect      PacketType = 0
	PacketDisconnect   PacketType = 1
	PacketEvent        PacketType = 2
	PacketAck          PacketType = 3
	PacketConnectError PacketType = 4
	PacketBinaryEvent  PacketType = 5
	PacketBinaryAck    PacketType = 6
)

// Packet is a decoded Socket.IO packet:
//
//	<type>[<attachments>-][<namespace>,][<id>][<json data>]
type Packet struct {
	Type      PacketType
	Namespace string
	ID        int64
	HasID     bool
	Data      []byte
}

var errMalformed = errors.New("socketio: malformed packet")

// Encode returns the packet's wire form, without the Engine.IO prefix.
func (p Packet) Encode() string {
	var b strings.Builder
	b.WriteByte('0' + byte(p.Type))
	if p.Namespace != "" && p.Namespace != "/" {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.HasID {
		b.WriteString(strconv.FormatInt(p.ID, 10))
	}
	b.Write(p.Data)
	return b.String()
}

// DecodePacket parses a Socket.IO packet.
func DecodePacket(s string) (Packet, error) {
	if s == "" || s[0] < '0' || s[0] > '6' {
		return Packet{}, errMalformed
	}
	p := Packet{Type: PacketType(s[0] - '0'), Namespace: "/"}
	s = s[1:]

	if p.Type == PacketBinaryEvent || p.Type == PacketBinaryAck {
		i := strings.IndexByte(s, '-')
		if i < 0 {
			return Packet{}, errMalformed
		}
		s = s[i+1:]
	}

	if strings.HasPrefix(s, "/") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			p.Namespace = s
			return p, nil
		}
		p.Namespace, s = s[:i], s[i+1:]
	}

	digits := 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits > 0 {
		id, err := strconv.ParseInt(s[:digits], 10, 64)
		if err != nil {
			return Packet{}, fmt.Errorf("socketio: packet id: %w", err)
		}
		p.ID, p.HasID = id, true
		s = s[digits:]
	}

	if s != "" {
		p.Data = []byte(s)
	}
	return p, nil
}

// openInfo is the Engine.IO handshake payload.
type openInfo struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

func parseOpen(pkt string) (openInfo, error) {
	if pkt == "" || pkt[0] != eioOpen {
		return openInfo{}, fmt.Errorf("socketio: expected open packet, got %q", truncate(pkt, 32))
	}
	var info openInfo
	if err := json.Unmarshal([]byte(pkt[1:]), &info); err != nil {
		return openInfo{}, fmt.Errorf("socketio: parse open packet: %w", err)
	}
	if info.SID == "" {
		return openInfo{}, fmt.Errorf("socketio: open packet without sid")
	}
	return info, nil
}

// parseEvent splits an event payload ["name", arg...] into its name and raw
// JSON arguments.
func parseEvent(data []byte) (string, []json.RawMessage, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return "", nil, fmt.Errorf("socketio: parse event: %w", err)
	}
	items, err := v.Array()
	if err != nil || len(items) == 0 {
		return "", nil, fmt.Errorf("socketio: event payload is not a non-empty array")
	}
	name, err := items[0].StringBytes()
	if err != nil {
		return "", nil, fmt.Errorf("socketio: event name: %w", err)
	}
	args := make([]json.RawMessage, 0, len(items)-1)
	for _, item := range items[1:] {
		args = append(args, json.RawMessage(item.MarshalTo(nil)))
	}
	return string(name), args, nil
}

func encodeEvent(name string, args []any) ([]byte, error) {
	payload := make([]any, 0, len(args)+1)
	payload = append(payload, name)
	payload = append(payload, args...)
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("socketio: encode event: %w", err)
	}
	return data, nil
}

// connectErrorMessage extracts the message of a connect_error payload, which
// is either {"message": "..."} or a bare string.
func connectErrorMessage(data []byte) string {
	if len(data) == 0 {
		return "connect error"
	}
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return string(data)
	}
	if msg := v.GetStringBytes("message"); msg != nil {
		return string(msg)
	}
	if s, err := v.StringBytes(); err == nil {
		return string(s)
	}
	return string(data)
}

func splitPayload(body string) []string {
	if body == "" {
		return nil
	}
	return strings.Split(body, recordSeparator)
}

func joinPayload(pkts []string) string {
	return strings.Join(pkts, recordSeparator)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
