package connection

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Engine.IO v4 packet types, sent as the first byte of every text frame.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineUpgrade = '5'
	engineNoop    = '6'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message.
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketAck          = '3'
	socketConnectError = '4'
	socketBinaryEvent  = '5'
	socketBinaryAck    = '6'
)

// Handshake is the payload of the Engine.IO open packet
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int      `json:"maxPayload"`
}

// Packet is a decoded Socket.IO packet
type Packet struct {
	Type      byte
	Namespace string
	AckID     *int
	Event     string
	// Args holds the event arguments after the name, or the raw payload
	// for connect and connect_error packets.
	Args []json.RawMessage
	Data json.RawMessage
}

// encodeConnect builds the namespace connect packet
func encodeConnect(namespace string, auth interface{}) (string, error) {
	var b strings.Builder
	b.WriteByte(engineMessage)
	b.WriteByte(socketConnect)
	writeNamespace(&b, namespace)
	if auth != nil {
		data, err := json.Marshal(auth)
		if err != nil {
			return "", err
		}
		b.Write(data)
	}
	return b.String(), nil
}

// encodeDisconnect builds the namespace disconnect packet
func encodeDisconnect(namespace string) string {
	var b strings.Builder
	b.WriteByte(engineMessage)
	b.WriteByte(socketDisconnect)
	writeNamespace(&b, namespace)
	return b.String()
}

// EncodeEvent builds an event packet: 42["event",args...]
func EncodeEvent(namespace, event string, args ...interface{}) (string, error) {
	payload := make([]interface{}, 0, len(args)+1)
	payload = append(payload, event)
	payload = append(payload, args...)

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteByte(engineMessage)
	b.WriteByte(socketEvent)
	writeNamespace(&b, namespace)
	b.Write(data)
	return b.String(), nil
}

func writeNamespace(b *strings.Builder, namespace string) {
	if namespace != "" && namespace != "/" {
		b.WriteString(namespace)
		b.WriteByte(',')
	}
}

// DecodePacket parses the Socket.IO packet inside an Engine.IO message
// frame. The leading engine type byte must already be stripped.
func DecodePacket(msg string) (*Packet, error) {
	if msg == "" {
		return nil, fmt.Errorf("empty socket packet")
	}

	p := &Packet{Type: msg[0], Namespace: "/"}
	rest := msg[1:]

	if p.Type == socketBinaryEvent || p.Type == socketBinaryAck {
		return nil, fmt.Errorf("binary packets are not supported")
	}

	// optional "/nsp," prefix
	if strings.HasPrefix(rest, "/") {
		end := strings.IndexByte(rest, ',')
		if end < 0 {
			p.Namespace = rest
			rest = ""
		} else {
			p.Namespace = rest[:end]
			rest = rest[end+1:]
		}
	}

	// optional ack id
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 {
		id, err := strconv.Atoi(rest[:i])
		if err != nil {
			return nil, fmt.Errorf("invalid ack id: %w", err)
		}
		p.AckID = &id
		rest = rest[i:]
	}

	if rest != "" {
		p.Data = json.RawMessage(rest)
	}

	switch p.Type {
	case socketEvent, socketAck:
		var args []json.RawMessage
		if err := json.Unmarshal(p.Data, &args); err != nil {
			return nil, fmt.Errorf("invalid event payload: %w", err)
		}
		if p.Type == socketEvent {
			if len(args) == 0 {
				return nil, fmt.Errorf("event packet without a name")
			}
			if err := json.Unmarshal(args[0], &p.Event); err != nil {
				return nil, fmt.Errorf("invalid event name: %w", err)
			}
			args = args[1:]
		}
		p.Args = args
	case socketConnect, socketDisconnect, socketConnectError:
	default:
		return nil, fmt.Errorf("unknown socket packet type %q", p.Type)
	}

	return p, nil
}

// connectError extracts the message of a connect_error packet
func connectError(p *Packet) string {
	var body struct {
		Message string `json:"message"`
	}
	if len(p.Data) > 0 && json.Unmarshal(p.Data, &body) == nil && body.Message != "" {
		return body.Message
	}
	if len(p.Data) > 0 {
		var s string
		if json.Unmarshal(p.Data, &s) == nil {
			return s
		}
	}
	return "connection refused"
}
