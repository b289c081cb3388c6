package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	p, err := DecodePacket(`2["log:new",{"_id":"a"}]`)
	require.NoError(t, err)
	assert.Equal(t, byte(socketEvent), p.Type)
	assert.Equal(t, "/", p.Namespace)
	assert.Equal(t, "log:new", p.Event)
	require.Len(t, p.Args, 1)
	assert.JSONEq(t, `{"_id":"a"}`, string(p.Args[0]))
	assert.Nil(t, p.AckID)
}

func TestDecodeNamespaceAndAck(t *testing.T) {
	p, err := DecodePacket(`2/admin,12["log:new",1,2]`)
	require.NoError(t, err)
	assert.Equal(t, "/admin", p.Namespace)
	require.NotNil(t, p.AckID)
	assert.Equal(t, 12, *p.AckID)
	assert.Len(t, p.Args, 2)
}

func TestDecodeConnectAndErrors(t *testing.T) {
	p, err := DecodePacket(`0{"sid":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, byte(socketConnect), p.Type)

	p, err = DecodePacket(`4{"message":"unauthorized"}`)
	require.NoError(t, err)
	assert.Equal(t, "unauthorized", connectError(p))

	_, err = DecodePacket(`2[]`)
	assert.Error(t, err)
	_, err = DecodePacket(`2not-json`)
	assert.Error(t, err)
	_, err = DecodePacket(`51-["bin",{"_placeholder":true,"num":0}]`)
	assert.Error(t, err)
	_, err = DecodePacket("")
	assert.Error(t, err)
}

func TestEncode(t *testing.T) {
	frame, err := EncodeEvent("/", "ping:client", map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, `42["ping:client",{"n":1}]`, frame)

	frame, err = EncodeEvent("/admin", "hello")
	require.NoError(t, err)
	assert.Equal(t, `42/admin,["hello"]`, frame)

	connect, err := encodeConnect("/", nil)
	require.NoError(t, err)
	assert.Equal(t, "40", connect)
	assert.Equal(t, "41/admin,", encodeDisconnect("/admin"))
}
