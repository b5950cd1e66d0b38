// Package wire decodes and encodes the fixed-layout little-endian radio
// packets the gateway receives from its two classes of field nodes.
package wire

import (
	"encoding/binary"
	"fmt"
)

// PrimaryPacketSize is the exact length, in bytes, of a primary (long
// range) radio packet. Packets of any other length are malformed.
const PrimaryPacketSize = 20

// ScoutPacketSize is the exact length, in bytes, of a scout (short
// range) radio packet. Packets of any other length are malformed.
const ScoutPacketSize = 5

// PrimaryPacket is a decoded structural-fatigue reading from a primary
// radio node. Only the node id and the three cycle bins carry meaning;
// the remaining wire fields are reserved.
type PrimaryPacket struct {
	NodeID uint16
	Bin1   uint32
	Bin2   uint32
	Bin3   uint32
}

// DecodePrimary parses a 20-byte little-endian buffer laid out as
// (u16 node_id, u8 reserved, u32 bin1, u32 bin2, u32 bin3, f32 reserved,
// f32 reserved, u8 reserved). It rejects any buffer not exactly
// PrimaryPacketSize bytes long.
func DecodePrimary(buf []byte) (PrimaryPacket, error) {
	if len(buf) != PrimaryPacketSize {
		return PrimaryPacket{}, fmt.Errorf("wire: primary packet must be %d bytes, got %d", PrimaryPacketSize, len(buf))
	}

	p := PrimaryPacket{
		NodeID: binary.LittleEndian.Uint16(buf[0:2]),
		// buf[2] is the reserved tag byte.
		Bin1: binary.LittleEndian.Uint32(buf[3:7]),
		Bin2: binary.LittleEndian.Uint32(buf[7:11]),
		Bin3: binary.LittleEndian.Uint32(buf[11:15]),
		// buf[15:19] and buf[19] are reserved.
	}
	return p, nil
}

// EncodePrimary is the inverse of DecodePrimary; reserved fields are
// zeroed. It exists for round-trip testing and for fixtures.
func EncodePrimary(p PrimaryPacket) []byte {
	buf := make([]byte, PrimaryPacketSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.NodeID)
	binary.LittleEndian.PutUint32(buf[3:7], p.Bin1)
	binary.LittleEndian.PutUint32(buf[7:11], p.Bin2)
	binary.LittleEndian.PutUint32(buf[11:15], p.Bin3)
	return buf
}

// ScoutPacket is a decoded environmental reading from a scout radio
// node. Temperature and humidity are stored already descaled from
// their wire representation.
type ScoutPacket struct {
	NodeID      uint8
	TemperatureC float64
	HumidityRH   float64
}

// scoutScale is the wire-to-unit scale factor: both temperature and
// humidity are transmitted as centi-units.
const scoutScale = 100.0

// DecodeScout parses a 5-byte little-endian buffer laid out as
// (u8 node_id, i16 temp_centi_c, u16 humidity_centi_pct). It rejects any
// buffer not exactly ScoutPacketSize bytes long.
func DecodeScout(buf []byte) (ScoutPacket, error) {
	if len(buf) != ScoutPacketSize {
		return ScoutPacket{}, fmt.Errorf("wire: scout packet must be %d bytes, got %d", ScoutPacketSize, len(buf))
	}

	temp := int16(binary.LittleEndian.Uint16(buf[1:3]))
	hum := binary.LittleEndian.Uint16(buf[3:5])

	return ScoutPacket{
		NodeID:       buf[0],
		TemperatureC: float64(temp) / scoutScale,
		HumidityRH:   float64(hum) / scoutScale,
	}, nil
}

// EncodeScout is the inverse of DecodeScout, rounding to the nearest
// centi-unit. It exists for round-trip testing and for fixtures.
func EncodeScout(p ScoutPacket) []byte {
	buf := make([]byte, ScoutPacketSize)
	buf[0] = p.NodeID
	binary.LittleEndian.PutUint16(buf[1:3], uint16(int16(p.TemperatureC*scoutScale)))
	binary.LittleEndian.PutUint16(buf[3:5], uint16(p.HumidityRH*scoutScale))
	return buf
}
