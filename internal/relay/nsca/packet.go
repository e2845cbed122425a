package nsca

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"nethead/internal/domain"
)

const (
	packetVersion = 3

	initIVSize     = 128
	initPacketSize = initIVSize + 4

	hostNameLength    = 64
	descriptionLength = 128

	// DefaultOutputLength matches NSCA 2.7 (720-byte packets). NSCA 2.9
	// servers expect 4096.
	DefaultOutputLength = 512

	offsetCRC         = 4
	offsetTimestamp   = 8
	offsetReturnCode  = 12
	offsetHostName    = 14
	offsetDescription = offsetHostName + hostNameLength
	offsetOutput      = offsetDescription + descriptionLength
)

var errBadCRC = errors.New("crc mismatch")

// packetSize returns the data packet size for an output field length,
// including the trailing alignment padding of the C struct
func packetSize(outputLength int) int {
	return (offsetOutput + outputLength + 3) &^ 3
}

// initPacket is what the server sends after accepting a connection
type initPacket struct {
	IV        []byte
	Timestamp uint32
}

func parseInitPacket(b []byte) (initPacket, error) {
	if len(b) != initPacketSize {
		return initPacket{}, fmt.Errorf("init packet: got %d bytes, want %d", len(b), initPacketSize)
	}
	iv := make([]byte, initIVSize)
	copy(iv, b[:initIVSize])
	return initPacket{
		IV:        iv,
		Timestamp: binary.BigEndian.Uint32(b[initIVSize:]),
	}, nil
}

// dataPacket is one check result
type dataPacket struct {
	Timestamp   uint32
	ReturnCode  int16
	HostName    string
	Description string
	Output      string
}

func newDataPacket(req domain.RelayRequest, timestamp uint32, output string) dataPacket {
	return dataPacket{
		Timestamp:   timestamp,
		ReturnCode:  int16(req.Severity),
		HostName:    req.HostName,
		Description: req.ServiceKey,
		Output:      output,
	}
}

// marshal encodes p and seals it with a CRC32 over the whole packet
func (p dataPacket) marshal(outputLength int) []byte {
	b := make([]byte, packetSize(outputLength))
	binary.BigEndian.PutUint16(b[0:], packetVersion)
	binary.BigEndian.PutUint32(b[offsetTimestamp:], p.Timestamp)
	binary.BigEndian.PutUint16(b[offsetReturnCode:], uint16(p.ReturnCode))
	putString(b[offsetHostName:offsetHostName+hostNameLength], p.HostName)
	putString(b[offsetDescription:offsetDescription+descriptionLength], p.Description)
	putString(b[offsetOutput:offsetOutput+outputLength], p.Output)

	binary.BigEndian.PutUint32(b[offsetCRC:], crc32.ChecksumIEEE(b))
	return b
}

// unmarshalDataPacket decodes and verifies a packet
func unmarshalDataPacket(b []byte, outputLength int) (dataPacket, error) {
	if len(b) != packetSize(outputLength) {
		return dataPacket{}, fmt.Errorf("data packet: got %d bytes, want %d", len(b), packetSize(outputLength))
	}
	if v := binary.BigEndian.Uint16(b[0:]); v != packetVersion {
		return dataPacket{}, fmt.Errorf("data packet: version %d", v)
	}

	want := binary.BigEndian.Uint32(b[offsetCRC:])
	check := make([]byte, len(b))
	copy(check, b)
	binary.BigEndian.PutUint32(check[offsetCRC:], 0)
	if crc32.ChecksumIEEE(check) != want {
		return dataPacket{}, errBadCRC
	}

	return dataPacket{
		Timestamp:   binary.BigEndian.Uint32(b[offsetTimestamp:]),
		ReturnCode:  int16(binary.BigEndian.Uint16(b[offsetReturnCode:])),
		HostName:    getString(b[offsetHostName : offsetHostName+hostNameLength]),
		Description: getString(b[offsetDescription : offsetDescription+descriptionLength]),
		Output:      getString(b[offsetOutput : offsetOutput+outputLength]),
	}, nil
}

// putString copies s into a fixed field, truncating to keep a NUL terminator
func putString(field []byte, s string) {
	n := copy(field[:len(field)-1], s)
	field[n] = 0
}

func getString(field []byte) string {
	for i, c := range field {
		if c == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}
