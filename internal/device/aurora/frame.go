package aurora

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/jpalmerr/aurorapulse/internal/device"
)

const (
	requestSize  = 10
	responseSize = 8

	cmdMeasureDSP       = 59
	cmdCumulativeEnergy = 78

	globalStateRun = 6
)

// ErrChecksum is returned for a frame whose CRC does not match its body.
var ErrChecksum = errors.New("aurora: checksum mismatch")

// ProtocolError is returned when the inverter answers with a non-zero
// transmission state.
type ProtocolError struct {
	TransmissionState byte
	GlobalState       byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("aurora: transmission state %d (global state %d)", e.TransmissionState, e.GlobalState)
}

// Checksum computes the CRC-16/X.25 of b.
func Checksum(b []byte) uint16 {
	crc := uint16(0xffff)
	for _, v := range b {
		crc ^= uint16(v)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return ^crc
}

func putChecksum(frame []byte) {
	n := len(frame) - 2
	binary.LittleEndian.PutUint16(frame[n:], Checksum(frame[:n]))
}

func validChecksum(frame []byte) bool {
	n := len(frame) - 2
	return binary.LittleEndian.Uint16(frame[n:]) == Checksum(frame[:n])
}

// EncodeRequest builds the request frame for req addressed to addr.
func EncodeRequest(addr device.Address, req device.Request) ([]byte, error) {
	frame := make([]byte, requestSize)
	frame[0] = byte(addr)

	switch r := req.(type) {
	case device.CumulativeEnergyRequest:
		frame[1] = cmdCumulativeEnergy
		frame[2] = byte(r.Period)
	case device.MeasureRequest:
		frame[1] = cmdMeasureDSP
		frame[2] = byte(r.Type)
		if r.Global {
			frame[3] = 1
		}
	default:
		return nil, fmt.Errorf("aurora: unsupported request %T", req)
	}

	putChecksum(frame)
	return frame, nil
}

// ParseRequest is the inverse of [EncodeRequest].
func ParseRequest(frame []byte) (device.Address, device.Request, error) {
	if len(frame) != requestSize {
		return 0, nil, fmt.Errorf("aurora: request frame is %d bytes, want %d", len(frame), requestSize)
	}
	if !validChecksum(frame) {
		return 0, nil, ErrChecksum
	}

	addr := device.Address(frame[0])
	switch frame[1] {
	case cmdCumulativeEnergy:
		return addr, device.CumulativeEnergyRequest{Period: device.Period(frame[2])}, nil
	case cmdMeasureDSP:
		return addr, device.MeasureRequest{Type: device.MeasurementType(frame[2]), Global: frame[3] == 1}, nil
	default:
		return addr, nil, fmt.Errorf("aurora: unsupported command %d", frame[1])
	}
}

// EncodeResponse builds a successful response frame carrying resp.
func EncodeResponse(resp device.Response, globalState byte) ([]byte, error) {
	frame := make([]byte, responseSize)
	frame[1] = globalState

	switch r := resp.(type) {
	case device.CumulativeEnergyResponse:
		binary.BigEndian.PutUint32(frame[2:6], r.Value)
	case device.MeasureResponse:
		binary.BigEndian.PutUint32(frame[2:6], math.Float32bits(r.Value))
	default:
		return nil, fmt.Errorf("aurora: unsupported response %T", resp)
	}

	putChecksum(frame)
	return frame, nil
}

// DecodeResponse interprets frame as the answer to req.
func DecodeResponse(req device.Request, frame []byte) (device.Response, error) {
	if len(frame) != responseSize {
		return nil, fmt.Errorf("aurora: response frame is %d bytes, want %d", len(frame), responseSize)
	}
	if !validChecksum(frame) {
		return nil, ErrChecksum
	}
	if frame[0] != 0 {
		return nil, &ProtocolError{TransmissionState: frame[0], GlobalState: frame[1]}
	}

	data := binary.BigEndian.Uint32(frame[2:6])
	switch req.(type) {
	case device.CumulativeEnergyRequest:
		return device.CumulativeEnergyResponse{Value: data}, nil
	case device.MeasureRequest:
		return device.MeasureResponse{Value: math.Float32frombits(data)}, nil
	default:
		return nil, fmt.Errorf("aurora: unsupported request %T", req)
	}
}
