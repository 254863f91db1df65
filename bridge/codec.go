package bridge

import (
	"encoding/binary"
	"fmt"
)

// Wire layout of one slot record. The host indexes the table image directly
// at base + index*SlotRecordSize, so these offsets are frozen.
const (
	// PayloadCap bounds the params and response payloads.
	PayloadCap = 256

	OffKind     = 0
	OffStatus   = 4
	OffID       = 8
	OffParams   = 12
	OffResponse = OffParams + PayloadCap
	OffErrCode  = OffResponse + PayloadCap

	// SlotRecordSize is the size of one encoded slot record.
	SlotRecordSize = OffErrCode + 4
)

var le = binary.LittleEndian

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// paramsWireSize returns the encoded size of a params payload.
func paramsWireSize(p Params) int {
	switch v := p.(type) {
	case GPIOSetParams, GPIODirectionParams, GPIOPullParams, AnalogInitParams:
		return 2
	case GPIOGetParams, AnalogDeinitParams, AnalogReadParams,
		I2CDeinitParams, I2CProbeParams, SPIDeinitParams, UARTDeinitParams:
		return 1
	case AnalogWriteParams:
		return 3
	case I2CInitParams:
		return 6
	case I2CWriteParams:
		return 3 + len(v.Data)
	case I2CReadParams:
		return 3
	case I2CWriteReadParams:
		return 5 + len(v.WriteData)
	case SPIInitParams:
		return 3
	case SPIConfigureParams:
		return 7
	case SPITransferParams:
		return 2 + len(v.Data)
	case SPIWriteParams:
		return 2 + len(v.Data)
	case SPIReadParams:
		return 3
	case TimeSleepParams, UARTBaudrateParams:
		return 4
	case UARTInitParams:
		return 9
	case UARTReadParams:
		return 2
	case UARTWriteParams:
		return 2 + len(v.Data)
	case TimeMonotonicParams, UARTRxAvailableParams, UARTClearRxParams,
		MCUResetParams:
		return 0
	}
	return 0
}

func paramsMustFit(p Params) error {
	if paramsWireSize(p) > PayloadCap {
		return ErrPayloadOverflow
	}
	return nil
}

func responseWireSize(r Response) int {
	switch v := r.(type) {
	case EmptyResponse:
		return 0
	case GPIOValueResponse, AckResponse:
		return 1
	case AnalogValueResponse:
		return 2
	case DataResponse:
		return 2 + len(v.Data)
	case TimeResponse:
		return 8
	case CountResponse:
		return 4
	}
	return 0
}

func responseMustFit(r Response) error {
	if r == nil {
		return nil
	}
	if responseWireSize(r) > PayloadCap {
		return ErrPayloadOverflow
	}
	return nil
}

// EncodeParams marshals a params payload into its fixed wire schema. The
// schema is implied by the operation kind; there is no in-band tag.
func EncodeParams(p Params) ([]byte, error) {
	if err := paramsMustFit(p); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, paramsWireSize(p))

	switch v := p.(type) {
	case GPIOSetParams:
		buf = append(buf, v.Pin, boolByte(v.Value))
	case GPIOGetParams:
		buf = append(buf, v.Pin)
	case GPIODirectionParams:
		buf = append(buf, v.Pin, boolByte(v.Output))
	case GPIOPullParams:
		buf = append(buf, v.Pin, v.Pull)
	case AnalogInitParams:
		buf = append(buf, v.Pin, boolByte(v.Output))
	case AnalogDeinitParams:
		buf = append(buf, v.Pin)
	case AnalogReadParams:
		buf = append(buf, v.Pin)
	case AnalogWriteParams:
		buf = append(buf, v.Pin)
		buf = le.AppendUint16(buf, v.Value)
	case I2CInitParams:
		buf = append(buf, v.SCL, v.SDA)
		buf = le.AppendUint32(buf, v.Frequency)
	case I2CDeinitParams:
		buf = append(buf, v.SCL)
	case I2CWriteParams:
		buf = append(buf, v.Address)
		buf = le.AppendUint16(buf, uint16(len(v.Data)))
		buf = append(buf, v.Data...)
	case I2CReadParams:
		buf = append(buf, v.Address)
		buf = le.AppendUint16(buf, v.Length)
	case I2CWriteReadParams:
		buf = append(buf, v.Address)
		buf = le.AppendUint16(buf, uint16(len(v.WriteData)))
		buf = le.AppendUint16(buf, v.ReadLength)
		buf = append(buf, v.WriteData...)
	case I2CProbeParams:
		buf = append(buf, v.Address)
	case SPIInitParams:
		buf = append(buf, v.Clock, v.MOSI, v.MISO)
	case SPIDeinitParams:
		buf = append(buf, v.Clock)
	case SPIConfigureParams:
		buf = le.AppendUint32(buf, v.Baudrate)
		buf = append(buf, v.Polarity, v.Phase, v.Bits)
	case SPITransferParams:
		buf = le.AppendUint16(buf, uint16(len(v.Data)))
		buf = append(buf, v.Data...)
	case SPIWriteParams:
		buf = le.AppendUint16(buf, uint16(len(v.Data)))
		buf = append(buf, v.Data...)
	case SPIReadParams:
		buf = le.AppendUint16(buf, v.Length)
		buf = append(buf, v.WriteValue)
	case TimeSleepParams:
		buf = le.AppendUint32(buf, v.Milliseconds)
	case TimeMonotonicParams:
	case UARTInitParams:
		buf = append(buf, v.TX, v.RX)
		buf = le.AppendUint32(buf, v.Baudrate)
		buf = append(buf, v.Bits, v.Parity, v.Stop)
	case UARTDeinitParams:
		buf = append(buf, v.TX)
	case UARTReadParams:
		buf = le.AppendUint16(buf, v.Length)
	case UARTWriteParams:
		buf = le.AppendUint16(buf, uint16(len(v.Data)))
		buf = append(buf, v.Data...)
	case UARTBaudrateParams:
		buf = le.AppendUint32(buf, v.Baudrate)
	case UARTRxAvailableParams, UARTClearRxParams, MCUResetParams:
	default:
		return nil, fmt.Errorf("bridge: cannot encode params of kind %s",
			p.Kind())
	}

	return buf, nil
}

type payloadReader struct {
	buf []byte
	off int
	err error
}

func (r *payloadReader) u8() uint8 {
	if r.err != nil || r.off+1 > len(r.buf) {
		r.err = ErrPayloadOverflow
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

func (r *payloadReader) u16() uint16 {
	if r.err != nil || r.off+2 > len(r.buf) {
		r.err = ErrPayloadOverflow
		return 0
	}
	v := le.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

func (r *payloadReader) u32() uint32 {
	if r.err != nil || r.off+4 > len(r.buf) {
		r.err = ErrPayloadOverflow
		return 0
	}
	v := le.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

func (r *payloadReader) u64() uint64 {
	if r.err != nil || r.off+8 > len(r.buf) {
		r.err = ErrPayloadOverflow
		return 0
	}
	v := le.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

func (r *payloadReader) bytes(n int) []byte {
	if r.err != nil || r.off+n > len(r.buf) {
		r.err = ErrPayloadOverflow
		return nil
	}
	v := make([]byte, n)
	copy(v, r.buf[r.off:])
	r.off += n
	return v
}

// DecodeParams unmarshals a params payload using the schema implied by the
// operation kind.
func DecodeParams(kind OperationKind, payload []byte) (Params, error) {
	r := &payloadReader{buf: payload}

	var p Params
	switch kind {
	case OpGPIOSet:
		p = GPIOSetParams{Pin: r.u8(), Value: r.u8() != 0}
	case OpGPIOGet:
		p = GPIOGetParams{Pin: r.u8()}
	case OpGPIOSetDirection:
		p = GPIODirectionParams{Pin: r.u8(), Output: r.u8() != 0}
	case OpGPIOSetPull:
		p = GPIOPullParams{Pin: r.u8(), Pull: r.u8()}
	case OpAnalogInit:
		p = AnalogInitParams{Pin: r.u8(), Output: r.u8() != 0}
	case OpAnalogDeinit:
		p = AnalogDeinitParams{Pin: r.u8()}
	case OpAnalogRead:
		p = AnalogReadParams{Pin: r.u8()}
	case OpAnalogWrite:
		p = AnalogWriteParams{Pin: r.u8(), Value: r.u16()}
	case OpI2CInit:
		p = I2CInitParams{SCL: r.u8(), SDA: r.u8(), Frequency: r.u32()}
	case OpI2CDeinit:
		p = I2CDeinitParams{SCL: r.u8()}
	case OpI2CWrite:
		addr := r.u8()
		n := r.u16()
		p = I2CWriteParams{Address: addr, Data: r.bytes(int(n))}
	case OpI2CRead:
		p = I2CReadParams{Address: r.u8(), Length: r.u16()}
	case OpI2CWriteRead:
		addr := r.u8()
		wn := r.u16()
		rn := r.u16()
		p = I2CWriteReadParams{
			Address:    addr,
			WriteData:  r.bytes(int(wn)),
			ReadLength: rn,
		}
	case OpI2CProbe:
		p = I2CProbeParams{Address: r.u8()}
	case OpSPIInit:
		p = SPIInitParams{Clock: r.u8(), MOSI: r.u8(), MISO: r.u8()}
	case OpSPIDeinit:
		p = SPIDeinitParams{Clock: r.u8()}
	case OpSPIConfigure:
		p = SPIConfigureParams{
			Baudrate: r.u32(),
			Polarity: r.u8(),
			Phase:    r.u8(),
			Bits:     r.u8(),
		}
	case OpSPITransfer:
		n := r.u16()
		p = SPITransferParams{Data: r.bytes(int(n))}
	case OpSPIWrite:
		n := r.u16()
		p = SPIWriteParams{Data: r.bytes(int(n))}
	case OpSPIRead:
		p = SPIReadParams{Length: r.u16(), WriteValue: r.u8()}
	case OpTimeSleep:
		p = TimeSleepParams{Milliseconds: r.u32()}
	case OpTimeMonotonic:
		p = TimeMonotonicParams{}
	case OpUARTInit:
		p = UARTInitParams{
			TX:       r.u8(),
			RX:       r.u8(),
			Baudrate: r.u32(),
			Bits:     r.u8(),
			Parity:   r.u8(),
			Stop:     r.u8(),
		}
	case OpUARTDeinit:
		p = UARTDeinitParams{TX: r.u8()}
	case OpUARTRead:
		p = UARTReadParams{Length: r.u16()}
	case OpUARTWrite:
		n := r.u16()
		p = UARTWriteParams{Data: r.bytes(int(n))}
	case OpUARTSetBaudrate:
		p = UARTBaudrateParams{Baudrate: r.u32()}
	case OpUARTRxAvailable:
		p = UARTRxAvailableParams{}
	case OpUARTClearRx:
		p = UARTClearRxParams{}
	case OpMCUReset:
		p = MCUResetParams{}
	default:
		return nil, fmt.Errorf("bridge: cannot decode params of kind %d",
			kind)
	}

	if r.err != nil {
		return nil, r.err
	}

	return p, nil
}

// EncodeResponse marshals a response payload.
func EncodeResponse(rsp Response) ([]byte, error) {
	if err := responseMustFit(rsp); err != nil {
		return nil, err
	}

	buf := make([]byte, 0, responseWireSize(rsp))

	switch v := rsp.(type) {
	case nil, EmptyResponse:
	case GPIOValueResponse:
		buf = append(buf, boolByte(v.Value))
	case AnalogValueResponse:
		buf = le.AppendUint16(buf, v.Value)
	case AckResponse:
		buf = append(buf, boolByte(v.OK))
	case DataResponse:
		buf = le.AppendUint16(buf, uint16(len(v.Data)))
		buf = append(buf, v.Data...)
	case TimeResponse:
		buf = le.AppendUint64(buf, v.Milliseconds)
	case CountResponse:
		buf = le.AppendUint32(buf, v.Count)
	default:
		return nil, fmt.Errorf("bridge: cannot encode response %T", rsp)
	}

	return buf, nil
}

// DecodeResponse unmarshals a response payload using the schema implied by
// the operation kind.
func DecodeResponse(kind OperationKind, payload []byte) (Response, error) {
	r := &payloadReader{buf: payload}

	var rsp Response
	switch kind {
	case OpGPIOGet:
		rsp = GPIOValueResponse{Value: r.u8() != 0}
	case OpAnalogRead:
		rsp = AnalogValueResponse{Value: r.u16()}
	case OpI2CInit, OpI2CWrite, OpI2CProbe:
		rsp = AckResponse{OK: r.u8() != 0}
	case OpI2CRead, OpI2CWriteRead, OpSPITransfer, OpSPIRead, OpUARTRead:
		n := r.u16()
		rsp = DataResponse{Data: r.bytes(int(n))}
	case OpTimeMonotonic:
		rsp = TimeResponse{Milliseconds: r.u64()}
	case OpUARTRxAvailable:
		rsp = CountResponse{Count: r.u32()}
	default:
		rsp = EmptyResponse{}
	}

	if r.err != nil {
		return nil, r.err
	}

	return rsp, nil
}

// EncodeSlot renders a slot into its fixed wire record. All multi-byte
// fields are little-endian; the params and response regions are zero-padded
// to PayloadCap.
func EncodeSlot(s Slot) ([]byte, error) {
	rec := make([]byte, SlotRecordSize)

	le.PutUint32(rec[OffKind:], uint32(s.Kind()))
	le.PutUint32(rec[OffStatus:], uint32(s.Status()))
	le.PutUint32(rec[OffID:], s.ID())

	if s.Params() != nil {
		p, err := EncodeParams(s.Params())
		if err != nil {
			return nil, err
		}
		copy(rec[OffParams:OffParams+PayloadCap], p)
	}

	if s.Response() != nil {
		r, err := EncodeResponse(s.Response())
		if err != nil {
			return nil, err
		}
		copy(rec[OffResponse:OffResponse+PayloadCap], r)
	}

	le.PutUint32(rec[OffErrCode:], uint32(s.ErrCode()))

	return rec, nil
}

// DecodeSlot parses a wire record back into a slot snapshot.
func DecodeSlot(rec []byte) (Slot, error) {
	if len(rec) < SlotRecordSize {
		return Slot{}, ErrPayloadOverflow
	}

	kind := OperationKind(le.Uint32(rec[OffKind:]))
	status := Status(le.Uint32(rec[OffStatus:]))

	s := Slot{
		id:      le.Uint32(rec[OffID:]),
		kind:    kind,
		status:  status,
		errCode: int32(le.Uint32(rec[OffErrCode:])),
	}

	if kind != OpNone && status != StatusIdle {
		p, err := DecodeParams(kind, rec[OffParams:OffParams+PayloadCap])
		if err != nil {
			return Slot{}, err
		}
		s.params = p
	}

	if status == StatusComplete {
		r, err := DecodeResponse(kind, rec[OffResponse:OffResponse+PayloadCap])
		if err != nil {
			return Slot{}, err
		}
		s.response = r
	}

	return s, nil
}
