package bridge

// An OperationKind identifies one hardware-facing operation that can cross
// the host boundary. The numbering is grouped by peripheral and is part of
// the wire contract, so values must never be renumbered.
type OperationKind uint32

const (
	OpNone OperationKind = 0

	OpGPIOSet          OperationKind = 1
	OpGPIOGet          OperationKind = 2
	OpGPIOSetDirection OperationKind = 3
	OpGPIOSetPull      OperationKind = 4

	OpAnalogInit   OperationKind = 10
	OpAnalogDeinit OperationKind = 11
	OpAnalogRead   OperationKind = 12
	OpAnalogWrite  OperationKind = 13

	OpI2CInit      OperationKind = 20
	OpI2CDeinit    OperationKind = 21
	OpI2CWrite     OperationKind = 22
	OpI2CRead      OperationKind = 23
	OpI2CWriteRead OperationKind = 24
	OpI2CProbe     OperationKind = 25

	OpSPIInit      OperationKind = 30
	OpSPIDeinit    OperationKind = 31
	OpSPITransfer  OperationKind = 32
	OpSPIWrite     OperationKind = 33
	OpSPIRead      OperationKind = 34
	OpSPIConfigure OperationKind = 35

	OpTimeSleep     OperationKind = 40
	OpTimeMonotonic OperationKind = 41

	OpUARTInit        OperationKind = 52
	OpUARTDeinit      OperationKind = 53
	OpUARTRead        OperationKind = 54
	OpUARTWrite       OperationKind = 55
	OpUARTSetBaudrate OperationKind = 56
	OpUARTRxAvailable OperationKind = 57
	OpUARTClearRx     OperationKind = 58

	OpMCUReset OperationKind = 60
)

var operationKindNames = map[OperationKind]string{
	OpNone:             "None",
	OpGPIOSet:          "GPIOSet",
	OpGPIOGet:          "GPIOGet",
	OpGPIOSetDirection: "GPIOSetDirection",
	OpGPIOSetPull:      "GPIOSetPull",
	OpAnalogInit:       "AnalogInit",
	OpAnalogDeinit:     "AnalogDeinit",
	OpAnalogRead:       "AnalogRead",
	OpAnalogWrite:      "AnalogWrite",
	OpI2CInit:          "I2CInit",
	OpI2CDeinit:        "I2CDeinit",
	OpI2CWrite:         "I2CWrite",
	OpI2CRead:          "I2CRead",
	OpI2CWriteRead:     "I2CWriteRead",
	OpI2CProbe:         "I2CProbe",
	OpSPIInit:          "SPIInit",
	OpSPIDeinit:        "SPIDeinit",
	OpSPITransfer:      "SPITransfer",
	OpSPIWrite:         "SPIWrite",
	OpSPIRead:          "SPIRead",
	OpSPIConfigure:     "SPIConfigure",
	OpTimeSleep:        "TimeSleep",
	OpTimeMonotonic:    "TimeMonotonic",
	OpUARTInit:         "UARTInit",
	OpUARTDeinit:       "UARTDeinit",
	OpUARTRead:         "UARTRead",
	OpUARTWrite:        "UARTWrite",
	OpUARTSetBaudrate:  "UARTSetBaudrate",
	OpUARTRxAvailable:  "UARTRxAvailable",
	OpUARTClearRx:      "UARTClearRx",
	OpMCUReset:         "MCUReset",
}

func (k OperationKind) String() string {
	if n, ok := operationKindNames[k]; ok {
		return n
	}
	return "Unknown"
}

// Params is the request payload of one operation. The set of implementations
// is closed; each variant records exactly the fields its operation needs,
// so a payload can never be read as the wrong variant.
type Params interface {
	Kind() OperationKind
}

// GPIOSetParams drives a digital output pin.
type GPIOSetParams struct {
	Pin   uint8
	Value bool
}

func (GPIOSetParams) Kind() OperationKind { return OpGPIOSet }

// GPIOGetParams samples a digital pin.
type GPIOGetParams struct {
	Pin uint8
}

func (GPIOGetParams) Kind() OperationKind { return OpGPIOGet }

// GPIODirectionParams switches a pin between input and output.
type GPIODirectionParams struct {
	Pin    uint8
	Output bool
}

func (GPIODirectionParams) Kind() OperationKind { return OpGPIOSetDirection }

// GPIOPullParams configures the pull resistor of a pin.
// Pull codes: 0 none, 1 up, 2 down.
type GPIOPullParams struct {
	Pin  uint8
	Pull uint8
}

func (GPIOPullParams) Kind() OperationKind { return OpGPIOSetPull }

// AnalogInitParams claims an analog channel as ADC or DAC.
type AnalogInitParams struct {
	Pin    uint8
	Output bool
}

func (AnalogInitParams) Kind() OperationKind { return OpAnalogInit }

// AnalogDeinitParams releases an analog channel.
type AnalogDeinitParams struct {
	Pin uint8
}

func (AnalogDeinitParams) Kind() OperationKind { return OpAnalogDeinit }

// AnalogReadParams samples an ADC channel.
type AnalogReadParams struct {
	Pin uint8
}

func (AnalogReadParams) Kind() OperationKind { return OpAnalogRead }

// AnalogWriteParams drives a DAC channel with a 16-bit value.
type AnalogWriteParams struct {
	Pin   uint8
	Value uint16
}

func (AnalogWriteParams) Kind() OperationKind { return OpAnalogWrite }

// I2CInitParams brings up an I2C bus on a pin pair.
type I2CInitParams struct {
	SCL       uint8
	SDA       uint8
	Frequency uint32
}

func (I2CInitParams) Kind() OperationKind { return OpI2CInit }

// I2CDeinitParams tears down the I2C bus identified by its SCL pin.
type I2CDeinitParams struct {
	SCL uint8
}

func (I2CDeinitParams) Kind() OperationKind { return OpI2CDeinit }

// I2CWriteParams writes bytes to a device. The first byte addresses the
// device register the write starts at.
type I2CWriteParams struct {
	Address uint8
	Data    []byte
}

func (I2CWriteParams) Kind() OperationKind { return OpI2CWrite }

// I2CReadParams reads Length bytes from a device at its current register
// cursor.
type I2CReadParams struct {
	Address uint8
	Length  uint16
}

func (I2CReadParams) Kind() OperationKind { return OpI2CRead }

// I2CWriteReadParams performs a write followed by a read without releasing
// the bus in between.
type I2CWriteReadParams struct {
	Address    uint8
	WriteData  []byte
	ReadLength uint16
}

func (I2CWriteReadParams) Kind() OperationKind { return OpI2CWriteRead }

// I2CProbeParams checks whether a device answers at an address.
type I2CProbeParams struct {
	Address uint8
}

func (I2CProbeParams) Kind() OperationKind { return OpI2CProbe }

// SPIInitParams brings up a SPI bus on a clock/MOSI/MISO pin triple.
type SPIInitParams struct {
	Clock uint8
	MOSI  uint8
	MISO  uint8
}

func (SPIInitParams) Kind() OperationKind { return OpSPIInit }

// SPIDeinitParams tears down the SPI bus identified by its clock pin.
type SPIDeinitParams struct {
	Clock uint8
}

func (SPIDeinitParams) Kind() OperationKind { return OpSPIDeinit }

// SPITransferParams shifts Data out while reading the same number of bytes
// in.
type SPITransferParams struct {
	Data []byte
}

func (SPITransferParams) Kind() OperationKind { return OpSPITransfer }

// SPIWriteParams shifts Data out, discarding the bytes read back.
type SPIWriteParams struct {
	Data []byte
}

func (SPIWriteParams) Kind() OperationKind { return OpSPIWrite }

// SPIReadParams reads Length bytes while shifting WriteValue out.
type SPIReadParams struct {
	Length     uint16
	WriteValue uint8
}

func (SPIReadParams) Kind() OperationKind { return OpSPIRead }

// SPIConfigureParams sets the SPI clocking parameters.
type SPIConfigureParams struct {
	Baudrate uint32
	Polarity uint8
	Phase    uint8
	Bits     uint8
}

func (SPIConfigureParams) Kind() OperationKind { return OpSPIConfigure }

// TimeSleepParams asks the host to let the requested span of virtual time
// pass.
type TimeSleepParams struct {
	Milliseconds uint32
}

func (TimeSleepParams) Kind() OperationKind { return OpTimeSleep }

// TimeMonotonicParams queries the host's monotonic clock.
type TimeMonotonicParams struct{}

func (TimeMonotonicParams) Kind() OperationKind { return OpTimeMonotonic }

// UARTInitParams brings up a UART on a TX/RX pin pair.
type UARTInitParams struct {
	TX       uint8
	RX       uint8
	Baudrate uint32
	Bits     uint8
	Parity   uint8
	Stop     uint8
}

func (UARTInitParams) Kind() OperationKind { return OpUARTInit }

// UARTDeinitParams tears down the UART identified by its TX pin.
type UARTDeinitParams struct {
	TX uint8
}

func (UARTDeinitParams) Kind() OperationKind { return OpUARTDeinit }

// UARTReadParams reads up to Length buffered bytes.
type UARTReadParams struct {
	Length uint16
}

func (UARTReadParams) Kind() OperationKind { return OpUARTRead }

// UARTWriteParams transmits Data.
type UARTWriteParams struct {
	Data []byte
}

func (UARTWriteParams) Kind() OperationKind { return OpUARTWrite }

// UARTBaudrateParams changes the baud rate of a live UART.
type UARTBaudrateParams struct {
	Baudrate uint32
}

func (UARTBaudrateParams) Kind() OperationKind { return OpUARTSetBaudrate }

// UARTRxAvailableParams queries the number of buffered receive bytes.
type UARTRxAvailableParams struct{}

func (UARTRxAvailableParams) Kind() OperationKind { return OpUARTRxAvailable }

// UARTClearRxParams discards the receive buffer.
type UARTClearRxParams struct{}

func (UARTClearRxParams) Kind() OperationKind { return OpUARTClearRx }

// MCUResetParams asks the host to reset every peripheral not marked
// never-reset.
type MCUResetParams struct{}

func (MCUResetParams) Kind() OperationKind { return OpMCUReset }
