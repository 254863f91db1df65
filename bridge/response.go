package bridge

// Response is the reply payload of one completed operation. Like Params, the
// set of implementations is closed and every variant is self-describing.
type Response interface {
	isResponse()
}

// EmptyResponse acknowledges an operation that produces no data.
type EmptyResponse struct{}

func (EmptyResponse) isResponse() {}

// GPIOValueResponse carries a sampled digital level.
type GPIOValueResponse struct {
	Value bool
}

func (GPIOValueResponse) isResponse() {}

// AnalogValueResponse carries a sampled 16-bit analog value.
type AnalogValueResponse struct {
	Value uint16
}

func (AnalogValueResponse) isResponse() {}

// AckResponse reports whether a bus transaction was acknowledged. Probe
// results and init results use it.
type AckResponse struct {
	OK bool
}

func (AckResponse) isResponse() {}

// DataResponse carries bytes read from a bus or UART. The length is bounded
// by PayloadCap.
type DataResponse struct {
	Data []byte
}

func (DataResponse) isResponse() {}

// TimeResponse carries the host's monotonic time in milliseconds.
type TimeResponse struct {
	Milliseconds uint64
}

func (TimeResponse) isResponse() {}

// CountResponse carries a scalar count, such as buffered receive bytes.
type CountResponse struct {
	Count uint32
}

func (CountResponse) isResponse() {}
