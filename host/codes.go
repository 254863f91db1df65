// Package host implements the completer side of the bridge boundary. The
// loopback completer fulfils requests in-process against the peripheral
// registries, the way a real embedding environment would against hardware.
package host

// Error codes a completer reports through Table.Error. The values follow
// the errno convention the interpreter surfaces to user code.
const (
	CodeIO          int32 = 5
	CodeNoDevice    int32 = 19
	CodeInvalid     int32 = 22
	CodeUnsupported int32 = 95
)
