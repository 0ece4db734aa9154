// Package device defines the inverter client capability consumed by the
// polling pipeline and the paired measurement source built on it.
//
// Concrete drivers live in subpackages: [aurora] speaks the Aurora serial
// protocol over a TCP bridge, [modbus] maps the same requests onto Modbus
// TCP holding registers. The pipeline only sees [Client].
package device
