// Package aurora implements [device.Client] for Power-One/ABB Aurora
// inverters reached through a TCP to RS-485 bridge.
//
// Every exchange is a fixed 10-byte request frame
//
//	address | command | 6 parameter bytes | CRC low | CRC high
//
// answered by a fixed 8-byte response frame
//
//	transmission state | global state | 4 data bytes | CRC low | CRC high
//
// with a CRC-16/X.25 checksum. Only the two commands used by the polling
// pipeline are supported: cumulative energy (78) and DSP measure (59).
package aurora
