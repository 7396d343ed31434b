// Package knxnet implements the KNXnet/IP wire codec: the header, HPAI,
// CRI, ConnState, TunnState and DIB device-info structures, the CEMI
// frame, and the APDU's bit-packed TPCI/APCI/data word.
//
// Every structure exposes a Read/Write pair operating on byte slices
// with no I/O of its own; Frame ties them together as a tagged variant
// over ServiceType, matching the service-type dispatch table in the
// protocol description. Datagram assembly (picking defaults, applying
// read/write/response mutators) lives in datagram.go.
package knxnet
