package knxnet

import "errors"

var (
	// ErrIncompletePacket is returned when a buffer is shorter than the
	// header's declared totalLength.
	ErrIncompletePacket = errors.New("knxnet: incomplete packet")

	// ErrUnsupportedTransport is returned when an HPAI declares TCP
	// (protocolType 0x02), which this stack never accepts.
	ErrUnsupportedTransport = errors.New("knxnet: unsupported transport")

	// ErrUnknownDescription is returned when a DIB carries a
	// descriptionType this stack does not parse as device info.
	ErrUnknownDescription = errors.New("knxnet: unknown description type")

	// ErrUnknownServiceType is returned for a header serviceType this
	// stack does not recognise.
	ErrUnknownServiceType = errors.New("knxnet: unknown service type")

	// ErrUnknownAPCI is returned when an APDU's APCI is not one of the
	// group-value operations this stack writes or reads.
	ErrUnknownAPCI = errors.New("knxnet: unknown APCI")

	// ErrInvalidAPDULength is returned when an APDU's length byte falls
	// outside [1, 15] (i.e. the 3..17 byte total-APDU range).
	ErrInvalidAPDULength = errors.New("knxnet: invalid APDU length")

	// ErrInvalidPayload is returned when a payload is neither a 0-63
	// embeddable value nor a 1-14 byte buffer.
	ErrInvalidPayload = errors.New("knxnet: invalid payload")

	// ErrChannelMismatch names an inbound frame whose channelId does not
	// match the session's channelId. The codec does not return it, and
	// the session drops such frames silently without producing it.
	ErrChannelMismatch = errors.New("knxnet: channel id mismatch")
)
