package knxnet

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// DeviceInfoLength is the fixed size of a device-info DIB.
const DeviceInfoLength = 54

// DescriptionTypeDeviceInfo is the only description type this stack
// parses as device information; any other value fails to read.
const DescriptionTypeDeviceInfo byte = 0x01

const friendlyNameLength = 30

// DeviceInfo is the SEARCH_RESPONSE device-information DIB.
type DeviceInfo struct {
	Medium                byte
	Status                byte
	PhysicalAddress       uint16
	ProjectInstallationID uint16
	SerialNumber          [6]byte
	MulticastAddress      [4]byte
	MAC                   [6]byte
	FriendlyName          string
}

// ReadDeviceInfo parses a device-info DIB from the start of buffer.
func ReadDeviceInfo(buffer []byte) (DeviceInfo, int, error) {
	if len(buffer) < DeviceInfoLength {
		return DeviceInfo{}, 0, fmt.Errorf("%w: device info DIB needs %d bytes", ErrIncompletePacket, DeviceInfoLength)
	}
	if buffer[0] != DeviceInfoLength {
		return DeviceInfo{}, 0, fmt.Errorf("%w: device info DIB length byte must be %d", ErrIncompletePacket, DeviceInfoLength)
	}
	if buffer[1] != DescriptionTypeDeviceInfo {
		return DeviceInfo{}, 0, fmt.Errorf("%w: descriptionType %#x", ErrUnknownDescription, buffer[1])
	}

	var d DeviceInfo
	d.Medium = buffer[2]
	d.Status = buffer[3]
	d.PhysicalAddress = binary.BigEndian.Uint16(buffer[4:6])
	d.ProjectInstallationID = binary.BigEndian.Uint16(buffer[6:8])
	copy(d.SerialNumber[:], buffer[8:14])
	copy(d.MulticastAddress[:], buffer[14:18])
	copy(d.MAC[:], buffer[18:24])

	name := buffer[24:54]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	d.FriendlyName = string(name)

	return d, DeviceInfoLength, nil
}

// WriteDeviceInfo serialises a device-info DIB into buffer.
func WriteDeviceInfo(d DeviceInfo, buffer []byte) (int, error) {
	if len(buffer) < DeviceInfoLength {
		return 0, fmt.Errorf("%w: buffer too small for device info DIB", ErrIncompletePacket)
	}
	if len(d.FriendlyName) > friendlyNameLength {
		return 0, fmt.Errorf("%w: friendly name longer than %d bytes", ErrInvalidPayload, friendlyNameLength)
	}

	buffer[0] = DeviceInfoLength
	buffer[1] = DescriptionTypeDeviceInfo
	buffer[2] = d.Medium
	buffer[3] = d.Status
	binary.BigEndian.PutUint16(buffer[4:6], d.PhysicalAddress)
	binary.BigEndian.PutUint16(buffer[6:8], d.ProjectInstallationID)
	copy(buffer[8:14], d.SerialNumber[:])
	copy(buffer[14:18], d.MulticastAddress[:])
	copy(buffer[18:24], d.MAC[:])

	for i := 24; i < 54; i++ {
		buffer[i] = 0
	}
	copy(buffer[24:54], d.FriendlyName)

	return DeviceInfoLength, nil
}
