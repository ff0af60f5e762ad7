package discovery

// UnknownName is the display name used when a peer never reported one.
const UnknownName = "unknown"

// PairState is the platform-level bonding status of a peer. It is distinct
// from ConnectionState, which is owned by the catalog.
type PairState string

const (
	PairUnpaired PairState = "unpaired"
	PairPairing  PairState = "pairing"
	PairPaired   PairState = "paired"
	PairUnknown  PairState = "unknown"
)

// ConnectionState tracks the application-level link to a peer. Scan data
// never carries connection information, so merges leave it untouched.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// DeviceClass is a coarse device category, used only for display.
type DeviceClass string

const (
	ClassComputer   DeviceClass = "computer"
	ClassPhone      DeviceClass = "phone"
	ClassNetwork    DeviceClass = "network"
	ClassAudio      DeviceClass = "audio"
	ClassPeripheral DeviceClass = "peripheral"
	ClassImaging    DeviceClass = "imaging"
	ClassWearable   DeviceClass = "wearable"
	ClassToy        DeviceClass = "toy"
	ClassHealth     DeviceClass = "health"
	ClassUnknown    DeviceClass = "unknown"
)

// ClassFromCoD maps a Bluetooth Class-of-Device value to a DeviceClass.
// Unrecognized major classes map to ClassUnknown.
func ClassFromCoD(cod uint32) DeviceClass {
	major := (cod >> 8) & 0x1f
	switch major {
	case 0x01:
		return ClassComputer
	case 0x02:
		return ClassPhone
	case 0x03:
		return ClassNetwork
	case 0x04:
		return ClassAudio
	case 0x05:
		return ClassPeripheral
	case 0x06:
		return ClassImaging
	case 0x07:
		return ClassWearable
	case 0x08:
		return ClassToy
	case 0x09:
		return ClassHealth
	default:
		return ClassUnknown
	}
}

// PeerRecord is one discovered device. ID is the hardware address and the
// unique key within a catalog.
type PeerRecord struct {
	ID              string          `json:"id"`
	DisplayName     string          `json:"displayName"`
	SignalStrength  *int16          `json:"signalStrength,omitempty"`
	DeviceClass     DeviceClass     `json:"deviceClass,omitempty"`
	PairState       PairState       `json:"pairState"`
	ConnectionState ConnectionState `json:"connectionState"`
}
