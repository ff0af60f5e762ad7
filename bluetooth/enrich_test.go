package bluetooth

import (
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/beamdrop/beamd/discovery"
)

const testAdapter = dbus.ObjectPath("/org/bluez/hci0")

func TestRecordFromProps(t *testing.T) {
	props := map[string]dbus.Variant{
		"Alias":  dbus.MakeVariant("Pixel 8"),
		"Name":   dbus.MakeVariant("Pixel"),
		"RSSI":   dbus.MakeVariant(int16(-42)),
		"Class":  dbus.MakeVariant(uint32(0x5a020c)),
		"Paired": dbus.MakeVariant(true),
	}

	rec := recordFromProps("AA:BB:CC:DD:EE:FF", props)

	if rec.ID != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("id = %q", rec.ID)
	}
	if rec.DisplayName != "Pixel 8" {
		t.Errorf("displayName = %q, want alias to win over name", rec.DisplayName)
	}
	if rec.SignalStrength == nil || *rec.SignalStrength != -42 {
		t.Errorf("signalStrength = %v, want -42", rec.SignalStrength)
	}
	if rec.DeviceClass != discovery.ClassPhone {
		t.Errorf("deviceClass = %q, want %q", rec.DeviceClass, discovery.ClassPhone)
	}
	if rec.PairState != discovery.PairPaired {
		t.Errorf("pairState = %q, want %q", rec.PairState, discovery.PairPaired)
	}
}

func TestRecordFromPropsNameFallback(t *testing.T) {
	props := map[string]dbus.Variant{
		"Name":   dbus.MakeVariant("JBL Flip"),
		"Paired": dbus.MakeVariant(false),
	}

	rec := recordFromProps("11:22:33:44:55:66", props)

	if rec.DisplayName != "JBL Flip" {
		t.Errorf("displayName = %q, want name fallback", rec.DisplayName)
	}
	if rec.PairState != discovery.PairUnpaired {
		t.Errorf("pairState = %q, want %q", rec.PairState, discovery.PairUnpaired)
	}
	if rec.SignalStrength != nil {
		t.Errorf("signalStrength = %v, want absent", rec.SignalStrength)
	}
	if rec.DeviceClass != "" {
		t.Errorf("deviceClass = %q, want absent", rec.DeviceClass)
	}
}

func TestRecordFromPropsEmpty(t *testing.T) {
	rec := recordFromProps("11:22:33:44:55:66", map[string]dbus.Variant{})

	if rec.ID != "11:22:33:44:55:66" {
		t.Errorf("id = %q", rec.ID)
	}
	if rec.DisplayName != discovery.UnknownName {
		t.Errorf("displayName = %q, want %q", rec.DisplayName, discovery.UnknownName)
	}
	if rec.PairState != discovery.PairUnknown {
		t.Errorf("pairState = %q, want %q", rec.PairState, discovery.PairUnknown)
	}
}

func TestRecordFromPropsWrongTypes(t *testing.T) {
	// A misbehaving device must degrade to defaults, never abort.
	props := map[string]dbus.Variant{
		"Alias":  dbus.MakeVariant(uint32(7)),
		"RSSI":   dbus.MakeVariant("strong"),
		"Class":  dbus.MakeVariant(true),
		"Paired": dbus.MakeVariant("yes"),
	}

	rec := recordFromProps("11:22:33:44:55:66", props)

	if rec.DisplayName != discovery.UnknownName {
		t.Errorf("displayName = %q, want %q", rec.DisplayName, discovery.UnknownName)
	}
	if rec.SignalStrength != nil {
		t.Errorf("signalStrength = %v, want absent", rec.SignalStrength)
	}
	if rec.DeviceClass != "" {
		t.Errorf("deviceClass = %q, want absent", rec.DeviceClass)
	}
	if rec.PairState != discovery.PairUnknown {
		t.Errorf("pairState = %q, want %q", rec.PairState, discovery.PairUnknown)
	}
}

func TestAddrFromPath(t *testing.T) {
	tests := []struct {
		path dbus.ObjectPath
		want string
	}{
		{"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF", "AA:BB:CC:DD:EE:FF"},
		{"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/player0", ""},
		{"/org/bluez/hci0", ""},
		{"/org/bluez/hci1/dev_AA_BB_CC_DD_EE_FF", ""},
		{"/", ""},
	}

	for _, tt := range tests {
		if got := addrFromPath(testAdapter, tt.path); got != tt.want {
			t.Errorf("addrFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDevicePathRoundTrip(t *testing.T) {
	addr := "AA:BB:CC:DD:EE:FF"
	path := devicePath(testAdapter, addr)
	if path != "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF" {
		t.Errorf("devicePath = %q", path)
	}
	if got := addrFromPath(testAdapter, path); got != addr {
		t.Errorf("round trip = %q, want %q", got, addr)
	}
}

func TestIsSighting(t *testing.T) {
	if !isSighting(map[string]dbus.Variant{"RSSI": dbus.MakeVariant(int16(-50))}) {
		t.Error("RSSI change must count as a sighting")
	}
	if isSighting(map[string]dbus.Variant{"Connected": dbus.MakeVariant(true)}) {
		t.Error("connection chatter must not count as a sighting")
	}
}
