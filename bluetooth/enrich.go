package bluetooth

import (
	log "github.com/sirupsen/logrus"

	"github.com/godbus/dbus/v5"

	"github.com/beamdrop/beamd/discovery"
)

// enrich builds a best-effort record for one address. Every lookup is
// independent and fails soft: an unavailable property leaves the field
// defaulted and never aborts the rest of the record.
func (b *Bridge) enrich(addr string) discovery.PeerRecord {
	rec := discovery.PeerRecord{
		ID:          addr,
		DisplayName: discovery.UnknownName,
		PairState:   discovery.PairUnknown,
	}

	obj := b.conn.Object(BLUEZ_BUS_NAME, devicePath(b.adapter, addr))

	if v, err := obj.GetProperty(BLUEZ_DEVICE_INTERFACE + ".Alias"); err == nil {
		if s, ok := v.Value().(string); ok && s != "" {
			rec.DisplayName = s
		}
	} else {
		log.Debugf("Alias lookup failed for %s: %v", addr, err)
	}
	if rec.DisplayName == discovery.UnknownName {
		if v, err := obj.GetProperty(BLUEZ_DEVICE_INTERFACE + ".Name"); err == nil {
			if s, ok := v.Value().(string); ok && s != "" {
				rec.DisplayName = s
			}
		} else {
			log.Debugf("Name lookup failed for %s: %v", addr, err)
		}
	}

	if v, err := obj.GetProperty(BLUEZ_DEVICE_INTERFACE + ".RSSI"); err == nil {
		if rssi, ok := v.Value().(int16); ok {
			rec.SignalStrength = &rssi
		}
	} else {
		log.Debugf("RSSI lookup failed for %s: %v", addr, err)
	}

	if v, err := obj.GetProperty(BLUEZ_DEVICE_INTERFACE + ".Class"); err == nil {
		if cod, ok := v.Value().(uint32); ok {
			rec.DeviceClass = discovery.ClassFromCoD(cod)
		}
	} else {
		log.Debugf("Class lookup failed for %s: %v", addr, err)
	}

	if v, err := obj.GetProperty(BLUEZ_DEVICE_INTERFACE + ".Paired"); err == nil {
		if paired, ok := v.Value().(bool); ok {
			if paired {
				rec.PairState = discovery.PairPaired
			} else {
				rec.PairState = discovery.PairUnpaired
			}
		}
	} else {
		log.Debugf("Paired lookup failed for %s: %v", addr, err)
	}

	return rec
}

// recordFromProps enriches from an already-fetched property map, used when
// sweeping ObjectManager output. Same fail-soft rules as enrich.
func recordFromProps(addr string, props map[string]dbus.Variant) discovery.PeerRecord {
	rec := discovery.PeerRecord{
		ID:          addr,
		DisplayName: discovery.UnknownName,
		PairState:   discovery.PairUnknown,
	}

	if s, ok := stringProp(props, "Alias"); ok {
		rec.DisplayName = s
	} else if s, ok := stringProp(props, "Name"); ok {
		rec.DisplayName = s
	}

	if v, ok := props["RSSI"]; ok {
		if rssi, ok := v.Value().(int16); ok {
			rec.SignalStrength = &rssi
		}
	}

	if v, ok := props["Class"]; ok {
		if cod, ok := v.Value().(uint32); ok {
			rec.DeviceClass = discovery.ClassFromCoD(cod)
		}
	}

	if paired, ok := boolProp(props, "Paired"); ok {
		if paired {
			rec.PairState = discovery.PairPaired
		} else {
			rec.PairState = discovery.PairUnpaired
		}
	}

	return rec
}

func stringProp(props map[string]dbus.Variant, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func boolProp(props map[string]dbus.Variant, key string) (bool, bool) {
	v, ok := props[key]
	if !ok {
		return false, false
	}
	val, ok := v.Value().(bool)
	return val, ok
}
