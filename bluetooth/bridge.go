package bluetooth

import (
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	log "github.com/sirupsen/logrus"

	"github.com/beamdrop/beamd/discovery"
)

// BatchHandler receives one batch of enriched sightings per discovery
// event. Handlers run on the signal goroutine.
type BatchHandler func([]discovery.PeerRecord)

// Bridge wraps the BlueZ adapter: it owns the discovery signal
// subscription, enriches raw device paths into PeerRecords, and enumerates
// already-paired peers. Platform failures are logged and degraded to
// partial data; only session control (start/stop) surfaces errors.
type Bridge struct {
	conn    *dbus.Conn
	adapter dbus.ObjectPath

	mu        sync.Mutex
	listening bool
	signals   chan *dbus.Signal
	handlers  []BatchHandler
}

func NewBridge() (*Bridge, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %v", err)
	}
	log.Info("Connected to system bus")

	adapter, err := findDefaultAdapter(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to find bluetooth adapter: %v", err)
	}
	log.Infof("Found adapter: %s", adapter)

	b := &Bridge{
		conn:    conn,
		adapter: adapter,
	}

	if err := b.setPower(true); err != nil {
		return nil, fmt.Errorf("failed to power on adapter: %v", err)
	}

	return b, nil
}

func findDefaultAdapter(conn *dbus.Conn) (dbus.ObjectPath, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	obj := conn.Object(BLUEZ_BUS_NAME, "/")
	if err := obj.Call(OBJECT_MANAGER_INTERFACE+".GetManagedObjects", 0).Store(&objects); err != nil {
		return "", fmt.Errorf("failed to get managed objects: %v", err)
	}

	for path, interfaces := range objects {
		if _, hasAdapter := interfaces[BLUEZ_ADAPTER_INTERFACE]; hasAdapter {
			return path, nil
		}
	}

	return "", fmt.Errorf("no bluetooth adapter found")
}

// OnBatch registers a handler for discovery batches.
func (b *Bridge) OnBatch(fn BatchHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, fn)
}

// StartDiscovery registers the discovery signal subscription (at most once)
// and puts the adapter into discovery mode if it is not already there.
func (b *Bridge) StartDiscovery() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.listening {
		if err := b.conn.AddMatchSignal(
			dbus.WithMatchInterface(OBJECT_MANAGER_INTERFACE),
			dbus.WithMatchMember("InterfacesAdded"),
		); err != nil {
			return fmt.Errorf("failed to add interfaces match: %v", err)
		}
		if err := b.conn.AddMatchSignal(
			dbus.WithMatchInterface(PROPERTIES_INTERFACE),
			dbus.WithMatchMember("PropertiesChanged"),
			dbus.WithMatchPathNamespace("/org/bluez"),
		); err != nil {
			return fmt.Errorf("failed to add properties match: %v", err)
		}

		b.signals = make(chan *dbus.Signal, 16)
		b.conn.Signal(b.signals)
		go b.readSignals(b.signals)
		b.listening = true
	}

	discovering, err := b.isDiscovering()
	if err != nil {
		log.Errorf("Failed to query Discovering: %v", err)
	}
	if !discovering {
		obj := b.conn.Object(BLUEZ_BUS_NAME, b.adapter)
		if err := obj.Call(BLUEZ_ADAPTER_INTERFACE+".StartDiscovery", 0).Err; err != nil {
			return fmt.Errorf("failed to start discovery: %v", err)
		}
	}

	return nil
}

// StopDiscovery takes the adapter out of discovery mode if needed and
// always tears down the signal subscription. Safe to call when discovery
// was never started.
func (b *Bridge) StopDiscovery() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	discovering, derr := b.isDiscovering()
	if derr != nil {
		log.Errorf("Failed to query Discovering: %v", derr)
	}
	if discovering {
		obj := b.conn.Object(BLUEZ_BUS_NAME, b.adapter)
		if cerr := obj.Call(BLUEZ_ADAPTER_INTERFACE+".StopDiscovery", 0).Err; cerr != nil {
			err = fmt.Errorf("failed to stop discovery: %v", cerr)
		}
	}

	if b.listening {
		if merr := b.conn.RemoveMatchSignal(
			dbus.WithMatchInterface(OBJECT_MANAGER_INTERFACE),
			dbus.WithMatchMember("InterfacesAdded"),
		); merr != nil {
			log.Errorf("Failed to remove interfaces match: %v", merr)
		}
		if merr := b.conn.RemoveMatchSignal(
			dbus.WithMatchInterface(PROPERTIES_INTERFACE),
			dbus.WithMatchMember("PropertiesChanged"),
			dbus.WithMatchPathNamespace("/org/bluez"),
		); merr != nil {
			log.Errorf("Failed to remove properties match: %v", merr)
		}
		b.conn.RemoveSignal(b.signals)
		close(b.signals)
		b.signals = nil
		b.listening = false
	}

	return err
}

// PairedPeers enumerates the already-paired devices known to the adapter,
// enriched the same way as scanned peers. Platform failure degrades to an
// empty result.
func (b *Bridge) PairedPeers() []discovery.PeerRecord {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	obj := b.conn.Object(BLUEZ_BUS_NAME, "/")
	if err := obj.Call(OBJECT_MANAGER_INTERFACE+".GetManagedObjects", 0).Store(&objects); err != nil {
		log.Errorf("Failed to get managed objects: %v", err)
		return nil
	}

	var peers []discovery.PeerRecord
	for path, interfaces := range objects {
		props, ok := interfaces[BLUEZ_DEVICE_INTERFACE]
		if !ok {
			continue
		}
		paired, _ := boolProp(props, "Paired")
		if !paired {
			continue
		}
		addr := addrFromPath(b.adapter, path)
		if addr == "" {
			continue
		}
		peers = append(peers, recordFromProps(addr, props))
	}

	return peers
}

// SetDiscoverable toggles the adapter's discoverable+pairable mode, used by
// the listening/accepting role.
func (b *Bridge) SetDiscoverable(enable bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	obj := b.conn.Object(BLUEZ_BUS_NAME, b.adapter)

	if err := obj.Call(PROPERTIES_INTERFACE+".Set", 0,
		BLUEZ_ADAPTER_INTERFACE, "Discoverable", dbus.MakeVariant(enable)).Err; err != nil {
		return err
	}

	return obj.Call(PROPERTIES_INTERFACE+".Set", 0,
		BLUEZ_ADAPTER_INTERFACE, "Pairable", dbus.MakeVariant(enable)).Err
}

func (b *Bridge) setPower(enable bool) error {
	obj := b.conn.Object(BLUEZ_BUS_NAME, b.adapter)
	return obj.Call(PROPERTIES_INTERFACE+".Set", 0,
		BLUEZ_ADAPTER_INTERFACE, "Powered", dbus.MakeVariant(enable)).Err
}

func (b *Bridge) isDiscovering() (bool, error) {
	obj := b.conn.Object(BLUEZ_BUS_NAME, b.adapter)
	v, err := obj.GetProperty(BLUEZ_ADAPTER_INTERFACE + ".Discovering")
	if err != nil {
		return false, err
	}
	discovering, _ := v.Value().(bool)
	return discovering, nil
}

func (b *Bridge) readSignals(signals chan *dbus.Signal) {
	for signal := range signals {
		switch signal.Name {
		case INTERFACES_ADDED_SIGNAL:
			if len(signal.Body) < 2 {
				continue
			}
			path, ok := signal.Body[0].(dbus.ObjectPath)
			if !ok {
				continue
			}
			interfaces, ok := signal.Body[1].(map[string]map[string]dbus.Variant)
			if !ok {
				continue
			}
			if _, isDevice := interfaces[BLUEZ_DEVICE_INTERFACE]; !isDevice {
				continue
			}
			addr := addrFromPath(b.adapter, path)
			if addr == "" {
				continue
			}
			log.Debugf("Device found: %s", addr)
			b.deliver([]discovery.PeerRecord{b.enrich(addr)})

		case PROPERTIES_CHANGED_SIGNAL:
			if len(signal.Body) < 2 {
				continue
			}
			iface, ok := signal.Body[0].(string)
			if !ok || iface != BLUEZ_DEVICE_INTERFACE {
				continue
			}
			changes, ok := signal.Body[1].(map[string]dbus.Variant)
			if !ok || !isSighting(changes) {
				continue
			}
			addr := addrFromPath(b.adapter, signal.Path)
			if addr == "" {
				continue
			}
			b.deliver([]discovery.PeerRecord{b.enrich(addr)})
		}
	}
}

// isSighting reports whether a property change counts as a re-sighting of
// the device, as opposed to connection or media chatter.
func isSighting(changes map[string]dbus.Variant) bool {
	for _, key := range []string{"RSSI", "Name", "Alias", "Class", "Paired"} {
		if _, ok := changes[key]; ok {
			return true
		}
	}
	return false
}

func (b *Bridge) deliver(batch []discovery.PeerRecord) {
	b.mu.Lock()
	handlers := make([]BatchHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(batch)
	}
}

func devicePath(adapter dbus.ObjectPath, address string) dbus.ObjectPath {
	formattedAddress := strings.ReplaceAll(address, ":", "_")
	return dbus.ObjectPath(fmt.Sprintf("%s/dev_%s", adapter, formattedAddress))
}

// addrFromPath recovers the hardware address from a BlueZ device object
// path, or "" when the path is not a device under the adapter.
func addrFromPath(adapter dbus.ObjectPath, path dbus.ObjectPath) string {
	prefix := string(adapter) + "/dev_"
	if !strings.HasPrefix(string(path), prefix) {
		return ""
	}
	addr := strings.TrimPrefix(string(path), prefix)
	if addr == "" || strings.Contains(addr, "/") {
		return ""
	}
	return strings.ReplaceAll(addr, "_", ":")
}
