package bluetooth

const (
	BLUEZ_BUS_NAME          = "org.bluez"
	BLUEZ_ADAPTER_INTERFACE = "org.bluez.Adapter1"
	BLUEZ_DEVICE_INTERFACE  = "org.bluez.Device1"

	OBJECT_MANAGER_INTERFACE = "org.freedesktop.DBus.ObjectManager"
	PROPERTIES_INTERFACE     = "org.freedesktop.DBus.Properties"

	INTERFACES_ADDED_SIGNAL   = OBJECT_MANAGER_INTERFACE + ".InterfacesAdded"
	PROPERTIES_CHANGED_SIGNAL = PROPERTIES_INTERFACE + ".PropertiesChanged"
)
