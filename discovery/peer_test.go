package discovery

import "testing"

func TestClassFromCoD(t *testing.T) {
	tests := []struct {
		name string
		cod  uint32
		want DeviceClass
	}{
		{"smartphone", 0x5a020c, ClassPhone},
		{"laptop", 0x10010c, ClassComputer},
		{"headphones", 0x240418, ClassAudio},
		{"keyboard", 0x000540, ClassPeripheral},
		{"smartwatch", 0x000704, ClassWearable},
		{"access point", 0x020300, ClassNetwork},
		{"camera", 0x080600, ClassImaging},
		{"toy robot", 0x000804, ClassToy},
		{"heart rate sensor", 0x000904, ClassHealth},
		{"miscellaneous", 0x000000, ClassUnknown},
		{"reserved major", 0x001f00, ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassFromCoD(tt.cod); got != tt.want {
				t.Errorf("ClassFromCoD(%#x) = %q, want %q", tt.cod, got, tt.want)
			}
		})
	}
}
