package bluetooth

import (
	"syscall"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	log "github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
)

// DefaultPANInterface is the network interface BlueZ creates for the PAN
// link that carries file transfers.
const DefaultPANInterface = "bnep0"

// LinkWatcher watches for loss of the PAN interface and reports it through
// a callback.
type LinkWatcher struct {
	iface  string
	onDown func()
	done   chan struct{}
}

func NewLinkWatcher(iface string, onDown func()) *LinkWatcher {
	if iface == "" {
		iface = DefaultPANInterface
	}
	return &LinkWatcher{
		iface:  iface,
		onDown: onDown,
		done:   make(chan struct{}),
	}
}

func (w *LinkWatcher) Start() error {
	linkUpdates := make(chan netlink.LinkUpdate)
	if err := netlink.LinkSubscribe(linkUpdates, w.done); err != nil {
		return err
	}

	go func() {
		for update := range linkUpdates {
			if update.Header.Type == syscall.RTM_DELLINK && update.Link.Attrs().Name == w.iface {
				log.Infof("%s interface removed", w.iface)
				if w.onDown != nil {
					w.onDown()
				}
			}
		}
	}()

	return nil
}

func (w *LinkWatcher) Stop() {
	close(w.done)
}

// ProbeLink checks whether the transfer-channel peer answers ICMP within
// the timeout.
func ProbeLink(host string, timeout time.Duration) (bool, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return false, err
	}
	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(true)

	if err := pinger.Run(); err != nil {
		return false, err
	}

	return pinger.Statistics().PacketsRecv > 0, nil
}
