package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/beamdrop/beamd/bluetooth"
	"github.com/beamdrop/beamd/config"
	"github.com/beamdrop/beamd/discovery"
	"github.com/beamdrop/beamd/ws"
)

const version = "0.4.0"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type infoResponse struct {
	Version    string `json:"version"`
	DeviceName string `json:"deviceName"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

type probeResponse struct {
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

func handle(method string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		fn(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Error encoding response: %v", err)
	}
}

func main() {
	if os.Getenv("BEAMD_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	hub := ws.NewWebSocketHub()

	bridge, err := bluetooth.NewBridge()
	if err != nil {
		log.Fatalf("Failed to initialize bluetooth bridge: %v", err)
	}

	catalog := discovery.NewCatalog(bridge, time.Duration(cfg.ConnectDelay))
	bridge.OnBatch(catalog.MergeBatch)
	catalog.Subscribe(func(event discovery.Event) {
		hub.Broadcast(ws.Event{Type: event.Type, Payload: event})
	})

	watcher := bluetooth.NewLinkWatcher(cfg.Transport.Interface, func() {
		hub.Broadcast(ws.Event{Type: "transport/down"})
	})
	if err := watcher.Start(); err != nil {
		log.Errorf("Failed to start link watcher: %v", err)
	}

	http.HandleFunc("/info", handle("GET", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, infoResponse{Version: version, DeviceName: cfg.DeviceName})
	}))

	http.HandleFunc("/bluetooth/devices", handle("GET", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, catalog.Snapshot())
	}))

	http.HandleFunc("/bluetooth/scan/start", handle("POST", func(w http.ResponseWriter, r *http.Request) {
		if err := catalog.StartScan(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]bool{"scanning": true})
	}))

	http.HandleFunc("/bluetooth/scan/stop", handle("POST", func(w http.ResponseWriter, r *http.Request) {
		if err := catalog.StopScan(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]bool{"scanning": false})
	}))

	http.HandleFunc("/bluetooth/refresh", handle("POST", func(w http.ResponseWriter, r *http.Request) {
		catalog.Refresh()
		writeJSON(w, catalog.Snapshot())
	}))

	http.HandleFunc("/bluetooth/connect", handle("POST", func(w http.ResponseWriter, r *http.Request) {
		var req addressRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
			http.Error(w, "Missing address", http.StatusBadRequest)
			return
		}
		if err := catalog.Connect(req.Address); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, discovery.ErrUnknownPeer) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	http.HandleFunc("/bluetooth/disconnect", handle("POST", func(w http.ResponseWriter, r *http.Request) {
		var req addressRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
			http.Error(w, "Missing address", http.StatusBadRequest)
			return
		}
		if err := catalog.Disconnect(req.Address); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, discovery.ErrUnknownPeer) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	http.HandleFunc("/bluetooth/discoverable", handle("POST", func(w http.ResponseWriter, r *http.Request) {
		var req enabledRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if err := bridge.SetDiscoverable(req.Enabled); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	http.HandleFunc("/transport/probe", handle("GET", func(w http.ResponseWriter, r *http.Request) {
		host := cfg.Transport.ProbeHost
		if h := r.URL.Query().Get("host"); h != "" {
			host = h
		}
		if host == "" {
			http.Error(w, "No probe host configured", http.StatusBadRequest)
			return
		}
		reachable, err := bluetooth.ProbeLink(host, time.Duration(cfg.Transport.ProbeTimeout))
		resp := probeResponse{Reachable: reachable}
		if err != nil {
			resp.Error = err.Error()
		}
		writeJSON(w, resp)
	}))

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Errorf("Failed to upgrade websocket: %v", err)
			return
		}
		// Push the current catalog before joining the hub so new clients
		// start from a full list without racing broadcasts.
		if err := conn.WriteJSON(ws.Event{
			Type:    discovery.EventCatalogUpdated,
			Payload: discovery.Event{Type: discovery.EventCatalogUpdated, Devices: catalog.Snapshot()},
		}); err != nil {
			conn.Close()
			return
		}
		hub.AddClient(conn)

		go func() {
			defer hub.RemoveClient(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	addr := cfg.ListenAddr
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	log.Infof("Server starting on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}
