package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

// MachineID retrieves an ID identifying the machine without exposing the
// raw machine ID. It falls back to the host name.
func MachineID() string {
	id, err := machineid.ProtectedID("mkmx")
	if err != nil {
		if host, herr := os.Hostname(); herr == nil {
			return host
		}
		return "unknown"
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
