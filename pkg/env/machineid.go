package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// MachineID retrieves the ID identifying the machine, hashed with the
// application name so the raw ID is not exposed.
func MachineID() string {
	id, err := machineid.ProtectedID("edas")
	if err != nil {
		glog.Warningf("machine id: %v", err)
		return "unknown"
	}
	return id
}
