// Package port assigns the supervisor port of each volume.
//
// Ports are handed out in volume order starting right after the base port:
// with the default base 5000, the first volume gets 5001, the second 5002, and
// so on. The assignment depends only on the order volumes were added, so a
// given config always produces the same ports.
//
//	if err := port.Assign(global.Volumes(), settings.BasePort); err != nil {
//	    return err
//	}
package port
