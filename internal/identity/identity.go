// Package identity holds the controller's immutable identity and its
// device (Elements) table.
package identity

import (
	"fmt"
	"regexp"
)

var (
	situationRe = regexp.MustCompile(`^B\d{2}L\d{2}R\d{2}A\d{2}$`)
	macRe       = regexp.MustCompile(`^[0-9a-fA-F]{12}$`)
	deviceIDRe  = regexp.MustCompile(`^[A-Z]{3}-\d-[IO]$`)
)

// MaxElements is the maximum number of devices a controller may own.
const MaxElements = 10

// DefaultValue is the initial value assigned to every device on load.
const DefaultValue = "NONE"

// Identity is the controller's immutable configuration, loaded once at
// startup. Name/Situation/MAC are validated on load; an invalid Name or
// Situation logs a warning but does not abort, an invalid MAC does.
type Identity struct {
	Name      string
	Situation string
	MAC       string
	LocalTCP  int
	SrvUDP    int
	Server    string
}

// ValidateSituation reports whether s matches the required B\d{2}L\d{2}R\d{2}A\d{2} format.
func ValidateSituation(s string) bool { return situationRe.MatchString(s) }

// ValidateMAC reports whether s is 12 hex characters.
func ValidateMAC(s string) bool { return macRe.MatchString(s) }

// ValidateDeviceID reports whether id matches [A-Z]{3}-\d-[IO].
func ValidateDeviceID(id string) bool { return deviceIDRe.MatchString(id) }

// IsActuator reports whether device id is writable (trailing 'I' suffix
// denotes an input/actuator).
func IsActuator(deviceID string) bool {
	return len(deviceID) > 0 && deviceID[len(deviceID)-1] == 'I'
}

// IsSensor reports whether device id is read-only from the server's
// perspective (trailing 'O').
func IsSensor(deviceID string) bool {
	return len(deviceID) > 0 && deviceID[len(deviceID)-1] == 'O'
}

// Elements is the controller's ordered device table: at most MaxElements
// entries, insertion order preserved, values truncated to 6 characters.
type Elements struct {
	order  []string
	values map[string]string
}

// NewElements builds an Elements table from an ordered list of device ids,
// silently dropping entries beyond MaxElements.
func NewElements(deviceIDs []string) *Elements {
	if len(deviceIDs) > MaxElements {
		deviceIDs = deviceIDs[:MaxElements]
	}
	e := &Elements{
		order:  make([]string, 0, len(deviceIDs)),
		values: make(map[string]string, len(deviceIDs)),
	}
	for _, id := range deviceIDs {
		if _, exists := e.values[id]; exists {
			continue
		}
		e.order = append(e.order, id)
		e.values[id] = DefaultValue
	}
	return e
}

// Has reports whether device is owned by this controller.
func (e *Elements) Has(device string) bool {
	_, ok := e.values[device]
	return ok
}

// Get returns the current value of device and whether it is owned.
func (e *Elements) Get(device string) (string, bool) {
	v, ok := e.values[device]
	return v, ok
}

// Set stores value (truncated to 6 chars) for an owned device. It is a
// no-op if device is not owned.
func (e *Elements) Set(device, value string) {
	if _, ok := e.values[device]; !ok {
		return
	}
	if len(value) > 6 {
		value = value[:6]
	}
	e.values[device] = value
}

// Keys returns the device ids in insertion order.
func (e *Elements) Keys() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Len returns the number of owned devices.
func (e *Elements) Len() int { return len(e.order) }

// String renders the table for the `stat` shell command.
func (e *Elements) String() string {
	s := ""
	for _, k := range e.order {
		s += fmt.Sprintf("%s=%s\n", k, e.values[k])
	}
	return s
}
