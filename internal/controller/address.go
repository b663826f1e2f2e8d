package controller

import (
	"strconv"
	"strings"
)

// Address is a controller address split into device and button parts.
type Address struct {
	// Device is the physical device address ("1A 2B 3C" or "A1").
	Device string

	// Button is the button number of a multi-button device, 0 if the
	// address has no button component.
	Button int
}

// ParseAddress splits a controller address.
//
// Two shapes carry a button number: three hex bytes followed by a decimal
// button ("1A 2B 3C 2"), and a single device token followed by a one or two
// digit button ("A1 02"). Anything else is a plain device address.
func ParseAddress(s string) Address {
	fields := strings.Fields(s)

	switch len(fields) {
	case 4:
		if isHexByte(fields[0]) && isHexByte(fields[1]) && isHexByte(fields[2]) {
			if n, ok := buttonNumber(fields[3]); ok {
				return Address{Device: strings.Join(fields[:3], " "), Button: n}
			}
		}
	case 2:
		if n, ok := buttonNumber(fields[1]); ok {
			return Address{Device: fields[0], Button: n}
		}
	}

	return Address{Device: strings.Join(fields, " ")}
}

// IsSecondaryButton reports whether address names button 2 to 9 of a
// multi-button device.
func IsSecondaryButton(address string) bool {
	b := ParseAddress(address).Button
	return b >= 2 && b <= 9
}

func isHexByte(s string) bool {
	if len(s) != 2 {
		return false
	}
	_, err := strconv.ParseUint(s, 16, 8)
	return err == nil
}

func buttonNumber(s string) (int, bool) {
	if len(s) == 0 || len(s) > 2 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
