package entity

import (
	"fmt"
	"strings"
)

type FareClass string

const (
	FareClassEconomy  FareClass = "Economy"
	FareClassBusiness FareClass = "Business"
	FareClassVIP      FareClass = "VIP"
)

// FareClasses lists every fare class in display order.
var FareClasses = []FareClass{FareClassEconomy, FareClassBusiness, FareClassVIP}

// ParseFareClass maps user input onto one of the known classes. Matching is
// case-insensitive; anything else is a validation error.
func ParseFareClass(s string) (FareClass, error) {
	for _, class := range FareClasses {
		if strings.EqualFold(strings.TrimSpace(s), string(class)) {
			return class, nil
		}
	}

	return "", fmt.Errorf("%w: unknown fare class %q", ErrValidation, s)
}

func (c FareClass) Validate() error {
	switch c {
	case FareClassEconomy, FareClassBusiness, FareClassVIP:
		return nil
	default:
		return fmt.Errorf("%w: unknown fare class %q", ErrValidation, string(c))
	}
}

func (c FareClass) String() string {
	return string(c)
}
