package ids

import "fmt"

// AddressKind tags which identifiers an Address carries.
type AddressKind int

const (
	// KindNone is the zero Address. It never comes out of a constructor.
	KindNone AddressKind = iota
	// KindAciOnly carries a stable identifier and no phone number.
	KindAciOnly
	// KindPhoneOnly carries a phone number and no stable identifier.
	KindPhoneOnly
	// KindBoth carries both identifiers.
	KindBoth
)

func (k AddressKind) String() string {
	switch k {
	case KindAciOnly:
		return "aci-only"
	case KindPhoneOnly:
		return "phone-only"
	case KindBoth:
		return "both"
	default:
		return "none"
	}
}

// Address is an observed identifier combination for one recipient.
// Switch on Kind() to cover every case of the merge decision table.
type Address struct {
	kind  AddressKind
	aci   Aci
	phone E164
}

// AciAddress returns an address holding only a stable identifier.
func AciAddress(aci Aci) Address {
	return Address{kind: KindAciOnly, aci: aci}
}

// PhoneAddress returns an address holding only a phone number.
func PhoneAddress(phone E164) Address {
	return Address{kind: KindPhoneOnly, phone: phone}
}

// BothAddress returns an address holding both identifiers.
func BothAddress(aci Aci, phone E164) Address {
	return Address{kind: KindBoth, aci: aci, phone: phone}
}

// NewAddress builds an address from optional parts.
// Returns ErrNoIdentifier if both are nil or empty.
func NewAddress(aci *Aci, phone *E164) (Address, error) {
	hasAci := aci != nil && *aci != ""
	hasPhone := phone != nil && *phone != ""
	switch {
	case hasAci && hasPhone:
		return BothAddress(*aci, *phone), nil
	case hasAci:
		return AciAddress(*aci), nil
	case hasPhone:
		return PhoneAddress(*phone), nil
	default:
		return Address{}, ErrNoIdentifier
	}
}

// ParseAddress parses optional string parts; empty strings mean absent.
func ParseAddress(aciStr, phoneStr string) (Address, error) {
	var aci *Aci
	var phone *E164
	if aciStr != "" {
		a, err := ParseAci(aciStr)
		if err != nil {
			return Address{}, err
		}
		aci = &a
	}
	if phoneStr != "" {
		p, err := ParseE164(phoneStr)
		if err != nil {
			return Address{}, err
		}
		phone = &p
	}
	return NewAddress(aci, phone)
}

// Kind returns the variant tag.
func (a Address) Kind() AddressKind { return a.kind }

// IsZero reports whether a was not built by a constructor.
func (a Address) IsZero() bool { return a.kind == KindNone }

// Aci returns the stable identifier, if present.
func (a Address) Aci() (Aci, bool) {
	return a.aci, a.kind == KindAciOnly || a.kind == KindBoth
}

// Phone returns the phone number, if present.
func (a Address) Phone() (E164, bool) {
	return a.phone, a.kind == KindPhoneOnly || a.kind == KindBoth
}

// AciPtr returns the stable identifier or nil.
func (a Address) AciPtr() *Aci {
	if v, ok := a.Aci(); ok {
		return &v
	}
	return nil
}

// PhonePtr returns the phone number or nil.
func (a Address) PhonePtr() *E164 {
	if v, ok := a.Phone(); ok {
		return &v
	}
	return nil
}

func (a Address) String() string {
	switch a.kind {
	case KindAciOnly:
		return fmt.Sprintf("<aci:%s>", a.aci)
	case KindPhoneOnly:
		return fmt.Sprintf("<phone:%s>", a.phone)
	case KindBoth:
		return fmt.Sprintf("<aci:%s phone:%s>", a.aci, a.phone)
	default:
		return "<none>"
	}
}
