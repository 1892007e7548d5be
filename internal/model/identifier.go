package model

// IdentifierKind says which channel an identifier belongs to
type IdentifierKind string

const (
	IdentifierPhone IdentifierKind = "phone"
	IdentifierEmail IdentifierKind = "email"
)

// Identifier is the phone number or email address a code is bound to.
type Identifier struct {
	Kind  IdentifierKind `json:"kind"`
	Value string         `json:"value"`
}

func (i Identifier) IsZero() bool {
	return i.Kind == "" || i.Value == ""
}

// Column is the otps/waitlist column holding this identifier.
func (i Identifier) Column() string {
	return string(i.Kind)
}

// Label is the human wording used in messages.
func (i Identifier) Label() string {
	if i.Kind == IdentifierPhone {
		return "phone number"
	}
	return "email address"
}

func (i Identifier) String() string {
	return string(i.Kind) + ":" + i.Value
}
