package model

import "strings"

// IdentityKind names the user_quotas column a requester is keyed by.
type IdentityKind string

const (
	IdentityEmail IdentityKind = "email"
	IdentityIP    IdentityKind = "ip_address"
)

// Identity is the key daily quota is tracked under. Exactly one column is
// authoritative per request: email when a session is present, source IP
// otherwise. The choice is made once at the request boundary.
type Identity struct {
	Kind  IdentityKind
	Value string
}

func ByEmail(email string) Identity {
	return Identity{Kind: IdentityEmail, Value: strings.ToLower(strings.TrimSpace(email))}
}

func ByIP(ip string) Identity {
	return Identity{Kind: IdentityIP, Value: strings.TrimSpace(ip)}
}

func (i Identity) Valid() bool {
	if i.Value == "" {
		return false
	}
	return i.Kind == IdentityEmail || i.Kind == IdentityIP
}
