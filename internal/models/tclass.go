package models

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

var (
	// ErrMissingID is returned when a catalog entry has no class id
	ErrMissingID = errors.New("class update without id")
	// ErrInvalidEntry is returned for malformed subnet or port entries
	ErrInvalidEntry = errors.New("invalid membership entry")
)

// ClassKind tells who owns a traffic class
type ClassKind int

const (
	// KindSystem classes are managed by the signature updater
	KindSystem ClassKind = 0
	// KindUser classes were customized locally and are never synced
	KindUser ClassKind = 1
)

func (k ClassKind) String() string {
	switch k {
	case KindSystem:
		return "system"
	case KindUser:
		return "user"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Group separates local network members from internet members
type Group string

const (
	GroupInside  Group = "i"
	GroupOutside Group = "o"
)

func (g Group) String() string {
	if g == GroupInside {
		return "inside"
	}
	return "outside"
}

// IP protocol numbers stored for ports
const (
	ProtoUnknown = 0
	ProtoTCP     = 6
	ProtoUDP     = 17
)

// Column limits of clase_trafico
const (
	MaxNameLength        = 32
	MaxDescriptionLength = 160
)

// TrafficClass is a stored classification rule set
type TrafficClass struct {
	ID          int       `json:"id" db:"id_clase"`
	Name        string    `json:"name" db:"nombre"`
	Description string    `json:"description" db:"descripcion"`
	Kind        ClassKind `json:"kind" db:"tipo"`
	Active      bool      `json:"active" db:"activa"`
}

func (c *TrafficClass) String() string {
	return fmt.Sprintf("%d: %s", c.ID, c.Name)
}

// Subnet is a network address with its prefix length
type Subnet struct {
	Address string `json:"address" db:"direccion"`
	Prefix  int    `json:"prefix" db:"prefijo"`
}

func (s Subnet) String() string {
	return fmt.Sprintf("%s/%d", s.Address, s.Prefix)
}

// Port is a transport port bound to an IP protocol number
type Port struct {
	Number   int `json:"number" db:"numero"`
	Protocol int `json:"protocol" db:"protocolo"`
}

func (p Port) String() string {
	return fmt.Sprintf("%d/%s", p.Number, ProtocolName(p.Protocol))
}

// ClassUpdate is one traffic class as published by the signature repository.
// Field names follow the repository's JSON format.
type ClassUpdate struct {
	ID             *int     `json:"id"`
	Name           string   `json:"nombre"`
	Description    string   `json:"descripcion"`
	Active         *bool    `json:"activa"`
	SubnetsOutside []string `json:"subredes_outside"`
	SubnetsInside  []string `json:"subredes_inside"`
	PortsOutside   []string `json:"puertos_outside"`
	PortsInside    []string `json:"puertos_inside"`
}

// IsActive returns the active flag, true when the repository omits it
func (u *ClassUpdate) IsActive() bool {
	if u.Active == nil {
		return true
	}
	return *u.Active
}

// Members holds the parsed membership lists of a class update
type Members struct {
	SubnetsOutside []Subnet
	SubnetsInside  []Subnet
	PortsOutside   []Port
	PortsInside    []Port
}

// ParseMembers validates and converts all membership lists of the update
func (u *ClassUpdate) ParseMembers() (*Members, error) {
	var (
		m   Members
		err error
	)
	if m.SubnetsOutside, err = parseSubnets(u.SubnetsOutside); err != nil {
		return nil, err
	}
	if m.SubnetsInside, err = parseSubnets(u.SubnetsInside); err != nil {
		return nil, err
	}
	if m.PortsOutside, err = parsePorts(u.PortsOutside); err != nil {
		return nil, err
	}
	if m.PortsInside, err = parsePorts(u.PortsInside); err != nil {
		return nil, err
	}
	return &m, nil
}

func parseSubnets(entries []string) ([]Subnet, error) {
	subnets := make([]Subnet, 0, len(entries))
	for _, entry := range entries {
		subnet, err := ParseSubnet(entry)
		if err != nil {
			return nil, err
		}
		subnets = append(subnets, subnet)
	}
	return subnets, nil
}

func parsePorts(entries []string) ([]Port, error) {
	ports := make([]Port, 0, len(entries))
	for _, entry := range entries {
		port, err := ParsePort(entry)
		if err != nil {
			return nil, err
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// ParseSubnet converts "address/prefix" into a Subnet
func ParseSubnet(entry string) (Subnet, error) {
	parts := strings.Split(strings.TrimSpace(entry), "/")
	if len(parts) != 2 {
		return Subnet{}, fmt.Errorf("%w: subnet %q must be address/prefix", ErrInvalidEntry, entry)
	}

	ip := net.ParseIP(parts[0])
	if ip == nil {
		return Subnet{}, fmt.Errorf("%w: invalid address in subnet %q", ErrInvalidEntry, entry)
	}

	prefix, err := strconv.Atoi(parts[1])
	if err != nil {
		return Subnet{}, fmt.Errorf("%w: invalid prefix in subnet %q: %v", ErrInvalidEntry, entry, err)
	}

	maxPrefix := 32
	if strings.Contains(parts[0], ":") {
		maxPrefix = 128
	}
	if prefix < 0 || prefix > maxPrefix {
		return Subnet{}, fmt.Errorf("%w: prefix %d out of range in subnet %q", ErrInvalidEntry, prefix, entry)
	}

	return Subnet{Address: parts[0], Prefix: prefix}, nil
}

// ParsePort converts "number/proto" or "number" into a Port
func ParsePort(entry string) (Port, error) {
	number, proto, _ := strings.Cut(strings.TrimSpace(entry), "/")

	n, err := strconv.Atoi(number)
	if err != nil {
		return Port{}, fmt.Errorf("%w: invalid port number in %q: %v", ErrInvalidEntry, entry, err)
	}
	if n < 0 || n > 65535 {
		return Port{}, fmt.Errorf("%w: port %d out of range", ErrInvalidEntry, n)
	}

	return Port{Number: n, Protocol: ParseProtocol(proto)}, nil
}

// ParseProtocol maps tcp and udp to their protocol numbers, anything else is 0
func ParseProtocol(s string) int {
	switch strings.ToLower(s) {
	case "tcp":
		return ProtoTCP
	case "udp":
		return ProtoUDP
	}
	return ProtoUnknown
}

// ProtocolName is the inverse of ParseProtocol
func ProtocolName(proto int) string {
	switch proto {
	case ProtoTCP:
		return "tcp"
	case ProtoUDP:
		return "udp"
	}
	return strconv.Itoa(proto)
}
