package syncroot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Field names used in validation errors.
const (
	FieldName             = "Name"
	FieldAccountID        = "AccountId"
	FieldDirectory        = "Directory"
	FieldPopulationPolicy = "PopulationPolicy"
)

// Slot widths of the native registration record. Each string slot holds the
// value plus a NUL terminator.
const (
	NameSlot      = 50
	AccountIDSlot = 50
	DirectorySlot = 500
	policySize    = 4

	// CommandSize is the size of the encoded record in bytes.
	CommandSize = NameSlot + AccountIDSlot + DirectorySlot + policySize
)

const (
	nameOffset      = 0
	accountIDOffset = nameOffset + NameSlot
	directoryOffset = accountIDOffset + AccountIDSlot
	policyOffset    = directoryOffset + DirectorySlot
)

// Registration describes one directory to mount as a sync root.
type Registration struct {
	Name      string
	AccountID string
	Directory string
	Policy    PopulationPolicy
}

// Command is a validated registration ready to be handed to the OS. Only
// BuildCommand and UnmarshalCommand produce one.
type Command struct {
	reg Registration
}

// BuildCommand validates the fields against their fixed slots. Oversized
// values are rejected, never truncated.
func BuildCommand(name, accountID, directory string, policy PopulationPolicy) (*Command, error) {
	fields := []struct {
		name  string
		value string
		slot  int
	}{
		{FieldName, name, NameSlot},
		{FieldAccountID, accountID, AccountIDSlot},
		{FieldDirectory, directory, DirectorySlot},
	}
	for _, f := range fields {
		if len(f.value)+1 > f.slot {
			return nil, &FieldTooLongError{Field: f.name, MaxLength: f.slot - 1, Length: len(f.value)}
		}
		if strings.IndexByte(f.value, 0) >= 0 {
			return nil, &InvalidFieldError{Field: f.name, Reason: "contains NUL byte"}
		}
	}
	if !policy.Valid() {
		return nil, &InvalidFieldError{Field: FieldPopulationPolicy, Reason: fmt.Sprintf("unknown tag %d", uint32(policy))}
	}
	return &Command{reg: Registration{
		Name:      name,
		AccountID: accountID,
		Directory: directory,
		Policy:    policy,
	}}, nil
}

// Registration returns the decoded field values.
func (c *Command) Registration() Registration {
	return c.reg
}

// MarshalBinary encodes the record as Name, AccountId, Directory,
// PopulationPolicy with zero padded string slots and a little-endian tag.
func (c *Command) MarshalBinary() ([]byte, error) {
	buf := make([]byte, CommandSize)
	copy(buf[nameOffset:accountIDOffset-1], c.reg.Name)
	copy(buf[accountIDOffset:directoryOffset-1], c.reg.AccountID)
	copy(buf[directoryOffset:policyOffset-1], c.reg.Directory)
	binary.LittleEndian.PutUint32(buf[policyOffset:], uint32(c.reg.Policy))
	return buf, nil
}

// UnmarshalCommand decodes a record produced by MarshalBinary.
func UnmarshalCommand(data []byte) (*Command, error) {
	if len(data) != CommandSize {
		return nil, fmt.Errorf("syncroot: command is %d bytes, want %d", len(data), CommandSize)
	}
	name, err := readSlot(data[nameOffset:accountIDOffset], FieldName)
	if err != nil {
		return nil, err
	}
	accountID, err := readSlot(data[accountIDOffset:directoryOffset], FieldAccountID)
	if err != nil {
		return nil, err
	}
	directory, err := readSlot(data[directoryOffset:policyOffset], FieldDirectory)
	if err != nil {
		return nil, err
	}
	policy := PopulationPolicy(binary.LittleEndian.Uint32(data[policyOffset:]))
	return BuildCommand(name, accountID, directory, policy)
}

// readSlot returns the string before the first NUL. A slot without a
// terminator is malformed.
func readSlot(slot []byte, field string) (string, error) {
	n := bytes.IndexByte(slot, 0)
	if n < 0 {
		return "", &InvalidFieldError{Field: field, Reason: "missing terminator"}
	}
	return string(slot[:n]), nil
}

// mustEncode returns the wire form of cmd. A size mismatch after validation
// means the layout itself is broken.
func mustEncode(cmd *Command) []byte {
	wire, err := cmd.MarshalBinary()
	if err != nil || len(wire) != CommandSize {
		panic(fmt.Sprintf("syncroot: encoded command is %d bytes, want %d (err=%v)", len(wire), CommandSize, err))
	}
	return wire
}
