package types

import (
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

var keyPattern = regexp.MustCompile(`^[a-z0-9]+(_[a-z0-9]+)*$`)

// UserID is the chat platform's user identifier
type UserID string

func (x UserID) String() string {
	return string(x)
}

// Validate checks if the UserID is valid
func (x UserID) Validate() error {
	if x == "" {
		return goerr.New("user ID cannot be empty")
	}
	return nil
}

// RoleID is the chat platform's role identifier
type RoleID string

func (x RoleID) String() string {
	return string(x)
}

// Validate checks if the RoleID is valid
func (x RoleID) Validate() error {
	if x == "" {
		return goerr.New("role ID cannot be empty")
	}
	return nil
}

// ChannelID is the chat platform's channel identifier
type ChannelID string

func (x ChannelID) String() string {
	return string(x)
}

// MessageID identifies a single message within a channel
type MessageID string

func (x MessageID) String() string {
	return string(x)
}

// EventID is a unique identifier for an audit event
type EventID string

func (x EventID) String() string {
	return string(x)
}

// RoleKey is a semantic role key (e.g. "pronoun_he", "region_north") used in
// role maps and selection menus
type RoleKey string

func (x RoleKey) String() string {
	return string(x)
}

// Validate checks if the RoleKey is valid
func (x RoleKey) Validate() error {
	if x == "" {
		return goerr.New("role key cannot be empty")
	}
	if !keyPattern.MatchString(string(x)) {
		return goerr.New("role key must be lowercase alphanumeric with underscores", goerr.V("key", x))
	}
	return nil
}
