// Package idgen assigns identifiers to new applications and groups.
package idgen

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/google/uuid"

	id "prereg/pkg/domain"
)

// Generator produces identifiers that are never reused.
type Generator interface {
	NewPreRegistrationID() id.PreRegistrationID
	NewGroupID() id.GroupID
}

// UUID generates random (version 4) identifiers.
type UUID struct{}

func (UUID) NewPreRegistrationID() id.PreRegistrationID { return id.PreRegistrationID(uuid.New()) }
func (UUID) NewGroupID() id.GroupID                     { return id.GroupID(uuid.New()) }

// Sequential yields predictable identifiers for tests. Each call returns a
// new value; pre-registration and group ids share the counter so they never
// collide.
type Sequential struct {
	next atomic.Uint64
}

func (s *Sequential) NewPreRegistrationID() id.PreRegistrationID {
	return id.PreRegistrationID(s.uuid(0x0a))
}

func (s *Sequential) NewGroupID() id.GroupID {
	return id.GroupID(s.uuid(0x0b))
}

func (s *Sequential) uuid(kind byte) uuid.UUID {
	n := s.next.Add(1)
	var u uuid.UUID
	u[0] = kind
	binary.BigEndian.PutUint64(u[8:], n)
	u[6] = (u[6] & 0x0f) | 0x40 // version 4
	u[8] = (u[8] & 0x3f) | 0x80 // RFC 4122 variant
	return u
}
