package core

import (
	"slices"

	"github.com/dkeye/ucode/internal/domain"
)

// IdentityBindings maps an identity to the connections seen using it,
// oldest first. It is not safe for concurrent use; owners hold their own lock.
type IdentityBindings map[domain.Identity][]ConnID

// Bind moves cid to the most recent slot of id.
func (b IdentityBindings) Bind(id domain.Identity, cid ConnID) {
	conns := slices.DeleteFunc(b[id], func(c ConnID) bool { return c == cid })
	b[id] = append(conns, cid)
}

// Forget drops cid from every identity. An older connection of the same
// identity becomes the most recent one again.
func (b IdentityBindings) Forget(cid ConnID) {
	for id, conns := range b {
		conns = slices.DeleteFunc(conns, func(c ConnID) bool { return c == cid })
		if len(conns) == 0 {
			delete(b, id)
			continue
		}
		b[id] = conns
	}
}

// Latest returns the most recent connection of id.
func (b IdentityBindings) Latest(id domain.Identity) (ConnID, bool) {
	conns := b[id]
	if len(conns) == 0 {
		return "", false
	}
	return conns[len(conns)-1], true
}

// IdentityOf returns an identity cid was bound to.
func (b IdentityBindings) IdentityOf(cid ConnID) (domain.Identity, bool) {
	for id, conns := range b {
		if slices.Contains(conns, cid) {
			return id, true
		}
	}
	return "", false
}
