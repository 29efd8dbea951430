package blocking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recon/internal/ids"
	"github.com/roach88/recon/internal/testutil"
)

var (
	u1 = testutil.Aci(1)
	u2 = testutil.Aci(2)
	p1 = testutil.Phone(1)
	p2 = testutil.Phone(2)
)

func TestState_AddRemoveAreIdempotent(t *testing.T) {
	s := NewState()
	assert.False(t, s.IsDirty())

	assert.True(t, s.AddAci(u1))
	assert.False(t, s.AddAci(u1))
	assert.True(t, s.AddPhone(p1))
	assert.False(t, s.AddPhone(p1))
	assert.True(t, s.AddGroup([]byte{1}, GroupRecord{Title: "g"}))
	assert.False(t, s.AddGroup([]byte{1}, GroupRecord{Title: "other"}))
	assert.True(t, s.IsDirty())

	rec, ok := s.Group([]byte{1})
	require.True(t, ok)
	assert.Equal(t, "g", rec.Title, "re-adding does not replace the record")

	assert.True(t, s.RemoveAci(u1))
	assert.False(t, s.RemoveAci(u1))
	assert.True(t, s.RemovePhone(p1))
	assert.False(t, s.RemovePhone(p1))
	assert.True(t, s.RemoveGroup([]byte{1}))
	assert.False(t, s.RemoveGroup([]byte{1}))
	assert.Equal(t, uint64(0), s.ChangeToken(), "token only moves on persist")
}

func TestState_NoopDoesNotDirty(t *testing.T) {
	s := NewState()
	assert.False(t, s.RemoveAci(u1))
	assert.False(t, s.RemovePhone(p1))
	assert.False(t, s.RemoveGroup([]byte{9}))
	assert.False(t, s.IsDirty())
}

func TestState_Replace(t *testing.T) {
	s := NewState()
	s.AddAci(u1)
	s.AddGroup([]byte{1}, GroupRecord{Title: "kept"})
	s.isDirty = false

	assert.False(t, s.Replace([]ids.Aci{u1}, nil, [][]byte{{1}}))
	assert.False(t, s.IsDirty())

	assert.True(t, s.Replace([]ids.Aci{u2}, []ids.E164{p2}, [][]byte{{1}, {2}}))
	assert.True(t, s.IsDirty())
	assert.Equal(t, []ids.Aci{u2}, s.Acis())
	assert.Equal(t, []ids.E164{p2}, s.Phones())
	assert.Equal(t, [][]byte{{1}, {2}}, s.GroupIDs())

	rec, ok := s.Group([]byte{1})
	require.True(t, ok)
	assert.Equal(t, "kept", rec.Title)
}

func TestState_ListsAreSorted(t *testing.T) {
	s := NewState()
	s.AddAci(u2)
	s.AddAci(u1)
	s.AddPhone(p2)
	s.AddPhone(p1)
	s.AddGroup([]byte{0xff}, GroupRecord{})
	s.AddGroup([]byte{0x01}, GroupRecord{})

	assert.Equal(t, []ids.Aci{u1, u2}, s.Acis())
	assert.Equal(t, []ids.E164{p1, p2}, s.Phones())
	assert.Equal(t, [][]byte{{0x01}, {0xff}}, s.GroupIDs())
}

func TestState_CloneIsIndependent(t *testing.T) {
	s := NewState()
	s.AddAci(u1)
	c := s.clone()
	c.AddAci(u2)

	assert.False(t, s.IsAciBlocked(u2))
	assert.True(t, c.IsAciBlocked(u1))
}
