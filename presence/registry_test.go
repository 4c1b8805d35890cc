package presence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"veilchat/contract"
	"veilchat/domain"
	"veilchat/domain/event"
)

type Sink struct {
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func conn(userID domain.UserID) contract.Connection {
	return contract.Connection{Handle: uuid.NewString(), UserID: userID, Sink: Sink{}}
}

func TestRegistry_Add_One_User_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := domain.UserID(1)

	// Given no one is connected
	req.False(registry.IsOnline(userID))
	req.Nil(registry.ConnectionsOf(userID))

	// When a connection registers
	c := conn(userID)
	registry.Add(userID, c)

	// Then the user is online with exactly that connection
	req.True(registry.IsOnline(userID))
	req.Len(registry.ConnectionsOf(userID), 1)
	req.Equal(c.Handle, registry.ConnectionsOf(userID)[0].Handle)
}

func TestRegistry_Add_Is_Idempotent_Per_Handle(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := domain.UserID(1)
	c := conn(userID)

	// When the same handle is added twice
	registry.Add(userID, c)
	registry.Add(userID, c)

	// Then it is present at most once
	req.Len(registry.ConnectionsOf(userID), 1)
}

func TestRegistry_Multi_Device(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := domain.UserID(7)

	// When the same user connects from two devices
	c1, c2 := conn(userID), conn(userID)
	registry.Add(userID, c1)
	registry.Add(userID, c2)

	// Then both connections map to the one user
	req.True(registry.IsOnline(userID))
	req.Len(registry.ConnectionsOf(userID), 2)
}

func TestRegistry_Remove_Last_Connection_Deletes_Entry(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := domain.UserID(1)
	c := conn(userID)
	registry.Add(userID, c)

	// When the only connection goes away
	registry.Remove(userID, c.Handle)

	// Then the user is offline and no empty set lingers
	req.False(registry.IsOnline(userID))
	req.Nil(registry.ConnectionsOf(userID))
}

func TestRegistry_Remove_Keeps_Other_Devices_Online(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := domain.UserID(1)
	c1, c2 := conn(userID), conn(userID)
	registry.Add(userID, c1)
	registry.Add(userID, c2)

	// When one of two devices disconnects
	registry.Remove(userID, c1.Handle)

	// Then the user stays online through the other one
	req.True(registry.IsOnline(userID))
	req.Len(registry.ConnectionsOf(userID), 1)
	req.Equal(c2.Handle, registry.ConnectionsOf(userID)[0].Handle)
}

func TestRegistry_Remove_Absent_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := domain.UserID(1)
	c := conn(userID)
	registry.Add(userID, c)

	// Removing an unknown handle or an unknown user changes nothing
	registry.Remove(userID, "no-such-handle")
	registry.Remove(domain.UserID(99), c.Handle)

	req.True(registry.IsOnline(userID))
	req.Len(registry.ConnectionsOf(userID), 1)
}

func TestRegistry_Online_Iff_Connections_NonEmpty(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	userID := domain.UserID(3)

	// The invariant holds at every step of the lifecycle
	req.Equal(len(registry.ConnectionsOf(userID)) > 0, registry.IsOnline(userID))

	c1, c2 := conn(userID), conn(userID)
	registry.Add(userID, c1)
	req.Equal(len(registry.ConnectionsOf(userID)) > 0, registry.IsOnline(userID))

	registry.Add(userID, c2)
	req.Equal(len(registry.ConnectionsOf(userID)) > 0, registry.IsOnline(userID))

	registry.Remove(userID, c1.Handle)
	req.Equal(len(registry.ConnectionsOf(userID)) > 0, registry.IsOnline(userID))

	registry.Remove(userID, c2.Handle)
	req.Equal(len(registry.ConnectionsOf(userID)) > 0, registry.IsOnline(userID))
	req.False(registry.IsOnline(userID))
}
