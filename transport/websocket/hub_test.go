package websocket

import (
	"encoding/json"
	"testing"
)

func newTestClient() *Client {
	return &Client{send: make(chan []byte, 16)}
}

func recvEnvelope(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("Failed to decode envelope: %v", err)
		}
		return env
	default:
		t.Fatal("Expected a queued message, got none")
		return Envelope{}
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("Unexpected message: %s", data)
	default:
	}
}

func TestHub_Registry(t *testing.T) {
	t.Run("register and resolve", func(t *testing.T) {
		h := NewHub()
		c := newTestClient()
		h.Register("player-1", c)
		if h.Resolve("player-1") != c {
			t.Error("Resolve returned the wrong connection")
		}
		if h.Resolve("player-2") != nil {
			t.Error("Resolve returned a connection for an unknown player")
		}
	})

	t.Run("last connect wins", func(t *testing.T) {
		h := NewHub()
		old := newTestClient()
		fresh := newTestClient()
		h.Register("player-1", old)
		h.Register("player-1", fresh)

		if h.Resolve("player-1") != fresh {
			t.Error("Expected the newer connection to be authoritative")
		}

		// The superseded connection's close must not disturb the player.
		if _, ok := h.Unregister(old); ok {
			t.Error("Superseded connection still owned the player")
		}
		if h.Resolve("player-1") != fresh {
			t.Error("Unregistering the old connection removed the new one")
		}

		playerID, ok := h.Unregister(fresh)
		if !ok || playerID != "player-1" {
			t.Errorf("Expected player-1 from Unregister, got %q ok=%v", playerID, ok)
		}
		if h.Resolve("player-1") != nil {
			t.Error("Player still registered after Unregister")
		}
	})

	t.Run("unregister by player", func(t *testing.T) {
		h := NewHub()
		c := newTestClient()
		h.Register("player-1", c)
		h.UnregisterPlayer("player-1")
		if h.Resolve("player-1") != nil {
			t.Error("Player still registered")
		}
		if _, ok := h.Unregister(c); ok {
			t.Error("Connection still owned a player")
		}
	})
}

func TestHub_Rooms(t *testing.T) {
	t.Run("join and leave", func(t *testing.T) {
		h := NewHub()
		c := newTestClient()
		h.JoinRoom("session-1", c)
		if h.RoomSize("session-1") != 1 {
			t.Errorf("Expected room size 1, got %d", h.RoomSize("session-1"))
		}
		h.LeaveRoom("session-1", c)
		if h.RoomSize("session-1") != 0 {
			t.Error("Room not empty after leave")
		}
	})

	t.Run("one room per connection", func(t *testing.T) {
		h := NewHub()
		c := newTestClient()
		h.JoinRoom("session-1", c)
		h.JoinRoom("session-2", c)
		if h.RoomSize("session-1") != 0 {
			t.Error("Connection still in the old room")
		}
		if h.RoomSize("session-2") != 1 {
			t.Error("Connection missing from the new room")
		}
	})

	t.Run("close room", func(t *testing.T) {
		h := NewHub()
		a, b := newTestClient(), newTestClient()
		h.JoinRoom("session-1", a)
		h.JoinRoom("session-1", b)
		h.CloseRoom("session-1")
		if h.RoomSize("session-1") != 0 {
			t.Error("Room survived CloseRoom")
		}
		// Connections stay usable and can join another room.
		h.JoinRoom("session-2", a)
		if h.RoomSize("session-2") != 1 {
			t.Error("Connection unusable after CloseRoom")
		}
	})
}

func TestHub_Broadcast(t *testing.T) {
	t.Run("reaches the room", func(t *testing.T) {
		h := NewHub()
		a, b, outsider := newTestClient(), newTestClient(), newTestClient()
		h.JoinRoom("session-1", a)
		h.JoinRoom("session-1", b)
		h.JoinRoom("session-2", outsider)

		h.Broadcast("session-1", EventPlayerReady, ReadyBroadcast{PlayerID: "player-1", IsReady: true}, nil)

		for _, c := range []*Client{a, b} {
			env := recvEnvelope(t, c)
			if env.Event != EventPlayerReady {
				t.Errorf("Expected %s, got %s", EventPlayerReady, env.Event)
			}
		}
		assertNoMessage(t, outsider)
	})

	t.Run("excludes the sender", func(t *testing.T) {
		h := NewHub()
		sender, peer := newTestClient(), newTestClient()
		h.JoinRoom("session-1", sender)
		h.JoinRoom("session-1", peer)

		h.Broadcast("session-1", EventGameUpdate, GameUpdateBroadcast{GameData: json.RawMessage(`{}`)}, sender)

		assertNoMessage(t, sender)
		if env := recvEnvelope(t, peer); env.Event != EventGameUpdate {
			t.Errorf("Expected %s, got %s", EventGameUpdate, env.Event)
		}
	})

	t.Run("slow connection is dropped not waited on", func(t *testing.T) {
		h := NewHub()
		slow := &Client{send: make(chan []byte)} // no buffer, nobody reading
		healthy := newTestClient()
		h.Register("player-slow", slow)
		h.JoinRoom("session-1", slow)
		h.JoinRoom("session-1", healthy)

		h.Broadcast("session-1", EventPlayerReady, ReadyBroadcast{PlayerID: "player-1"}, nil)

		if env := recvEnvelope(t, healthy); env.Event != EventPlayerReady {
			t.Errorf("Expected %s, got %s", EventPlayerReady, env.Event)
		}
		if !slow.dropped {
			t.Error("Slow connection not dropped")
		}
		if h.RoomSize("session-1") != 1 {
			t.Error("Dropped connection still in the room")
		}
		if h.Resolve("player-slow") != nil {
			t.Error("Dropped connection still registered")
		}
		// A drop closes the send channel; subsequent sends must be no-ops.
		h.SendTo(slow, EventError, ErrorPayload{Message: "late"})
	})
}

func TestHub_SendTo(t *testing.T) {
	h := NewHub()
	c := newTestClient()
	h.SendTo(c, EventPong, PongPayload{})
	if env := recvEnvelope(t, c); env.Event != EventPong {
		t.Errorf("Expected %s, got %s", EventPong, env.Event)
	}
}
