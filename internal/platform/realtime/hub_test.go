package realtime

import (
	"sync"
	"testing"

	"questline/contexts/player-progression/reward-service/ports"
)

func TestSendToUserReachesOnlyThatUser(t *testing.T) {
	hub := NewHub(nil)

	alice := hub.Connect(ports.UserChannel("alice"))
	bob := hub.Connect(ports.UserChannel("bob"))
	defer hub.Disconnect(alice)
	defer hub.Disconnect(bob)

	if err := hub.SendToUser("alice", ports.LevelUpEvent{UserID: "alice", Level: 2}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case event := <-alice.C:
		if event.Kind() != ports.EventLevelUp {
			t.Fatalf("expected level_up, got %s", event.Kind())
		}
	default:
		t.Fatal("alice received nothing")
	}
	select {
	case event := <-bob.C:
		t.Fatalf("bob received %s", event.Kind())
	default:
	}
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	hub := NewHub(nil)

	first := hub.Connect(ports.LeaderboardChannel)
	second := hub.Connect(ports.LeaderboardChannel)
	defer hub.Disconnect(first)
	defer hub.Disconnect(second)

	event := ports.RankChangedEvent{UserID: "alice", OldRank: 12, NewRank: 3}
	if err := hub.Publish(ports.LeaderboardChannel, event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	for i, conn := range []*Connection{first, second} {
		select {
		case got := <-conn.C:
			if got.Kind() != ports.EventRankChanged {
				t.Fatalf("subscriber %d: expected rank_changed, got %s", i, got.Kind())
			}
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(nil)

	conn := hub.Connect("stream")
	defer hub.Disconnect(conn)

	// Overfill the buffer; publishes past capacity must return immediately.
	for i := 0; i < connectionBuffer+10; i++ {
		if err := hub.Publish("stream", ports.RewardGrantedEvent{UserID: "alice"}); err != nil {
			t.Fatalf("publish %d failed: %v", i, err)
		}
	}
	if got := len(conn.C); got != connectionBuffer {
		t.Fatalf("expected full buffer of %d, got %d", connectionBuffer, got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(nil)

	conn := hub.Connect("stream")
	hub.Unsubscribe(conn, "stream")

	if err := hub.Publish("stream", ports.RewardGrantedEvent{UserID: "alice"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	select {
	case event := <-conn.C:
		t.Fatalf("unsubscribed connection received %s", event.Kind())
	default:
	}
	hub.Disconnect(conn)
}

func TestDisconnectClosesReceiveSide(t *testing.T) {
	hub := NewHub(nil)

	conn := hub.Connect("stream")
	hub.Disconnect(conn)

	if _, open := <-conn.C; open {
		t.Fatal("expected closed channel after disconnect")
	}
	if err := hub.Publish("stream", ports.RewardGrantedEvent{UserID: "alice"}); err != nil {
		t.Fatalf("publish after disconnect failed: %v", err)
	}
}

func TestConcurrentPublishAndDisconnect(t *testing.T) {
	hub := NewHub(nil)

	// Publishing to a channel while one of its subscribers disconnects must
	// never send on the closed receive side.
	for i := 0; i < 200; i++ {
		conn := hub.Connect(ports.LeaderboardChannel)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = hub.Publish(ports.LeaderboardChannel, ports.RewardGrantedEvent{UserID: "alice"})
			}
		}()
		go func() {
			defer wg.Done()
			hub.Disconnect(conn)
		}()
		wg.Wait()
	}
}
