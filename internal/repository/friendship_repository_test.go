package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"friend-chat/internal/apperr"
)

type pairFixture struct {
	users   *UserRepository
	friends *FriendshipRepository
	a, b    uint
}

func newPairFixture(t *testing.T) *pairFixture {
	t.Helper()
	conn := newTestDB(t)
	users := NewUserRepository(conn)
	a := createUser(t, users, "Alice", "alice@example.com")
	b := createUser(t, users, "Bob", "bob@example.com")
	return &pairFixture{users: users, friends: NewFriendshipRepository(conn), a: a.ID, b: b.ID}
}

func (f *pairFixture) status(t *testing.T, from, to uint) string {
	t.Helper()
	s, err := f.friends.Status(context.Background(), from, to)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	return s
}

func TestSendThenAcceptMakesSymmetricFriends(t *testing.T) {
	f := newPairFixture(t)
	ctx := context.Background()

	if _, err := f.friends.SendRequest(ctx, f.a, f.b); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := f.status(t, f.a, f.b); got != StatusRequestSent {
		t.Fatalf("a->b status = %s", got)
	}
	if got := f.status(t, f.b, f.a); got != StatusRequestReceived {
		t.Fatalf("b->a status = %s", got)
	}

	if _, err := f.friends.AcceptRequest(ctx, f.b, f.a); err != nil {
		t.Fatalf("accept: %v", err)
	}

	aFriends, _ := f.friends.FriendIDs(ctx, f.a)
	bFriends, _ := f.friends.FriendIDs(ctx, f.b)
	if len(aFriends) != 1 || aFriends[0] != f.b {
		t.Fatalf("a friends = %v", aFriends)
	}
	if len(bFriends) != 1 || bFriends[0] != f.a {
		t.Fatalf("b friends = %v", bFriends)
	}

	for _, id := range []uint{f.a, f.b} {
		sent, _ := f.friends.SentRequests(ctx, id)
		received, _ := f.friends.ReceivedRequests(ctx, id)
		if len(sent) != 0 || len(received) != 0 {
			t.Fatalf("user %d still has ledger entries: sent=%v received=%v", id, sent, received)
		}
	}
}

func TestSendRequestConflicts(t *testing.T) {
	f := newPairFixture(t)
	ctx := context.Background()

	if _, err := f.friends.SendRequest(ctx, f.a, f.a); !errors.Is(err, apperr.ErrSelfFriendship) {
		t.Fatalf("self request err = %v", err)
	}
	if _, err := f.friends.SendRequest(ctx, f.a, f.b); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.friends.SendRequest(ctx, f.a, f.b); !errors.Is(err, apperr.ErrRequestAlreadyExists) {
		t.Fatalf("duplicate send err = %v", err)
	}
	if _, err := f.friends.SendRequest(ctx, f.b, f.a); !errors.Is(err, apperr.ErrRequestAlreadyExists) {
		t.Fatalf("reverse send err = %v", err)
	}
	if _, err := f.friends.AcceptRequest(ctx, f.b, f.a); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.friends.SendRequest(ctx, f.a, f.b); !errors.Is(err, apperr.ErrAlreadyFriends) {
		t.Fatalf("send to friend err = %v", err)
	}
}

func TestConcurrentOppositeRequestsLeaveOnePending(t *testing.T) {
	f := newPairFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.friends.SendRequest(ctx, f.a, f.b)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = f.friends.SendRequest(ctx, f.b, f.a)
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperr.ErrRequestAlreadyExists):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want exactly 1 (errs=%v)", succeeded, errs)
	}

	sentA, _ := f.friends.SentRequests(ctx, f.a)
	sentB, _ := f.friends.SentRequests(ctx, f.b)
	if len(sentA)+len(sentB) != 1 {
		t.Fatalf("pending requests = %d, want 1", len(sentA)+len(sentB))
	}
}

func TestAcceptOnlyByRecipient(t *testing.T) {
	f := newPairFixture(t)
	ctx := context.Background()

	if _, err := f.friends.AcceptRequest(ctx, f.b, f.a); !errors.Is(err, apperr.ErrRequestNotFound) {
		t.Fatalf("accept without request err = %v", err)
	}
	if _, err := f.friends.SendRequest(ctx, f.a, f.b); err != nil {
		t.Fatalf("send: %v", err)
	}
	// the sender cannot accept its own request
	if _, err := f.friends.AcceptRequest(ctx, f.a, f.b); !errors.Is(err, apperr.ErrRequestNotFound) {
		t.Fatalf("sender accept err = %v", err)
	}
	if got := f.status(t, f.a, f.b); got != StatusRequestSent {
		t.Fatalf("status after bad accept = %s", got)
	}
}

func TestRejectTwiceFailsSecondTime(t *testing.T) {
	f := newPairFixture(t)
	ctx := context.Background()

	if _, err := f.friends.SendRequest(ctx, f.a, f.b); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := f.friends.RejectRequest(ctx, f.b, f.a); err != nil {
		t.Fatalf("first reject: %v", err)
	}
	if err := f.friends.RejectRequest(ctx, f.b, f.a); !errors.Is(err, apperr.ErrRequestNotFound) {
		t.Fatalf("second reject err = %v", err)
	}
	if got := f.status(t, f.a, f.b); got != StatusNone {
		t.Fatalf("status after reject = %s", got)
	}
	// rejected pair can start over
	if _, err := f.friends.SendRequest(ctx, f.b, f.a); err != nil {
		t.Fatalf("send after reject: %v", err)
	}
}

func TestRemoveFriendIsSymmetric(t *testing.T) {
	f := newPairFixture(t)
	ctx := context.Background()

	if err := f.friends.RemoveFriend(ctx, f.a, f.b); !errors.Is(err, apperr.ErrNotFriendsRemoval) {
		t.Fatalf("remove stranger err = %v", err)
	}
	if _, err := f.friends.SendRequest(ctx, f.a, f.b); err != nil {
		t.Fatalf("send: %v", err)
	}
	// a pending request is not a friendship
	if err := f.friends.RemoveFriend(ctx, f.a, f.b); !errors.Is(err, apperr.ErrNotFriendsRemoval) {
		t.Fatalf("remove pending err = %v", err)
	}
	if _, err := f.friends.AcceptRequest(ctx, f.b, f.a); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := f.friends.RemoveFriend(ctx, f.b, f.a); err != nil {
		t.Fatalf("remove: %v", err)
	}

	for _, pair := range [][2]uint{{f.a, f.b}, {f.b, f.a}} {
		ok, err := f.friends.AreFriends(ctx, pair[0], pair[1])
		if err != nil || ok {
			t.Fatalf("AreFriends(%d,%d) = %v, %v", pair[0], pair[1], ok, err)
		}
	}
}

func TestRelatedIDsCoversEveryState(t *testing.T) {
	conn := newTestDB(t)
	users := NewUserRepository(conn)
	friends := NewFriendshipRepository(conn)
	ctx := context.Background()

	me := createUser(t, users, "Me", "me@example.com")
	friend := createUser(t, users, "Friend", "friend@example.com")
	sentTo := createUser(t, users, "Sent", "sent@example.com")
	receivedFrom := createUser(t, users, "Received", "received@example.com")
	createUser(t, users, "Stranger", "stranger@example.com")

	if _, err := friends.SendRequest(ctx, me.ID, friend.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := friends.AcceptRequest(ctx, friend.ID, me.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := friends.SendRequest(ctx, me.ID, sentTo.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := friends.SendRequest(ctx, receivedFrom.ID, me.ID); err != nil {
		t.Fatal(err)
	}

	ids, err := friends.RelatedIDs(ctx, me.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := map[uint]bool{friend.ID: true, sentTo.ID: true, receivedFrom.ID: true}
	if len(ids) != len(want) {
		t.Fatalf("related = %v", ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Fatalf("unexpected related id %d", id)
		}
	}

	received, _ := friends.ReceivedRequests(ctx, me.ID)
	if len(received) != 1 || received[0].PeerID != receivedFrom.ID {
		t.Fatalf("received = %+v", received)
	}
	sent, _ := friends.SentRequests(ctx, me.ID)
	if len(sent) != 1 || sent[0].PeerID != sentTo.ID {
		t.Fatalf("sent = %+v", sent)
	}
}
