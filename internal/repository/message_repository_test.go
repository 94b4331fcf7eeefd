package repository

import (
	"context"
	"errors"
	"testing"

	"friend-chat/internal/apperr"
	"friend-chat/internal/model"
)

func TestListBetweenIsOrderedAndScopedToPair(t *testing.T) {
	conn := newTestDB(t)
	repo := NewMessageRepository(conn)
	ctx := context.Background()

	msgs := []*model.Message{
		{SenderID: 1, ReceiverID: 2, Text: "first"},
		{SenderID: 2, ReceiverID: 1, Text: "second"},
		{SenderID: 1, ReceiverID: 3, Text: "other pair"},
		{SenderID: 1, ReceiverID: 2, Text: "third"},
	}
	for _, m := range msgs {
		if err := repo.Create(ctx, m); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := repo.ListBetween(ctx, 2, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, m := range got {
		if m.Text != want[i] {
			t.Fatalf("message %d = %q, want %q", i, m.Text, want[i])
		}
	}
}

func TestDeleteMessage(t *testing.T) {
	repo := NewMessageRepository(newTestDB(t))
	ctx := context.Background()

	m := &model.Message{SenderID: 1, ReceiverID: 2, Text: "bye"}
	if err := repo.Create(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Delete(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, m.ID); !errors.Is(err, apperr.ErrMessageNotFound) {
		t.Fatalf("get after delete err = %v", err)
	}
	if err := repo.Delete(ctx, m.ID); !errors.Is(err, apperr.ErrMessageNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}
