// Package room implements the in-memory coordination unit grouping
// users under a Code: membership, avatar allocation, per-user
// outbound queues, broadcast, and offer/answer signaling relay.
//
// Concurrency: a Room owns a single mutex guarding its membership map.
// pick_emoji and member insertion happen inside the same critical
// section, so two concurrent Connect calls on one room can never draw
// the same avatar id. Unexported helpers that expect the caller to
// already hold the lock are named xxxLocked so the locking discipline
// is visible at every call site.
package room

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"

	"github.com/concerto-app/theatre/internal/catalog"
	"github.com/concerto-app/theatre/internal/logging"
	"github.com/concerto-app/theatre/internal/metrics"
	"github.com/concerto-app/theatre/internal/model"
)

// ErrNotEnoughResources is returned by Connect when the room's avatar
// pool is exhausted.
var ErrNotEnoughResources = errors.New("room: no avatar ids available")

// ErrUnknownUser is returned by operations referencing a user id that
// is not currently a member of the room.
var ErrUnknownUser = errors.New("room: unknown user")

type member struct {
	user  model.User
	queue *outboundQueue
}

// Room is the membership, avatar-allocation, and signaling-relay unit
// for one Code. Create one with New; it has no exported constructor
// fields because every field needs the mutex's protection.
type Room struct {
	code    model.Code
	catalog *catalog.Catalog
	onEmpty func()

	mu      sync.Mutex
	members map[string]*member
}

// New creates an empty Room for code. onEmpty, if non-nil, is invoked
// in its own goroutine the moment the room's last member disconnects,
// so the caller's own lock can never deadlock against it.
func New(code model.Code, cat *catalog.Catalog, onEmpty func()) *Room {
	return &Room{
		code:    code,
		catalog: cat,
		onEmpty: onEmpty,
		members: make(map[string]*member),
	}
}

// Code returns the room's immutable public identifier.
func (r *Room) Code() model.Code {
	return r.code
}

// Connect creates a new user with a fresh id and a uniquely-held
// avatar, registers it, and broadcasts a Connected envelope to every
// existing member. The snapshot of existing members taken for
// otherUsers happens strictly before the newcomer is inserted, so it
// never contains the newcomer, and the broadcast happens strictly
// after insertion, so the newcomer can never observe its own
// Connected envelope and every peer observes it exactly once.
func (r *Room) Connect() (user model.User, otherUsers []model.User, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	emoji, err := r.pickEmojiLocked()
	if err != nil {
		return model.User{}, nil, err
	}

	otherUsers = make([]model.User, 0, len(r.members))
	for _, m := range r.members {
		otherUsers = append(otherUsers, m.user)
	}

	user = model.User{ID: model.NewUserID(), Avatar: model.Avatar{Emoji: emoji}}
	r.members[user.ID] = &member{user: user, queue: newOutboundQueue()}

	r.broadcastExceptLocked(user.ID, model.Connected{User: user})

	metrics.RoomMembers.WithLabelValues(string(r.code.Canonical())).Set(float64(len(r.members)))
	logging.Info(context.Background(), "user connected",
		zap.String("room_code", string(r.code.Canonical())),
		zap.String("user_id", user.ID))

	return user, otherUsers, nil
}

// Disconnect removes userID from the room, if present, drops any
// undelivered messages queued for it, and broadcasts a Disconnected
// envelope to the remaining members. A no-op for an id that is not
// currently a member; userID is never re-bound to anything but the
// caller-supplied id.
func (r *Room) Disconnect(userID string) {
	r.mu.Lock()

	m, ok := r.members[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, userID)
	m.queue.mu.Lock()
	m.queue.items = nil
	m.queue.mu.Unlock()
	m.queue.close()

	r.broadcastExceptLocked(userID, model.Disconnected{User: userID})

	empty := len(r.members) == 0
	if empty {
		metrics.RoomMembers.DeleteLabelValues(string(r.code.Canonical()))
	} else {
		metrics.RoomMembers.WithLabelValues(string(r.code.Canonical())).Set(float64(len(r.members)))
	}
	r.mu.Unlock()

	logging.Info(context.Background(), "user disconnected",
		zap.String("room_code", string(r.code.Canonical())),
		zap.String("user_id", userID))

	if empty && r.onEmpty != nil {
		go r.onEmpty()
	}
}

// MakeOffer relays an offer SDP from fromID to toID. Both must be
// current members.
func (r *Room) MakeOffer(fromID, toID string, session model.Session) error {
	return r.relay(fromID, toID, func() model.Envelope {
		return model.Offer{FromUser: fromID, ToUser: toID, Session: session}
	})
}

// MakeAnswer relays an answer SDP from fromID to toID. Both must be
// current members.
func (r *Room) MakeAnswer(fromID, toID string, session model.Session) error {
	return r.relay(fromID, toID, func() model.Envelope {
		return model.Answer{FromUser: fromID, ToUser: toID, Session: session}
	})
}

func (r *Room) relay(fromID, toID string, build func() model.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[fromID]; !ok {
		return ErrUnknownUser
	}
	to, ok := r.members[toID]
	if !ok {
		return ErrUnknownUser
	}
	to.queue.enqueue(build())
	return nil
}

// Close broadcasts the end-of-stream signal on every member's queue
// so every in-flight Fetch terminates. It does not remove members or
// fire the empty callback — teardown of membership state is Disconnect's job.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		m.queue.close()
	}
}

// IsEmpty reports whether the room currently has no members.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) == 0
}

// Fetch produces a lazy, finite, non-restartable channel of envelopes
// queued for userID. The channel closes when the user's queue reaches
// end-of-stream or ctx is canceled, whichever comes first. Fails if
// userID is not a current member.
func (r *Room) Fetch(ctx context.Context, userID string) (<-chan model.Envelope, error) {
	r.mu.Lock()
	m, ok := r.members[userID]
	r.mu.Unlock()
	if !ok {
		return nil, ErrUnknownUser
	}

	out := make(chan model.Envelope)
	go func() {
		defer close(out)
		for {
			env, ok := m.queue.next(ctx)
			if !ok {
				return
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// broadcastExceptLocked enqueues env on every member's queue except
// exceptID. Caller must hold r.mu.
func (r *Room) broadcastExceptLocked(exceptID string, env model.Envelope) {
	for id, m := range r.members {
		if id == exceptID {
			continue
		}
		m.queue.enqueue(env)
	}
}

// pickEmojiLocked draws a uniformly random unused avatar id from the
// catalog. Caller must hold r.mu — the read of currently-held ids and
// the eventual insertion of the new member must be atomic with
// respect to other Connect calls on this room, or two concurrent
// callers could race to the same free id.
func (r *Room) pickEmojiLocked() (model.Emoji, error) {
	used := make(map[string]struct{}, len(r.members))
	for _, m := range r.members {
		used[m.user.Avatar.Emoji.ID] = struct{}{}
	}

	ids := r.catalog.IDs()
	free := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, taken := used[id]; !taken {
			free = append(free, id)
		}
	}
	if len(free) == 0 {
		return model.Emoji{}, ErrNotEnoughResources
	}

	picked := free[rand.IntN(len(free))]
	return model.Emoji{ID: picked}, nil
}
