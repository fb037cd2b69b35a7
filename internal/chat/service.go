package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Vovarama1992/live-support-chat/internal/ai"
	"github.com/Vovarama1992/live-support-chat/internal/metrics"
)

// Options — texts and timing for the scripted replies.
type Options struct {
	WelcomeMessage      string
	AutoResponseMessage string
	AutoResponseDelay   time.Duration
}

type service struct {
	repo      Repo
	bcast     Broadcaster
	responder ai.Responder
	opts      Options

	// convs serializes everything that touches one conversation's
	// persisted state. The auto-response guard lives here too, so
	// check-and-set happens under the same lock as the append that
	// made the message "first".
	mu    sync.Mutex
	convs map[string]*convState

	ctx    context.Context
	cancel context.CancelFunc
	timers sync.WaitGroup
}

type convState struct {
	mu sync.Mutex

	// autoResponseDone flips at most once per conversation per process
	// lifetime. Not persisted: a restart inside the delay window may
	// duplicate or drop the auto-reply.
	autoResponseDone bool
}

func NewService(repo Repo, bcast Broadcaster, responder ai.Responder, opts Options) Service {
	if opts.WelcomeMessage == "" {
		opts.WelcomeMessage = "Welcome to our chat support! How can we help you today?"
	}
	if opts.AutoResponseMessage == "" {
		opts.AutoResponseMessage = "Thank you for reaching out! An agent will join you shortly. Please wait a moment."
	}
	if opts.AutoResponseDelay <= 0 {
		opts.AutoResponseDelay = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &service{
		repo:      repo,
		bcast:     bcast,
		responder: responder,
		opts:      opts,
		convs:     map[string]*convState{},
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *service) conv(userID string) *convState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.convs[userID]
	if !ok {
		st = &convState{}
		s.convs[userID] = st
	}
	return st
}

// VisitorConnect seeds a brand-new conversation with the welcome message,
// then returns the full history for the requesting connection.
func (s *service) VisitorConnect(ctx context.Context, userID string) ([]Message, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingID
	}

	st := s.conv(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	count, err := s.repo.CountMessages(ctx, userID)
	if err != nil {
		return nil, err
	}

	if count == 0 {
		welcome, err := s.repo.Append(ctx, &Message{
			UserID:         userID,
			Content:        s.opts.WelcomeMessage,
			IsAdmin:        true,
			IsAutoResponse: true,
		})
		if err != nil {
			// History below will simply come back empty.
			log.Error().Err(err).Str("user_id", userID).Msg("store welcome message")
		} else {
			metrics.MessagesStored.WithLabelValues("auto").Inc()
			s.bcast.BroadcastMessage(welcome)
		}
	}

	return s.repo.History(ctx, userID)
}

// History never seeds a welcome message; operators read conversations
// without side effects.
func (s *service) History(ctx context.Context, userID string) ([]Message, error) {
	return s.repo.History(ctx, userID)
}

func (s *service) VisitorMessage(ctx context.Context, userID, text string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyContent
	}

	st := s.conv(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	saved, err := s.repo.Append(ctx, &Message{
		UserID:  userID,
		Content: text,
	})
	if err != nil {
		return err
	}
	metrics.MessagesStored.WithLabelValues("visitor").Inc()
	s.bcast.BroadcastMessage(saved)

	// Authoritative recompute, never an increment.
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("recompute unread count")
	} else {
		s.bcast.BroadcastUnreadCount(userID, unread)
	}

	real, err := s.repo.CountRealMessages(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("auto-response trigger check")
		return nil
	}
	if real == 1 && !st.autoResponseDone {
		st.autoResponseDone = true
		s.scheduleAutoResponse(userID)
	}

	return nil
}

func (s *service) OperatorMessage(ctx context.Context, adminID int64, userID, text string) error {
	if adminID == 0 || strings.TrimSpace(userID) == "" {
		return ErrMissingID
	}

	st := s.conv(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	saved, err := s.repo.Append(ctx, &Message{
		UserID:  userID,
		AdminID: &adminID,
		Content: text,
		IsAdmin: true,
	})
	if err != nil {
		return err
	}
	metrics.MessagesStored.WithLabelValues("operator").Inc()
	s.bcast.BroadcastMessage(saved)
	return nil
}

// MarkRead mutates read state for the opposing role, then broadcasts the
// updated rows and, for an operator reader, the recomputed unread count.
// The count is derived from the store, not hardcoded to zero.
func (s *service) MarkRead(ctx context.Context, userID string, reader Role) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingID
	}

	st := s.conv(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	updated, err := s.repo.MarkRead(ctx, userID, reader)
	if err != nil {
		return err
	}
	log.Debug().Str("user_id", userID).Str("reader", string(reader)).Int64("rows", updated).Msg("messages marked read")

	messages, err := s.repo.History(ctx, userID)
	if err != nil {
		return err
	}
	s.bcast.BroadcastReadState(userID, messages)

	if reader == RoleOperator {
		unread, err := s.repo.UnreadCount(ctx, userID)
		if err != nil {
			return err
		}
		s.bcast.BroadcastUnreadCount(userID, unread)
	}
	return nil
}

func (s *service) Snapshot(ctx context.Context) (Snapshot, error) {
	users, err := s.repo.ActiveUsers(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		ActiveUsers:  users,
		UnreadCounts: make(map[string]int, len(users)),
	}
	for _, id := range users {
		n, err := s.repo.UnreadCount(ctx, id)
		if err != nil {
			return Snapshot{}, err
		}
		snap.UnreadCounts[id] = n
	}
	return snap, nil
}

func (s *service) Histories(ctx context.Context) (map[string][]Message, error) {
	users, err := s.repo.ActiveUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]Message, len(users))
	for _, id := range users {
		history, err := s.repo.History(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = history
	}
	return out, nil
}

// scheduleAutoResponse arms the delayed reply. Called with the conversation
// lock held; the wait itself happens outside it so the conversation does not
// stall for the whole delay.
func (s *service) scheduleAutoResponse(userID string) {
	s.timers.Add(1)
	go func() {
		defer s.timers.Done()

		select {
		case <-time.After(s.opts.AutoResponseDelay):
		case <-s.ctx.Done():
			return
		}
		s.fireAutoResponse(userID)
	}()
}

func (s *service) fireAutoResponse(userID string) {
	ctx := s.ctx

	text := s.opts.AutoResponseMessage
	if s.responder != nil {
		history, err := s.repo.History(ctx, userID)
		if err == nil {
			if reply, err := s.responder.Reply(ctx, toAIHistory(history)); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("responder failed, using scripted text")
			} else if reply != "" {
				text = reply
			}
		}
	}

	st := s.conv(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	saved, err := s.repo.Append(ctx, &Message{
		UserID:         userID,
		Content:        text,
		IsAdmin:        true,
		IsAutoResponse: true,
	})
	if err != nil {
		// Attempt is not retried and the guard stays set: at most one
		// auto-response attempt per conversation per process lifetime.
		log.Error().Err(err).Str("user_id", userID).Msg("store auto-response")
		return
	}
	metrics.MessagesStored.WithLabelValues("auto").Inc()
	s.bcast.BroadcastMessage(saved)
}

func toAIHistory(history []Message) []ai.Message {
	out := make([]ai.Message, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.IsAdmin {
			role = "assistant"
		}
		out = append(out, ai.Message{Role: role, Text: m.Content})
	}
	return out
}

// Close drops pending auto-response timers without flushing them.
func (s *service) Close() {
	s.cancel()
	s.timers.Wait()
}
