// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

// Package session manages swipe sessions: one cursor per session over a
// lazily materialized feed sequence, gesture handling, and grace-period
// reaping with durable cursor handoff so a quick reconnect resumes
// where the user left off.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/reelpulse/reelpulse/internal/logging"
	"github.com/reelpulse/reelpulse/internal/metrics"
	"github.com/reelpulse/reelpulse/internal/models"
	"github.com/reelpulse/reelpulse/internal/stats"
)

// EventSink accepts engagement events produced by gestures. Implemented
// by the ingest service.
type EventSink interface {
	Submit(ctx context.Context, event *models.EngagementEvent) error
}

// LikeLedger owns the user-video like relation. Toggle flips the edge
// and reports the resulting state.
type LikeLedger interface {
	Toggle(ctx context.Context, userID, videoID string) (liked bool, err error)
}

// FeedProvider materializes feed pages and creator channels. Implemented
// by the feed assembler.
type FeedProvider interface {
	Personalized(ctx context.Context, userID string, exclude []string, limit, skip int) (models.FeedPage, error)
	Channel(ctx context.Context, userID, creatorID string) (*models.CreatorChannel, error)
}

// StatsReader resolves a video's snapshot, used to surface the current
// card and the creator behind a swipe-down.
type StatsReader interface {
	Read(videoID string) (*models.VideoStats, error)
}

// CursorStore persists cursors across the grace-period handoff.
type CursorStore interface {
	Save(cursor *models.FeedCursor) error
	Load(sessionID string) (*models.FeedCursor, error)
	Delete(sessionID string) error
}

// Config configures the controller.
type Config struct {
	// GracePeriod is how long an idle session survives in memory before
	// the reaper hands its cursor to the durable store.
	GracePeriod time.Duration

	// ExcludeSetMax bounds the per-session seen set (FIFO eviction).
	ExcludeSetMax int

	// PageSize is how many videos each feed extension materializes.
	PageSize int

	// MinViewSeconds is the watch-time floor below which a left swipe
	// does not count as a view.
	MinViewSeconds float64

	// SwipesPerSecond and SwipeBurst bound the per-session swipe rate.
	SwipesPerSecond float64
	SwipeBurst      int
}

// session pairs a cursor with its rate limiter. The mutex serializes
// gestures within one session; different sessions never contend.
type session struct {
	mu      sync.Mutex
	cursor  *models.FeedCursor
	limiter *rate.Limiter
}

// Controller is the swipe session manager.
type Controller struct {
	mu       sync.RWMutex
	sessions map[string]*session

	feeds   FeedProvider
	reader  StatsReader
	sink    EventSink
	likes   LikeLedger
	cursors CursorStore
	cfg     Config
}

// NewController creates a controller. cursors may be nil to disable the
// durable handoff.
func NewController(feeds FeedProvider, reader StatsReader, sink EventSink,
	likes LikeLedger, cursors CursorStore, cfg Config) *Controller {

	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5 * time.Minute
	}
	if cfg.ExcludeSetMax < 1 {
		cfg.ExcludeSetMax = 500
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = 10
	}
	if cfg.SwipesPerSecond <= 0 {
		cfg.SwipesPerSecond = 5
	}
	if cfg.SwipeBurst < 1 {
		cfg.SwipeBurst = 10
	}

	return &Controller{
		sessions: make(map[string]*session),
		feeds:    feeds,
		reader:   reader,
		sink:     sink,
		likes:    likes,
		cursors:  cursors,
		cfg:      cfg,
	}
}

// State describes a session to the client.
type State struct {
	SessionID string               `json:"session_id"`
	Position  int                  `json:"position"`
	Current   *models.VideoSummary `json:"current,omitempty"`
	Remaining int                  `json:"remaining"`
}

// SwipeRequest is one gesture.
type SwipeRequest struct {
	// Seq is the client's monotonically increasing gesture counter.
	// Gestures with seq at or below the last applied one are ignored.
	Seq uint64 `json:"seq" validate:"required"`

	Direction models.SwipeDirection `json:"direction" validate:"required"`

	// WatchTimeSeconds is the accumulated watch time on the current
	// video, consumed by left swipes.
	WatchTimeSeconds float64 `json:"watch_time_seconds" validate:"gte=0"`

	Country string `json:"country,omitempty"`
	Device  string `json:"device,omitempty"`
}

// SwipeOutcome reports the effect of one gesture.
type SwipeOutcome struct {
	State

	// Duplicate is true when the gesture was dropped as out-of-order.
	Duplicate bool `json:"duplicate,omitempty"`

	// Liked reports the like state after a right swipe.
	Liked *bool `json:"liked,omitempty"`

	// Channel carries the creator channel after a down swipe.
	Channel *models.CreatorChannel `json:"channel,omitempty"`
}

// Start opens a new session for a user and materializes the first feed
// page into its sequence.
func (c *Controller) Start(ctx context.Context, userID string) (*State, error) {
	cursor := &models.FeedCursor{
		SessionID:    uuid.New().String(),
		UserID:       userID,
		LastActiveAt: time.Now().UTC(),
	}

	sess := &session{
		cursor:  cursor,
		limiter: rate.NewLimiter(rate.Limit(c.cfg.SwipesPerSecond), c.cfg.SwipeBurst),
	}

	if err := c.extend(ctx, cursor); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.sessions[cursor.SessionID] = sess
	c.mu.Unlock()
	metrics.SessionsActive.Inc()

	c.saveCursor(cursor)

	logging.Ctx(ctx).Info().
		Str("session_id", cursor.SessionID).
		Str("user_id", userID).
		Int("materialized", len(cursor.Sequence)).
		Msg("Swipe session started")

	return c.stateOf(cursor), nil
}

// Resume reattaches to a session, from memory when it is still live or
// from the durable cursor store within its TTL.
func (c *Controller) Resume(ctx context.Context, sessionID string) (*State, error) {
	c.mu.RLock()
	sess, ok := c.sessions[sessionID]
	c.mu.RUnlock()
	if ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		sess.cursor.LastActiveAt = time.Now().UTC()
		return c.stateOf(sess.cursor), nil
	}

	if c.cursors == nil {
		return nil, ErrSessionNotFound
	}
	cursor, err := c.cursors.Load(sessionID)
	if err != nil {
		return nil, err
	}

	cursor.LastActiveAt = time.Now().UTC()
	sess = &session{
		cursor:  cursor,
		limiter: rate.NewLimiter(rate.Limit(c.cfg.SwipesPerSecond), c.cfg.SwipeBurst),
	}

	c.mu.Lock()
	c.sessions[sessionID] = sess
	c.mu.Unlock()
	metrics.SessionsActive.Inc()

	logging.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Msg("Swipe session resumed from durable cursor")

	return c.stateOf(cursor), nil
}

// Swipe applies one gesture to a session.
func (c *Controller) Swipe(ctx context.Context, sessionID string, req *SwipeRequest) (*SwipeOutcome, error) {
	if !req.Direction.Valid() {
		return nil, ErrInvalidDirection
	}

	c.mu.RLock()
	sess, ok := c.sessions[sessionID]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	if !sess.limiter.Allow() {
		return nil, ErrRateLimited
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	cursor := sess.cursor

	if req.Seq <= cursor.LastSeq {
		return &SwipeOutcome{State: *c.stateOf(cursor), Duplicate: true}, nil
	}
	cursor.LastSeq = req.Seq
	cursor.LastActiveAt = time.Now().UTC()

	outcome := &SwipeOutcome{}
	var err error
	switch req.Direction {
	case models.SwipeRight:
		err = c.swipeRight(ctx, cursor, outcome)
	case models.SwipeLeft:
		err = c.swipeLeft(ctx, cursor, req)
	case models.SwipeUp:
		if cursor.Position > 0 {
			cursor.Position--
		}
	case models.SwipeDown:
		err = c.swipeDown(ctx, cursor, outcome)
	}
	if err != nil {
		return nil, err
	}

	metrics.RecordSwipe(string(req.Direction))
	c.saveCursor(cursor)

	outcome.State = *c.stateOf(cursor)
	return outcome, nil
}

// End closes a session and discards its cursor everywhere.
func (c *Controller) End(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	_, ok := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	c.mu.Unlock()

	if ok {
		metrics.SessionsActive.Dec()
	}

	if c.cursors != nil {
		if err := c.cursors.Delete(sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return err
		}
	}
	if !ok {
		return ErrSessionNotFound
	}

	logging.Ctx(ctx).Info().Str("session_id", sessionID).Msg("Swipe session ended")
	return nil
}

// swipeRight toggles the like on the current video and emits the
// matching engagement event.
func (c *Controller) swipeRight(ctx context.Context, cursor *models.FeedCursor, outcome *SwipeOutcome) error {
	cur := cursor.Current()
	if cur == "" {
		return ErrNoCurrentVideo
	}

	liked, err := c.likes.Toggle(ctx, cursor.UserID, cur)
	if err != nil {
		return err
	}
	outcome.Liked = &liked

	eventType := models.EventUnlike
	if liked {
		eventType = models.EventLike
	}
	event := models.NewEngagementEvent(cursor.UserID, cur, eventType)
	event.Visible = true
	event.NetNewLike = liked
	return c.sink.Submit(ctx, event)
}

// swipeLeft advances the cursor. The departing video joins the exclude
// set, and its watch time becomes a view when it clears the floor.
func (c *Controller) swipeLeft(ctx context.Context, cursor *models.FeedCursor, req *SwipeRequest) error {
	cur := cursor.Current()
	if cur != "" {
		if req.WatchTimeSeconds >= c.cfg.MinViewSeconds {
			event := models.NewEngagementEvent(cursor.UserID, cur, models.EventView)
			event.WatchTimeSeconds = req.WatchTimeSeconds
			event.Visible = true
			event.Country = req.Country
			event.Device = req.Device
			if err := c.sink.Submit(ctx, event); err != nil {
				return err
			}
		}
		cursor.AddExcluded(cur, c.cfg.ExcludeSetMax)
	}

	if cursor.Position < len(cursor.Sequence) {
		cursor.Position++
	}

	// Materialize the next page when the cursor runs off the end.
	if cursor.Position >= len(cursor.Sequence) {
		if err := c.extend(ctx, cursor); err != nil {
			logging.CtxErr(ctx, err).
				Str("session_id", cursor.SessionID).
				Msg("Feed extension failed, cursor parked at end")
		}
	}
	return nil
}

// swipeDown resolves the creator channel for the current video. The
// channel lists the creator's other videos; the one on screen is
// filtered out.
func (c *Controller) swipeDown(ctx context.Context, cursor *models.FeedCursor, outcome *SwipeOutcome) error {
	cur := cursor.Current()
	if cur == "" {
		return ErrNoCurrentVideo
	}

	snap, err := c.reader.Read(cur)
	if err != nil {
		return err
	}

	channel, err := c.feeds.Channel(ctx, cursor.UserID, snap.CreatorID)
	if err != nil {
		return err
	}

	others := make([]models.VideoSummary, 0, len(channel.Videos))
	for _, v := range channel.Videos {
		if v.VideoID == cur {
			continue
		}
		others = append(others, v)
	}
	channel.Videos = others

	outcome.Channel = channel
	return nil
}

// extend appends the next feed page to the cursor's sequence, skipping
// IDs already materialized.
func (c *Controller) extend(ctx context.Context, cursor *models.FeedCursor) error {
	known := make(map[string]struct{}, len(cursor.Sequence))
	for _, id := range cursor.Sequence {
		known[id] = struct{}{}
	}

	page, err := c.feeds.Personalized(ctx, cursor.UserID, cursor.ExcludeSet, c.cfg.PageSize, 0)
	if err != nil {
		return err
	}
	for _, v := range page.Videos {
		if _, dup := known[v.VideoID]; dup {
			continue
		}
		cursor.Sequence = append(cursor.Sequence, v.VideoID)
	}
	return nil
}

// stateOf projects a cursor into the client-facing state.
func (c *Controller) stateOf(cursor *models.FeedCursor) *State {
	state := &State{
		SessionID: cursor.SessionID,
		Position:  cursor.Position,
		Remaining: len(cursor.Sequence) - cursor.Position,
	}
	if cur := cursor.Current(); cur != "" {
		if snap, err := c.reader.Read(cur); err == nil {
			state.Current = &models.VideoSummary{
				VideoID:       snap.VideoID,
				CreatorID:     snap.CreatorID,
				Title:         snap.Title,
				Category:      snap.Category,
				CreatedAt:     snap.CreatedAt,
				Views:         snap.Views,
				Likes:         snap.Likes,
				Comments:      snap.Comments,
				Shares:        snap.Shares,
				TrendingScore: snap.TrendingScore,
				ViralScore:    snap.ViralScore,
			}
		} else if !errors.Is(err, stats.ErrNotFound) {
			logging.Err(err).Str("video_id", cur).Msg("Current video lookup failed")
		}
	}
	return state
}

// saveCursor persists a cursor best-effort. The in-memory session is
// authoritative while live; the durable copy only matters for the
// reconnect handoff.
func (c *Controller) saveCursor(cursor *models.FeedCursor) {
	if c.cursors == nil {
		return
	}
	if err := c.cursors.Save(cursor); err != nil {
		logging.Err(err).Str("session_id", cursor.SessionID).Msg("Cursor persistence failed")
	}
}

// reap removes sessions idle past the grace period. The durable cursor
// outlives the in-memory session by the store TTL, so a late reconnect
// within that window still resumes.
func (c *Controller) reap(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	reaped := 0
	for id, sess := range c.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.cursor.LastActiveAt)
		sess.mu.Unlock()

		if idle > c.cfg.GracePeriod {
			delete(c.sessions, id)
			reaped++
			metrics.SessionsActive.Dec()
			metrics.SessionsReaped.Inc()
		}
	}
	return reaped
}

// Live returns the number of in-memory sessions.
func (c *Controller) Live() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}
