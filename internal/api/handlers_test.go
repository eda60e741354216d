// Reelpulse - Short-Video Engagement Aggregation and Ranking
// Copyright 2026 Reelpulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelpulse/reelpulse

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/reelpulse/reelpulse/internal/config"
	"github.com/reelpulse/reelpulse/internal/feed"
	"github.com/reelpulse/reelpulse/internal/ingest"
	"github.com/reelpulse/reelpulse/internal/models"
	"github.com/reelpulse/reelpulse/internal/ranking"
	"github.com/reelpulse/reelpulse/internal/session"
	"github.com/reelpulse/reelpulse/internal/stats"
	"github.com/reelpulse/reelpulse/internal/websocket"
)

// capturePublisher records published events instead of routing them.
type capturePublisher struct {
	mu     sync.Mutex
	events []*models.EngagementEvent
}

func (p *capturePublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, msg := range msgs {
		var event models.EngagementEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			return err
		}
		p.events = append(p.events, &event)
	}
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fakeUsers struct{ interests map[string][]string }

func (f *fakeUsers) InterestsOf(_ context.Context, userID string) ([]string, error) {
	return f.interests[userID], nil
}

type fakeGate struct{ hidden map[string]bool }

func (f *fakeGate) IsVisible(_ context.Context, videoID string) bool {
	return !f.hidden[videoID]
}

type fakeCreators struct{}

func (f *fakeCreators) Profile(_ context.Context, creatorID string) (*models.CreatorProfile, error) {
	return &models.CreatorProfile{UserID: creatorID, Username: "u-" + creatorID}, nil
}

func (f *fakeCreators) IsFollowing(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

type fakeLikes struct {
	mu    sync.Mutex
	liked map[string]bool
}

func (f *fakeLikes) Toggle(_ context.Context, userID, videoID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.liked == nil {
		f.liked = make(map[string]bool)
	}
	key := userID + "|" + videoID
	f.liked[key] = !f.liked[key]
	return f.liked[key], nil
}

// testAPI bundles the wired components behind one router.
type testAPI struct {
	router    http.Handler
	store     *stats.Store
	index     *ranking.Index
	refresher *ranking.Refresher
	publisher *capturePublisher
	gate      *fakeGate
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := stats.NewStore(stats.Options{ShardCount: 4}, nil)
	index := ranking.NewIndex()
	refresher := ranking.NewRefresher(store, index, ranking.RefresherConfig{
		ViralThreshold: 100,
		MaxBoardSize:   100,
	}, nil)

	publisher := &capturePublisher{}
	ingestor := ingest.NewIngestor(publisher, store, ingest.Config{MinViewSeconds: 3})

	gate := &fakeGate{hidden: make(map[string]bool)}
	assembler := feed.NewAssembler(index, store, &fakeUsers{}, gate, &fakeCreators{}, feed.Config{
		DefaultPageSize: 10,
		MaxPageSize:     50,
	})

	sessions := session.NewController(assembler, store, ingestor, &fakeLikes{}, nil, session.Config{
		PageSize:        5,
		MinViewSeconds:  3,
		SwipesPerSecond: 1000,
		SwipeBurst:      1000,
	})

	hub := websocket.NewHub()
	handler := NewHandler(ingestor, store, assembler, sessions, index, hub)

	return &testAPI{
		router:    NewRouter(handler, config.APIConfig{}),
		store:     store,
		index:     index,
		refresher: refresher,
		publisher: publisher,
		gate:      gate,
	}
}

// seedVideo registers a video directly against the store.
func (a *testAPI) seedVideo(t *testing.T, videoID, creatorID, category string, views int64) {
	t.Helper()
	if _, err := a.store.Create(&models.VideoRegistration{
		VideoID:         videoID,
		CreatorID:       creatorID,
		Category:        category,
		Title:           "video " + videoID,
		DurationSeconds: 30,
		PublishedAt:     time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Create(%s): %v", videoID, err)
	}
	for i := int64(0); i < views; i++ {
		if _, err := a.store.Apply(videoID, &models.StatsDelta{Views: 1, OccurredAt: time.Now().UTC()}); err != nil {
			t.Fatalf("Apply(%s): %v", videoID, err)
		}
	}
}

func (a *testAPI) refresh() {
	a.refresher.RefreshNow(time.Now().UTC())
}

// do issues a request against the router and decodes the envelope.
func (a *testAPI) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	env := &envelope{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), env); err != nil {
			t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
		}
	}
	return rec, env
}

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) decode(t *testing.T, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(e.Data, into); err != nil {
		t.Fatalf("decode data: %v (data %q)", err, string(e.Data))
	}
}

func TestIngestEvent_Statuses(t *testing.T) {
	api := newTestAPI(t)
	api.seedVideo(t, "v1", "creator", "comedy", 0)

	tests := []struct {
		name       string
		event      map[string]interface{}
		wantStatus int
	}{
		{
			name: "accepted",
			event: map[string]interface{}{
				"user_id": "u1", "video_id": "v1", "event_type": "like",
				"visible": true, "net_new_like": true,
			},
			wantStatus: http.StatusAccepted,
		},
		{
			name: "missing user rejected",
			event: map[string]interface{}{
				"video_id": "v1", "event_type": "like", "visible": true,
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invisible video forbidden",
			event: map[string]interface{}{
				"user_id": "u1", "video_id": "v1", "event_type": "like",
				"visible": false,
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name: "unknown video",
			event: map[string]interface{}{
				"user_id": "u1", "video_id": "nope", "event_type": "like",
				"visible": true,
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := api.do(t, http.MethodPost, "/api/v1/engagement/event", tt.event)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (error %q)", rec.Code, tt.wantStatus, env.Error)
			}
			if tt.wantStatus == http.StatusAccepted {
				var data map[string]string
				env.decode(t, &data)
				if data["event_id"] == "" {
					t.Error("accepted response missing server-assigned event_id")
				}
			}
		})
	}

	if got := api.publisher.count(); got != 1 {
		t.Errorf("published events = %d, want 1", got)
	}
}

func TestRegisterVideo(t *testing.T) {
	api := newTestAPI(t)

	reg := map[string]interface{}{
		"video_id": "v1", "creator_id": "c1", "category": "comedy",
		"duration_seconds": 30,
	}

	rec, env := api.do(t, http.MethodPost, "/api/v1/videos", reg)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (error %q)", rec.Code, env.Error)
	}
	var created models.VideoStats
	env.decode(t, &created)
	if created.VideoID != "v1" || created.Views != 0 {
		t.Errorf("created record = %+v", created)
	}

	rec, _ = api.do(t, http.MethodPost, "/api/v1/videos", reg)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}

	rec, _ = api.do(t, http.MethodPost, "/api/v1/videos", map[string]interface{}{
		"video_id": "v2", "creator_id": "c1", "category": "comedy",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero-duration status = %d, want 400", rec.Code)
	}
}

func TestVideoStats(t *testing.T) {
	api := newTestAPI(t)
	api.seedVideo(t, "v1", "c1", "comedy", 7)

	rec, env := api.do(t, http.MethodGet, "/api/v1/videos/v1/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got models.VideoStats
	env.decode(t, &got)
	if got.Views != 7 {
		t.Errorf("Views = %d, want 7", got.Views)
	}

	rec, _ = api.do(t, http.MethodGet, "/api/v1/videos/nope/stats", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}
}

func TestDeleteVideo_Cascades(t *testing.T) {
	api := newTestAPI(t)
	api.seedVideo(t, "v1", "c1", "comedy", 5)
	api.seedVideo(t, "v2", "c1", "comedy", 3)
	api.refresh()

	if len(api.index.Trending(0, 10)) != 2 {
		t.Fatal("expected both videos on the trending board")
	}

	rec, _ := api.do(t, http.MethodDelete, "/api/v1/videos/v1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	for _, entry := range api.index.Trending(0, 10) {
		if entry.VideoID == "v1" {
			t.Error("deleted video still on the trending board")
		}
	}
	if _, err := api.store.Read("v1"); err == nil {
		t.Error("deleted video still readable")
	}

	rec, _ = api.do(t, http.MethodDelete, "/api/v1/videos/v1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("repeat delete status = %d, want 404", rec.Code)
	}
}

func TestUpdateVideoCategory(t *testing.T) {
	api := newTestAPI(t)
	api.seedVideo(t, "v1", "c1", "comedy", 5)
	api.refresh()

	rec, env := api.do(t, http.MethodPut, "/api/v1/videos/v1/category",
		map[string]string{"category": "howto"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, env.Error)
	}
	var updated models.VideoStats
	env.decode(t, &updated)
	if updated.Category != "howto" {
		t.Errorf("Category = %s, want howto", updated.Category)
	}

	// The boards move without waiting for the next refresh.
	if got := api.index.Category("comedy", 0, 10); len(got) != 0 {
		t.Errorf("comedy board still has %d entries", len(got))
	}
	if got := api.index.Category("howto", 0, 10); len(got) != 1 || got[0].VideoID != "v1" {
		t.Errorf("howto board = %+v", got)
	}

	snap, err := api.store.Read("v1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if snap.Category != "howto" {
		t.Errorf("stored Category = %s, want howto", snap.Category)
	}

	rec, _ = api.do(t, http.MethodPut, "/api/v1/videos/v1/category", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty category status = %d, want 400", rec.Code)
	}

	rec, _ = api.do(t, http.MethodPut, "/api/v1/videos/nope/category",
		map[string]string{"category": "howto"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown video status = %d, want 404", rec.Code)
	}
}

func TestRankingListings(t *testing.T) {
	api := newTestAPI(t)
	api.seedVideo(t, "v1", "c1", "comedy", 10)
	api.seedVideo(t, "v2", "c2", "howto", 20)
	api.refresh()

	rec, env := api.do(t, http.MethodGet, "/api/v1/rankings/trending?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("trending status = %d", rec.Code)
	}
	var page models.FeedPage
	env.decode(t, &page)
	if len(page.Videos) != 2 {
		t.Fatalf("trending videos = %d, want 2", len(page.Videos))
	}
	if page.Videos[0].VideoID != "v2" {
		t.Errorf("top trending = %s, want v2", page.Videos[0].VideoID)
	}

	rec, env = api.do(t, http.MethodGet, "/api/v1/rankings/category/comedy?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("category status = %d", rec.Code)
	}
	env.decode(t, &page)
	if len(page.Videos) != 1 || page.Videos[0].VideoID != "v1" {
		t.Errorf("comedy board = %+v", page.Videos)
	}

	rec, env = api.do(t, http.MethodGet, "/api/v1/rankings/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", rec.Code)
	}
	var status struct {
		Epoch        int64 `json:"epoch"`
		TrendingSize int   `json:"trending_size"`
	}
	env.decode(t, &status)
	if status.Epoch != 1 || status.TrendingSize != 2 {
		t.Errorf("status = %+v", status)
	}
}

func TestSearchVideos(t *testing.T) {
	api := newTestAPI(t)
	api.seedVideo(t, "v1", "c1", "comedy", 10)
	api.seedVideo(t, "v2", "c2", "howto", 20)

	rec, env := api.do(t, http.MethodGet, "/api/v1/rankings/search?q=video&sort=views&limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	var page models.FeedPage
	env.decode(t, &page)
	if len(page.Videos) != 2 || page.Videos[0].VideoID != "v2" {
		t.Errorf("search results = %+v", page.Videos)
	}

	rec, _ = api.do(t, http.MethodGet, "/api/v1/rankings/search?sort=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad sort status = %d, want 400", rec.Code)
	}

	rec, _ = api.do(t, http.MethodGet, "/api/v1/rankings/search?duration=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad duration status = %d, want 400", rec.Code)
	}
}

func TestPersonalizedFeed(t *testing.T) {
	api := newTestAPI(t)
	api.seedVideo(t, "v1", "c1", "comedy", 10)
	api.refresh()

	rec, _ := api.do(t, http.MethodGet, "/api/v1/feed", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing user status = %d, want 400", rec.Code)
	}

	rec, env := api.do(t, http.MethodGet, "/api/v1/feed?user_id=u1&limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("feed status = %d", rec.Code)
	}
	var page models.FeedPage
	env.decode(t, &page)
	if len(page.Videos) != 1 || page.Videos[0].VideoID != "v1" {
		t.Errorf("feed = %+v", page.Videos)
	}
}

func TestSessionLifecycle(t *testing.T) {
	api := newTestAPI(t)
	api.seedVideo(t, "v1", "c1", "comedy", 10)
	api.seedVideo(t, "v2", "c2", "comedy", 5)
	api.refresh()

	rec, env := api.do(t, http.MethodPost, "/api/v1/sessions", map[string]interface{}{
		"user_id": "viewer",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open status = %d (error %q)", rec.Code, env.Error)
	}
	var state session.State
	env.decode(t, &state)
	if state.SessionID == "" || state.Current == nil {
		t.Fatalf("state = %+v", state)
	}

	swipe := map[string]interface{}{
		"seq": 1, "direction": "left", "watch_time_seconds": 8.0,
	}
	rec, env = api.do(t, http.MethodPost, "/api/v1/sessions/"+state.SessionID+"/swipe", swipe)
	if rec.Code != http.StatusOK {
		t.Fatalf("swipe status = %d (error %q)", rec.Code, env.Error)
	}
	var outcome session.SwipeOutcome
	env.decode(t, &outcome)
	if outcome.Position != 1 {
		t.Errorf("Position = %d, want 1", outcome.Position)
	}

	// Same seq replayed is a duplicate, not an error.
	rec, env = api.do(t, http.MethodPost, "/api/v1/sessions/"+state.SessionID+"/swipe", swipe)
	if rec.Code != http.StatusOK {
		t.Fatalf("replay status = %d", rec.Code)
	}
	env.decode(t, &outcome)
	if !outcome.Duplicate {
		t.Error("replayed gesture not reported as duplicate")
	}

	rec, _ = api.do(t, http.MethodDelete, "/api/v1/sessions/"+state.SessionID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("end status = %d", rec.Code)
	}

	rec, _ = api.do(t, http.MethodPost, "/api/v1/sessions/"+state.SessionID+"/swipe", map[string]interface{}{
		"seq": 3, "direction": "left",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("swipe after end status = %d, want 404", rec.Code)
	}
}

func TestOpenSession_ResumeUnknown(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(t, http.MethodPost, "/api/v1/sessions", map[string]interface{}{
		"session_id": "gone",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("resume status = %d, want 404", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	api.seedVideo(t, "v1", "c1", "comedy", 0)

	rec, env := api.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var health struct {
		Status string `json:"status"`
		Videos int    `json:"videos"`
	}
	env.decode(t, &health)
	if health.Status != "ok" || health.Videos != 1 {
		t.Errorf("health = %+v", health)
	}
}
