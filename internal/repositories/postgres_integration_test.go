package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "alice")

	dup := newTestUser("alice2")
	dup.Email = user.Email
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}
	dup = newTestUser("alice")
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate username, got %v", err)
	}

	for _, login := range []string{"alice", "alice@example.com"} {
		fetched, err := repo.FindByLogin(ctx, login)
		if err != nil {
			t.Fatalf("find by login %q: %v", login, err)
		}
		if fetched.ID != user.ID || fetched.Password != user.Password || fetched.RefreshTokenHash != "" {
			t.Fatalf("unexpected user fetched: %+v", fetched)
		}
	}

	if _, err := repo.FindByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	updatedAt := time.Now().UTC().Add(time.Minute).Truncate(time.Millisecond)
	updated, err := repo.UpdateDetails(ctx, user.ID, "Alice Liddell", "liddell@example.com", updatedAt)
	if err != nil {
		t.Fatalf("update details: %v", err)
	}
	if updated.FullName != "Alice Liddell" || updated.Email != "liddell@example.com" || !timesClose(updated.UpdatedAt, updatedAt, time.Millisecond) {
		t.Fatalf("expected updated fields to persist, got %+v", updated)
	}

	other := createTestUser(t, repo, "bob")
	if _, err := repo.UpdateDetails(ctx, other.ID, "Bob", "liddell@example.com", updatedAt); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for taken email, got %v", err)
	}
	if _, err := repo.UpdateDetails(ctx, uuid.NewString(), "Ghost", "ghost@example.com", updatedAt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}

	if err := repo.UpdatePassword(ctx, user.ID, "rotated-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	fetched, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if fetched.Password != "rotated-hash" {
		t.Fatalf("expected rotated hash, got %q", fetched.Password)
	}
}

func TestPostgresUserRepository_UpdateImage(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "carol")
	updatedAt := time.Now().UTC().Add(time.Minute).Truncate(time.Millisecond)

	updated, previous, err := repo.UpdateImage(ctx, user.ID, models.ImageAvatar, "users/carol/avatar-1.png", updatedAt)
	if err != nil {
		t.Fatalf("set avatar: %v", err)
	}
	if previous != "" || updated.Avatar != "users/carol/avatar-1.png" || updated.CoverImage != "" {
		t.Fatalf("unexpected first avatar update: previous=%q user=%+v", previous, updated)
	}
	if !timesClose(updated.UpdatedAt, updatedAt, time.Millisecond) {
		t.Fatalf("expected updated_at %v, got %v", updatedAt, updated.UpdatedAt)
	}

	updated, previous, err = repo.UpdateImage(ctx, user.ID, models.ImageAvatar, "users/carol/avatar-2.png", updatedAt)
	if err != nil {
		t.Fatalf("replace avatar: %v", err)
	}
	if previous != "users/carol/avatar-1.png" || updated.Avatar != "users/carol/avatar-2.png" {
		t.Fatalf("expected replaced avatar to be reported, previous=%q avatar=%q", previous, updated.Avatar)
	}

	updated, previous, err = repo.UpdateImage(ctx, user.ID, models.ImageCoverImage, "users/carol/cover-1.png", updatedAt)
	if err != nil {
		t.Fatalf("set cover image: %v", err)
	}
	if previous != "" || updated.CoverImage != "users/carol/cover-1.png" || updated.Avatar != "users/carol/avatar-2.png" {
		t.Fatalf("unexpected cover update: previous=%q user=%+v", previous, updated)
	}

	if _, _, err := repo.UpdateImage(ctx, uuid.NewString(), models.ImageAvatar, "x.png", updatedAt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
	if _, _, err := repo.UpdateImage(ctx, user.ID, models.ImageField("banner"), "x.png", updatedAt); err == nil {
		t.Fatal("expected error for unknown image field")
	}
}

func TestPostgresUserRepository_RefreshTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "carol")

	if err := repo.SwapRefreshToken(ctx, user.ID, "", "first"); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale swapping an unset token, got %v", err)
	}

	if err := repo.SaveRefreshToken(ctx, user.ID, "first"); err != nil {
		t.Fatalf("save refresh token: %v", err)
	}
	if err := repo.SwapRefreshToken(ctx, user.ID, "first", "second"); err != nil {
		t.Fatalf("swap refresh token: %v", err)
	}
	if err := repo.SwapRefreshToken(ctx, user.ID, "first", "third"); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale replaying old digest, got %v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := repo.SwapRefreshToken(ctx, user.ID, "second", fmt.Sprintf("racer-%d", i)); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one rotation to win, got %d", winners)
	}

	if err := repo.ClearRefreshToken(ctx, user.ID); err != nil {
		t.Fatalf("clear refresh token: %v", err)
	}
	fetched, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if fetched.RefreshTokenHash != "" {
		t.Fatalf("expected cleared token, got %q", fetched.RefreshTokenHash)
	}
	if err := repo.SaveRefreshToken(ctx, uuid.NewString(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestPostgresEdgeRepository_InsertDeleteAndChecks(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	viewer := createTestUser(t, users, "viewer")
	creator := createTestUser(t, users, "creator")
	video := createTestVideo(t, creator.ID, time.Now().UTC())

	repo := NewPostgresEdgeRepository(testPool)
	edge := models.Edge{SubjectID: viewer.ID, ObjectID: video.ID, Kind: models.EdgeVideoLike, CreatedAt: time.Now().UTC()}

	inserted, err := repo.Insert(ctx, edge)
	if err != nil || !inserted {
		t.Fatalf("expected first insert to write, got %v %v", inserted, err)
	}
	inserted, err = repo.Insert(ctx, edge)
	if err != nil || inserted {
		t.Fatalf("expected duplicate insert to be skipped, got %v %v", inserted, err)
	}
	if count, err := repo.Count(ctx, viewer.ID, video.ID, models.EdgeVideoLike); err != nil || count != 1 {
		t.Fatalf("expected one edge, got %d %v", count, err)
	}

	deleted, err := repo.Delete(ctx, viewer.ID, video.ID, models.EdgeVideoLike)
	if err != nil || !deleted {
		t.Fatalf("expected delete to remove the edge, got %v %v", deleted, err)
	}
	deleted, err = repo.Delete(ctx, viewer.ID, video.ID, models.EdgeVideoLike)
	if err != nil || deleted {
		t.Fatalf("expected second delete to find nothing, got %v %v", deleted, err)
	}

	self := models.Edge{SubjectID: viewer.ID, ObjectID: viewer.ID, Kind: models.EdgeSubscription, CreatedAt: time.Now().UTC()}
	if _, err := repo.Insert(ctx, self); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected self subscription to violate the check, got %v", err)
	}

	tests := []struct {
		kind   models.EdgeKind
		object string
		want   bool
	}{
		{models.EdgeVideoLike, video.ID, true},
		{models.EdgeVideoLike, uuid.NewString(), false},
		{models.EdgeSubscription, creator.ID, true},
		{models.EdgeSubscription, uuid.NewString(), false},
		{models.EdgeCommentLike, uuid.NewString(), false},
		{models.EdgePostLike, uuid.NewString(), true},
	}
	for _, tt := range tests {
		exists, err := repo.Exists(ctx, tt.kind, tt.object)
		if err != nil {
			t.Fatalf("exists %s: %v", tt.kind, err)
		}
		if exists != tt.want {
			t.Fatalf("exists %s %s: expected %v got %v", tt.kind, tt.object, tt.want, exists)
		}
	}
}

func TestPostgresEdgeRepository_ConcurrentInsertsKeepOneEdge(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	fan := createTestUser(t, users, "fan")
	channel := createTestUser(t, users, "channel")
	repo := NewPostgresEdgeRepository(testPool)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Insert(ctx, models.Edge{SubjectID: fan.ID, ObjectID: channel.ID, Kind: models.EdgeSubscription, CreatedAt: time.Now().UTC()})
		}()
	}
	wg.Wait()

	if count, err := repo.Count(ctx, fan.ID, channel.ID, models.EdgeSubscription); err != nil || count != 1 {
		t.Fatalf("expected exactly one subscription, got %d %v", count, err)
	}
}

func TestPostgresCommentRepository_RepliesAndOwnership(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	author := createTestUser(t, users, "author")
	replier := createTestUser(t, users, "replier")
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	video := createTestVideo(t, author.ID, base)
	otherVideo := createTestVideo(t, author.ID, base)

	repo := NewPostgresCommentRepository(testPool)
	top := newTestComment(video.ID, author.ID, "", base)
	if err := repo.Create(ctx, top); err != nil {
		t.Fatalf("create top-level comment: %v", err)
	}
	second := newTestComment(video.ID, replier.ID, "", base.Add(time.Minute))
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("create second comment: %v", err)
	}

	reply := newTestComment(video.ID, replier.ID, top.ID, base.Add(2*time.Minute))
	if err := repo.Create(ctx, reply); err != nil {
		t.Fatalf("create reply: %v", err)
	}

	nested := newTestComment(video.ID, author.ID, reply.ID, base.Add(3*time.Minute))
	if err := repo.Create(ctx, nested); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected reply to a reply to be rejected, got %v", err)
	}
	crossVideo := newTestComment(otherVideo.ID, author.ID, top.ID, base.Add(3*time.Minute))
	if err := repo.Create(ctx, crossVideo); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected reply across videos to be rejected, got %v", err)
	}
	missingVideo := newTestComment(uuid.NewString(), author.ID, "", base)
	if err := repo.Create(ctx, missingVideo); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected missing video to be reported, got %v", err)
	}

	edges := NewPostgresEdgeRepository(testPool)
	for _, liker := range []models.User{author, replier} {
		if _, err := edges.Insert(ctx, models.Edge{SubjectID: liker.ID, ObjectID: top.ID, Kind: models.EdgeCommentLike, CreatedAt: base}); err != nil {
			t.Fatalf("like comment: %v", err)
		}
	}

	listed, err := repo.ListTopLevel(ctx, video.ID, 10, 0)
	if err != nil {
		t.Fatalf("list top-level: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != top.ID || listed[1].ID != second.ID {
		t.Fatalf("unexpected top-level listing: %+v", listed)
	}
	if *listed[0].RepliesCount != 1 || *listed[0].LikeCount != 2 || *listed[1].RepliesCount != 0 {
		t.Fatalf("unexpected aggregates: replies=%d likes=%d", *listed[0].RepliesCount, *listed[0].LikeCount)
	}
	if listed[0].Owner.Username != "author" {
		t.Fatalf("expected owner join, got %+v", listed[0].Owner)
	}

	paged, err := repo.ListTopLevel(ctx, video.ID, 1, 1)
	if err != nil || len(paged) != 1 || paged[0].ID != second.ID {
		t.Fatalf("unexpected second page: %+v %v", paged, err)
	}

	replies, err := repo.ListReplies(ctx, video.ID, top.ID, 10, 0)
	if err != nil || len(replies) != 1 || replies[0].ID != reply.ID || replies[0].ParentCommentID != top.ID {
		t.Fatalf("unexpected replies: %+v %v", replies, err)
	}

	if _, err := repo.UpdateBody(ctx, top.ID, replier.ID, "hijack", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected non-owner edit to look like not found, got %v", err)
	}
	edited, err := repo.UpdateBody(ctx, top.ID, author.ID, "edited", time.Now().UTC())
	if err != nil || edited.Body != "edited" {
		t.Fatalf("owner edit failed: %+v %v", edited, err)
	}

	if err := repo.Delete(ctx, top.ID, replier.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected non-owner delete to look like not found, got %v", err)
	}
	if err := repo.Delete(ctx, top.ID, author.ID); err != nil {
		t.Fatalf("owner delete failed: %v", err)
	}

	orphans, err := repo.ListReplies(ctx, video.ID, top.ID, 10, 0)
	if err != nil || len(orphans) != 1 {
		t.Fatalf("expected reply to survive its parent, got %+v %v", orphans, err)
	}
}

func TestPostgresChannelRepository_ProfileAndListings(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	channel := createTestUser(t, users, "chan")
	first := createTestUser(t, users, "first")
	second := createTestUser(t, users, "second")
	edges := NewPostgresEdgeRepository(testPool)

	base := time.Now().UTC().Add(-time.Hour)
	subscribe := func(subject, object string, at time.Time) {
		t.Helper()
		if _, err := edges.Insert(ctx, models.Edge{SubjectID: subject, ObjectID: object, Kind: models.EdgeSubscription, CreatedAt: at}); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}
	subscribe(first.ID, channel.ID, base)
	subscribe(second.ID, channel.ID, base.Add(time.Minute))
	subscribe(channel.ID, first.ID, base.Add(2*time.Minute))

	repo := NewPostgresChannelRepository(testPool)
	profile, subscribed, err := repo.Profile(ctx, "chan", first.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if profile.SubscriberCount != 2 || profile.SubscribedToCount != 1 || !subscribed {
		t.Fatalf("unexpected profile: %+v subscribed=%v", profile, subscribed)
	}

	_, subscribed, err = repo.Profile(ctx, "chan", "")
	if err != nil || subscribed {
		t.Fatalf("anonymous viewer must not be subscribed: %v %v", subscribed, err)
	}
	if _, _, err := repo.Profile(ctx, "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	subscribers, err := repo.ListSubscribers(ctx, channel.ID)
	if err != nil || len(subscribers) != 2 || subscribers[0].Owner.ID != second.ID {
		t.Fatalf("unexpected subscribers: %+v %v", subscribers, err)
	}
	subscriptions, err := repo.ListSubscriptions(ctx, channel.ID)
	if err != nil || len(subscriptions) != 1 || subscriptions[0].Owner.ID != first.ID {
		t.Fatalf("unexpected subscriptions: %+v %v", subscriptions, err)
	}
}

func TestPostgresVideoRepository_ListLikedBy(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	viewer := createTestUser(t, users, "watcher")
	creator := createTestUser(t, users, "maker")
	base := time.Now().UTC().Add(-time.Hour)
	older := createTestVideo(t, creator.ID, base)
	newer := createTestVideo(t, creator.ID, base)
	createTestVideo(t, creator.ID, base)

	edges := NewPostgresEdgeRepository(testPool)
	for i, v := range []models.Video{older, newer} {
		if _, err := edges.Insert(ctx, models.Edge{SubjectID: viewer.ID, ObjectID: v.ID, Kind: models.EdgeVideoLike, CreatedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("like video: %v", err)
		}
	}

	liked, err := NewPostgresVideoRepository(testPool).ListLikedBy(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("list liked: %v", err)
	}
	if len(liked) != 2 || liked[0].ID != newer.ID || liked[1].ID != older.ID {
		t.Fatalf("unexpected liked videos: %+v", liked)
	}
	if liked[0].Owner.Username != "maker" {
		t.Fatalf("expected owner join, got %+v", liked[0].Owner)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	sqlDB := db.SQLDB(pool)
	defer sqlDB.Close()

	return goose.UpContext(ctx, sqlDB, filepath.Join("..", "..", "migrations"))
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE relationship_edges, comments, videos, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func newTestUser(username string) models.User {
	now := time.Now().UTC()
	return models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     username + "@example.com",
		FullName:  "Test " + username,
		Password:  "password-hash",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, username string) models.User {
	t.Helper()
	user := newTestUser(username)
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func createTestVideo(t *testing.T, ownerID string, createdAt time.Time) models.Video {
	t.Helper()
	video := models.Video{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       "video " + ownerID[:8],
		IsPublished: true,
		CreatedAt:   createdAt,
	}
	if err := NewPostgresVideoRepository(testPool).Create(context.Background(), video); err != nil {
		t.Fatalf("create test video: %v", err)
	}
	return video
}

func newTestComment(videoID, ownerID, parentID string, createdAt time.Time) models.Comment {
	return models.Comment{
		ID:              uuid.NewString(),
		VideoID:         videoID,
		OwnerID:         ownerID,
		Body:            "comment body",
		ParentCommentID: parentID,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func timesClose(a, b time.Time, tolerance time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
