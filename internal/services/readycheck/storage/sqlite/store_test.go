package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/musterhq/muster/internal/platform/id"
	"github.com/musterhq/muster/internal/services/readycheck/domain"
	"github.com/musterhq/muster/internal/services/readycheck/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "readycheck.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%q) returned error: %v", path, err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() returned error: %v", err)
		}
	})
	return store
}

func seedUser(t *testing.T, store *Store, name string, status domain.UserStatus) domain.User {
	t.Helper()

	user, err := domain.NewUser(domain.NewUserInput{Name: name}, time.Now, id.NewID)
	if err != nil {
		t.Fatalf("NewUser(%q) returned error: %v", name, err)
	}
	user.Status = status
	if err := store.PutUser(context.Background(), user); err != nil {
		t.Fatalf("PutUser(%q) returned error: %v", name, err)
	}
	return user
}

func seedTask(t *testing.T, store *Store, owner domain.User, groupSize int) domain.Task {
	t.Helper()

	task, err := domain.NewTask(domain.NewTaskInput{
		OwnerUserID: owner.ID,
		Title:       "raid night",
		GroupSize:   groupSize,
	}, time.Now, id.NewID)
	if err != nil {
		t.Fatalf("NewTask returned error: %v", err)
	}
	if err := store.PutTask(context.Background(), task); err != nil {
		t.Fatalf("PutTask returned error: %v", err)
	}
	return task
}

func seedParticipant(t *testing.T, store *Store, task domain.Task, user domain.User, response domain.Response) domain.Participant {
	t.Helper()

	ctx := context.Background()
	participant, err := domain.NewParticipant(domain.NewParticipantInput{
		TaskID: task.ID,
		UserID: user.ID,
	}, time.Now, id.NewID)
	if err != nil {
		t.Fatalf("NewParticipant returned error: %v", err)
	}
	if err := store.PutParticipant(ctx, participant); err != nil {
		t.Fatalf("PutParticipant returned error: %v", err)
	}
	if response != domain.ResponseNone {
		if err := store.SetParticipantResponse(ctx, task.ID, user.ID, response, time.Now()); err != nil {
			t.Fatalf("SetParticipantResponse returned error: %v", err)
		}
		participant.Response = response
	}
	return participant
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open("  "); err == nil {
		t.Fatal("Open with blank path should fail")
	}
}

func TestOpenIsRerunnable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "readycheck.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("first Open returned error: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second Open returned error: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestPutUserUpserts(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, store, "mira", domain.UserIdle)

	user.Name = "mira v2"
	user.Status = domain.UserAway
	if err := store.PutUser(ctx, user); err != nil {
		t.Fatalf("PutUser upsert returned error: %v", err)
	}

	got, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if got.Name != "mira v2" {
		t.Errorf("Name = %q, want %q", got.Name, "mira v2")
	}
	if got.Status != domain.UserAway {
		t.Errorf("Status = %q, want %q", got.Status, domain.UserAway)
	}
}

func TestGetUserNotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if _, err := store.GetUser(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetUser(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSetUserStatus(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, store, "mira", domain.UserIdle)
	task := seedTask(t, store, user, 1)

	if err := store.SetUserStatus(ctx, user.ID, domain.UserFlow, task.ID, time.Now()); err != nil {
		t.Fatalf("SetUserStatus(flow) returned error: %v", err)
	}
	got, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if got.Status != domain.UserFlow || got.CurrentTaskID != task.ID {
		t.Fatalf("got status %q task %q, want flow on %q", got.Status, got.CurrentTaskID, task.ID)
	}

	if err := store.SetUserStatus(ctx, user.ID, domain.UserIdle, "", time.Now()); err != nil {
		t.Fatalf("SetUserStatus(idle) returned error: %v", err)
	}
	got, err = store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser returned error: %v", err)
	}
	if got.CurrentTaskID != "" {
		t.Errorf("CurrentTaskID = %q, want empty after leaving flow", got.CurrentTaskID)
	}

	if err := store.SetUserStatus(ctx, user.ID, domain.UserIdle, task.ID, time.Now()); !errors.Is(err, domain.ErrCurrentTaskRequiresFlow) {
		t.Errorf("idle with current task error = %v, want ErrCurrentTaskRequiresFlow", err)
	}
	if err := store.SetUserStatus(ctx, "missing", domain.UserAway, "", time.Now()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SetUserStatus(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFriendPairIsSymmetric(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, store, "alice", domain.UserIdle)
	bob := seedUser(t, store, "bob", domain.UserIdle)

	if err := store.PutFriendPair(ctx, alice.ID, bob.ID, time.Now()); err != nil {
		t.Fatalf("PutFriendPair returned error: %v", err)
	}
	if err := store.PutFriendPair(ctx, bob.ID, alice.ID, time.Now()); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("reversed PutFriendPair error = %v, want ErrAlreadyExists", err)
	}

	for _, userID := range []string{alice.ID, bob.ID} {
		friends, err := store.ListFriends(ctx, userID, storage.Keyset{Limit: 10})
		if err != nil {
			t.Fatalf("ListFriends(%q) returned error: %v", userID, err)
		}
		if len(friends) != 1 {
			t.Fatalf("ListFriends(%q) returned %d edges, want 1", userID, len(friends))
		}
	}

	if err := store.DeleteFriendPair(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("DeleteFriendPair returned error: %v", err)
	}
	friends, err := store.ListFriends(ctx, alice.ID, storage.Keyset{Limit: 10})
	if err != nil {
		t.Fatalf("ListFriends after delete returned error: %v", err)
	}
	if len(friends) != 0 {
		t.Fatalf("ListFriends after delete returned %d edges, want 0", len(friends))
	}
	if err := store.DeleteFriendPair(ctx, alice.ID, bob.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second DeleteFriendPair error = %v, want ErrNotFound", err)
	}
}

func TestListFriendsKeyset(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, store, "owner", domain.UserIdle)

	var friendIDs []string
	for _, name := range []string{"f1", "f2", "f3", "f4"} {
		friend := seedUser(t, store, name, domain.UserIdle)
		if err := store.PutFriendPair(ctx, owner.ID, friend.ID, time.Now()); err != nil {
			t.Fatalf("PutFriendPair returned error: %v", err)
		}
		friendIDs = append(friendIDs, friend.ID)
	}

	forward, err := store.ListFriends(ctx, owner.ID, storage.Keyset{AnchorID: friendIDs[1], Limit: 2})
	if err != nil {
		t.Fatalf("forward ListFriends returned error: %v", err)
	}
	if len(forward) != 2 || forward[0].FriendID != friendIDs[1] || forward[1].FriendID != friendIDs[2] {
		t.Fatalf("forward window = %+v, want anchor-inclusive [f2 f3]", forward)
	}

	backward, err := store.ListFriends(ctx, owner.ID, storage.Keyset{AnchorID: friendIDs[2], Backward: true, Limit: 2})
	if err != nil {
		t.Fatalf("backward ListFriends returned error: %v", err)
	}
	if len(backward) != 2 || backward[0].FriendID != friendIDs[2] || backward[1].FriendID != friendIDs[1] {
		t.Fatalf("backward window = %+v, want anchor-inclusive [f3 f2]", backward)
	}

	missing, err := store.ListFriends(ctx, owner.ID, storage.Keyset{AnchorID: "missing", Limit: 2})
	if err != nil {
		t.Fatalf("ListFriends with missing anchor returned error: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing anchor window = %+v, want empty", missing)
	}
}

func TestFriendsOfUsersBatched(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	alice := seedUser(t, store, "alice", domain.UserIdle)
	bob := seedUser(t, store, "bob", domain.UserIdle)
	carol := seedUser(t, store, "carol", domain.UserIdle)
	if err := store.PutFriendPair(ctx, alice.ID, bob.ID, time.Now()); err != nil {
		t.Fatalf("PutFriendPair returned error: %v", err)
	}
	if err := store.PutFriendPair(ctx, bob.ID, carol.ID, time.Now()); err != nil {
		t.Fatalf("PutFriendPair returned error: %v", err)
	}

	pairs, err := store.FriendsOfUsers(ctx, []string{alice.ID, bob.ID})
	if err != nil {
		t.Fatalf("FriendsOfUsers returned error: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("FriendsOfUsers returned %d pairs, want 3", len(pairs))
	}

	none, err := store.FriendsOfUsers(ctx, nil)
	if err != nil {
		t.Fatalf("FriendsOfUsers(nil) returned error: %v", err)
	}
	if none != nil {
		t.Fatalf("FriendsOfUsers(nil) = %+v, want empty", none)
	}
}

func TestPutTaskRejectsDuplicateID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	owner := seedUser(t, store, "owner", domain.UserIdle)
	task := seedTask(t, store, owner, 2)

	if err := store.PutTask(context.Background(), task); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate PutTask error = %v, want ErrAlreadyExists", err)
	}
}

func TestGetRecalculableTasksFiltersByStatus(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, store, "owner", domain.UserIdle)
	waiting := seedTask(t, store, owner, 1)
	started := seedTask(t, store, owner, 1)

	if _, err := store.TransitionTaskStatus(ctx, started.ID, domain.TaskReady, time.Now()); err != nil {
		t.Fatalf("TransitionTaskStatus returned error: %v", err)
	}
	if err := store.StartTask(ctx, started.ID, time.Now()); err != nil {
		t.Fatalf("StartTask returned error: %v", err)
	}

	tasks, err := store.GetRecalculableTasks(ctx, []string{waiting.ID, started.ID, "missing"})
	if err != nil {
		t.Fatalf("GetRecalculableTasks returned error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != waiting.ID {
		t.Fatalf("GetRecalculableTasks = %+v, want only the waiting task", tasks)
	}
}

func TestReadyCountsRequireYesAndIdle(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, store, "owner", domain.UserIdle)
	task := seedTask(t, store, owner, 2)

	yesIdle := seedUser(t, store, "yes-idle", domain.UserIdle)
	yesAway := seedUser(t, store, "yes-away", domain.UserAway)
	noIdle := seedUser(t, store, "no-idle", domain.UserIdle)
	unanswered := seedUser(t, store, "silent", domain.UserIdle)

	seedParticipant(t, store, task, yesIdle, domain.ResponseYes)
	seedParticipant(t, store, task, yesAway, domain.ResponseYes)
	seedParticipant(t, store, task, noIdle, domain.ResponseNo)
	seedParticipant(t, store, task, unanswered, domain.ResponseNone)

	counts, err := store.ReadyCounts(ctx, []string{task.ID})
	if err != nil {
		t.Fatalf("ReadyCounts returned error: %v", err)
	}
	if counts[task.ID] != 1 {
		t.Fatalf("ReadyCounts = %d, want 1 (yes answers from non-idle users must not count)", counts[task.ID])
	}
}

func TestTransitionTaskStatusIsConditional(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, store, "owner", domain.UserIdle)
	task := seedTask(t, store, owner, 1)

	changed, err := store.TransitionTaskStatus(ctx, task.ID, domain.TaskReady, time.Now())
	if err != nil {
		t.Fatalf("TransitionTaskStatus returned error: %v", err)
	}
	if !changed {
		t.Fatal("waiting -> ready should report a change")
	}

	changed, err = store.TransitionTaskStatus(ctx, task.ID, domain.TaskReady, time.Now())
	if err != nil {
		t.Fatalf("repeat TransitionTaskStatus returned error: %v", err)
	}
	if changed {
		t.Fatal("ready -> ready should be a no-op")
	}

	if err := store.StartTask(ctx, task.ID, time.Now()); err != nil {
		t.Fatalf("StartTask returned error: %v", err)
	}
	changed, err = store.TransitionTaskStatus(ctx, task.ID, domain.TaskWaiting, time.Now())
	if err != nil {
		t.Fatalf("TransitionTaskStatus on started task returned error: %v", err)
	}
	if changed {
		t.Fatal("in_progress tasks must be outside the readiness calculator's reach")
	}

	if _, err := store.TransitionTaskStatus(ctx, task.ID, domain.TaskDone, time.Now()); err == nil {
		t.Fatal("transition to a non-readiness status should fail")
	}
}

func TestStartAndCancelLifecycle(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, store, "owner", domain.UserIdle)

	waiting := seedTask(t, store, owner, 1)
	if err := store.StartTask(ctx, waiting.ID, time.Now()); !errors.Is(err, storage.ErrInvalidTransition) {
		t.Fatalf("StartTask on waiting task error = %v, want ErrInvalidTransition", err)
	}
	if err := store.StartTask(ctx, "missing", time.Now()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("StartTask(missing) error = %v, want ErrNotFound", err)
	}

	if _, err := store.TransitionTaskStatus(ctx, waiting.ID, domain.TaskReady, time.Now()); err != nil {
		t.Fatalf("TransitionTaskStatus returned error: %v", err)
	}
	if err := store.StartTask(ctx, waiting.ID, time.Now()); err != nil {
		t.Fatalf("StartTask on ready task returned error: %v", err)
	}

	if err := store.CancelTask(ctx, waiting.ID, time.Now()); err != nil {
		t.Fatalf("CancelTask on in_progress task returned error: %v", err)
	}
	if err := store.CancelTask(ctx, waiting.ID, time.Now()); !errors.Is(err, storage.ErrInvalidTransition) {
		t.Fatalf("CancelTask on canceled task error = %v, want ErrInvalidTransition", err)
	}

	got, err := store.GetTask(ctx, waiting.ID)
	if err != nil {
		t.Fatalf("GetTask returned error: %v", err)
	}
	if got.Status != domain.TaskCanceled {
		t.Fatalf("Status = %q, want canceled", got.Status)
	}
}

func TestListTasksByOwnerKeyset(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, store, "owner", domain.UserIdle)
	other := seedUser(t, store, "other", domain.UserIdle)

	var taskIDs []string
	for i := 0; i < 4; i++ {
		taskIDs = append(taskIDs, seedTask(t, store, owner, 1).ID)
	}
	seedTask(t, store, other, 1)

	all, err := store.ListTasksByOwner(ctx, owner.ID, storage.Keyset{Limit: 10})
	if err != nil {
		t.Fatalf("ListTasksByOwner returned error: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("ListTasksByOwner returned %d tasks, want 4", len(all))
	}

	window, err := store.ListTasksByOwner(ctx, owner.ID, storage.Keyset{AnchorID: taskIDs[1], Limit: 2})
	if err != nil {
		t.Fatalf("anchored ListTasksByOwner returned error: %v", err)
	}
	if len(window) != 2 || window[0].ID != taskIDs[1] || window[1].ID != taskIDs[2] {
		t.Fatalf("anchored window ids = %v, want [%s %s]", taskIDsOf(window), taskIDs[1], taskIDs[2])
	}

	reversed, err := store.ListTasksByOwner(ctx, owner.ID, storage.Keyset{AnchorID: taskIDs[2], Backward: true, Limit: 3})
	if err != nil {
		t.Fatalf("backward ListTasksByOwner returned error: %v", err)
	}
	if len(reversed) != 3 || reversed[0].ID != taskIDs[2] || reversed[2].ID != taskIDs[0] {
		t.Fatalf("backward window ids = %v, want [%s %s %s]", taskIDsOf(reversed), taskIDs[2], taskIDs[1], taskIDs[0])
	}
}

func TestListTasksByParticipant(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, store, "owner", domain.UserIdle)
	member := seedUser(t, store, "member", domain.UserIdle)

	joined := seedTask(t, store, owner, 2)
	seedTask(t, store, owner, 2)
	seedParticipant(t, store, joined, member, domain.ResponseNone)

	tasks, err := store.ListTasksByParticipant(ctx, member.ID, storage.Keyset{Limit: 10})
	if err != nil {
		t.Fatalf("ListTasksByParticipant returned error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != joined.ID {
		t.Fatalf("ListTasksByParticipant = %v, want only the joined task", taskIDsOf(tasks))
	}
}

func taskIDsOf(tasks []domain.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}

func TestPutParticipantRejectsDuplicatePair(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	owner := seedUser(t, store, "owner", domain.UserIdle)
	member := seedUser(t, store, "member", domain.UserIdle)
	task := seedTask(t, store, owner, 2)
	seedParticipant(t, store, task, member, domain.ResponseNone)

	duplicate, err := domain.NewParticipant(domain.NewParticipantInput{
		TaskID: task.ID,
		UserID: member.ID,
	}, time.Now, id.NewID)
	if err != nil {
		t.Fatalf("NewParticipant returned error: %v", err)
	}
	if err := store.PutParticipant(context.Background(), duplicate); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate PutParticipant error = %v, want ErrAlreadyExists", err)
	}
}

func TestSetParticipantResponse(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, store, "owner", domain.UserIdle)
	member := seedUser(t, store, "member", domain.UserIdle)
	task := seedTask(t, store, owner, 2)
	seedParticipant(t, store, task, member, domain.ResponseNone)

	if err := store.SetParticipantResponse(ctx, task.ID, member.ID, domain.ResponseYes, time.Now()); err != nil {
		t.Fatalf("SetParticipantResponse returned error: %v", err)
	}
	got, err := store.GetParticipant(ctx, task.ID, member.ID)
	if err != nil {
		t.Fatalf("GetParticipant returned error: %v", err)
	}
	if got.Response != domain.ResponseYes {
		t.Fatalf("Response = %q, want yes", got.Response)
	}

	if err := store.SetParticipantResponse(ctx, task.ID, member.ID, domain.ResponseNone, time.Now()); !errors.Is(err, domain.ErrInvalidResponse) {
		t.Errorf("blank response error = %v, want ErrInvalidResponse", err)
	}
	if err := store.SetParticipantResponse(ctx, task.ID, "missing", domain.ResponseNo, time.Now()); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing participant error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetParticipant(ctx, task.ID, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetParticipant(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListInvitationsReturnsOnlyUnanswered(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, store, "owner", domain.UserIdle)
	member := seedUser(t, store, "member", domain.UserIdle)

	pendingTask := seedTask(t, store, owner, 2)
	answeredTask := seedTask(t, store, owner, 2)
	pending := seedParticipant(t, store, pendingTask, member, domain.ResponseNone)
	seedParticipant(t, store, answeredTask, member, domain.ResponseYes)

	invitations, err := store.ListInvitations(ctx, member.ID, storage.Keyset{Limit: 10})
	if err != nil {
		t.Fatalf("ListInvitations returned error: %v", err)
	}
	if len(invitations) != 1 || invitations[0].ID != pending.ID {
		t.Fatalf("ListInvitations = %+v, want only the unanswered invitation", invitations)
	}
}

func TestListParticipantsByTaskKeyset(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, store, "owner", domain.UserIdle)
	task := seedTask(t, store, owner, 3)

	var participantIDs []string
	for _, name := range []string{"p1", "p2", "p3"} {
		member := seedUser(t, store, name, domain.UserIdle)
		participantIDs = append(participantIDs, seedParticipant(t, store, task, member, domain.ResponseNone).ID)
	}

	window, err := store.ListParticipantsByTask(ctx, task.ID, storage.Keyset{AnchorID: participantIDs[1], Limit: 5})
	if err != nil {
		t.Fatalf("ListParticipantsByTask returned error: %v", err)
	}
	if len(window) != 2 || window[0].ID != participantIDs[1] || window[1].ID != participantIDs[2] {
		t.Fatalf("anchored window = %+v, want anchor-inclusive tail", window)
	}
}

func TestParticipantsByTasksAndTaskIDsForUsers(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	owner := seedUser(t, store, "owner", domain.UserIdle)
	member := seedUser(t, store, "member", domain.UserIdle)

	first := seedTask(t, store, owner, 2)
	second := seedTask(t, store, owner, 2)
	seedParticipant(t, store, first, member, domain.ResponseNone)
	seedParticipant(t, store, second, member, domain.ResponseNone)
	seedParticipant(t, store, first, owner, domain.ResponseNone)

	pairs, err := store.ParticipantsByTasks(ctx, []string{first.ID, second.ID})
	if err != nil {
		t.Fatalf("ParticipantsByTasks returned error: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("ParticipantsByTasks returned %d pairs, want 3", len(pairs))
	}

	taskIDs, err := store.TaskIDsForUsers(ctx, []string{member.ID})
	if err != nil {
		t.Fatalf("TaskIDsForUsers returned error: %v", err)
	}
	if len(taskIDs) != 2 {
		t.Fatalf("TaskIDsForUsers returned %d ids, want 2", len(taskIDs))
	}

	none, err := store.TaskIDsForUsers(ctx, nil)
	if err != nil {
		t.Fatalf("TaskIDsForUsers(nil) returned error: %v", err)
	}
	if none != nil {
		t.Fatalf("TaskIDsForUsers(nil) = %v, want empty", none)
	}
}
