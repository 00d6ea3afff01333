// Package sqlite provides SQLite-backed persistence for ready-check state.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"

	sqlitemigrate "github.com/musterhq/muster/internal/platform/storage/sqlitemigrate"
	"github.com/musterhq/muster/internal/services/readycheck/domain"
	"github.com/musterhq/muster/internal/services/readycheck/storage"
	"github.com/musterhq/muster/internal/services/readycheck/storage/sqlite/migrations"
)

// Store provides SQLite-backed persistence for ready-check state.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a ready-check SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready() error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(ids []string) []any {
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	return args
}

// --- users ---

// PutUser upserts one user row.
func (s *Store) PutUser(ctx context.Context, user domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	userID := strings.TrimSpace(user.ID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	currentTaskID := sql.NullString{}
	if trimmed := strings.TrimSpace(user.CurrentTaskID); trimmed != "" {
		currentTaskID = sql.NullString{String: trimmed, Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (id, name, status, current_task_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    status = excluded.status,
    current_task_id = excluded.current_task_id,
    updated_at = excluded.updated_at
`, userID, user.Name, string(user.Status), currentTaskID, toMillis(user.CreatedAt), toMillis(user.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser loads one user row by id.
func (s *Store) GetUser(ctx context.Context, userID string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	if err := s.ready(); err != nil {
		return domain.User{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.User{}, fmt.Errorf("user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, status, current_task_id, created_at, updated_at
FROM users
WHERE id = ?
`, userID)
	user, err := scanUser(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, storage.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// SetUserStatus updates one user's presence.
func (s *Store) SetUserStatus(ctx context.Context, userID string, status domain.UserStatus, currentTaskID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if err := domain.ValidatePresence(status, currentTaskID); err != nil {
		return err
	}

	taskRef := sql.NullString{}
	if trimmed := strings.TrimSpace(currentTaskID); trimmed != "" {
		taskRef = sql.NullString{String: trimmed, Valid: true}
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE users
SET status = ?, current_task_id = ?, updated_at = ?
WHERE id = ?
`, string(status), taskRef, toMillis(at), userID)
	if err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user status rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanUser(scan func(...any) error) (domain.User, error) {
	var (
		user          domain.User
		status        string
		currentTaskID sql.NullString
		createdAt     int64
		updatedAt     int64
	)
	if err := scan(&user.ID, &user.Name, &status, &currentTaskID, &createdAt, &updatedAt); err != nil {
		return domain.User{}, err
	}
	user.Status = domain.UserStatus(status)
	if currentTaskID.Valid {
		user.CurrentTaskID = currentTaskID.String
	}
	user.CreatedAt = fromMillis(createdAt)
	user.UpdatedAt = fromMillis(updatedAt)
	return user, nil
}

// --- friends ---

// PutFriendPair inserts both directed rows of one friendship edge atomically.
func (s *Store) PutFriendPair(ctx context.Context, userID, friendID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	friendID = strings.TrimSpace(friendID)
	if userID == "" || friendID == "" {
		return fmt.Errorf("user id and friend id are required")
	}
	if userID == friendID {
		return fmt.Errorf("friend id must differ from user id")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin friend pair write: %w", err)
	}
	for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO friends (user_id, friend_id, created_at)
VALUES (?, ?, ?)
`, pair[0], pair[1], toMillis(at)); err != nil {
			_ = tx.Rollback()
			if isUniqueViolation(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("insert friend edge: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit friend pair write: %w", err)
	}
	return nil
}

// DeleteFriendPair removes both directed rows of one friendship edge atomically.
func (s *Store) DeleteFriendPair(ctx context.Context, userID, friendID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	friendID = strings.TrimSpace(friendID)
	if userID == "" || friendID == "" {
		return fmt.Errorf("user id and friend id are required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin friend pair delete: %w", err)
	}
	result, err := tx.ExecContext(ctx, `
DELETE FROM friends
WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)
`, userID, friendID, friendID, userID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete friend pair: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete friend pair rows affected: %w", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return storage.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit friend pair delete: %w", err)
	}
	return nil
}

// ListFriends lists one user's friendship edges with keyset pagination.
func (s *Store) ListFriends(ctx context.Context, userID string, window storage.Keyset) ([]storage.Friend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if window.Limit <= 0 {
		return nil, fmt.Errorf("list limit must be greater than zero")
	}

	query := `
SELECT user_id, friend_id, created_at
FROM friends
WHERE user_id = ?`
	args := []any{userID}
	if anchorID := strings.TrimSpace(window.AnchorID); anchorID != "" {
		var anchorSeq int64
		err := s.sqlDB.QueryRowContext(ctx, `
SELECT seq FROM friends WHERE user_id = ? AND friend_id = ?
`, userID, anchorID).Scan(&anchorSeq)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve friend anchor: %w", err)
		}
		if window.Backward {
			query += " AND seq <= ? ORDER BY seq DESC LIMIT ?"
		} else {
			query += " AND seq >= ? ORDER BY seq ASC LIMIT ?"
		}
		args = append(args, anchorSeq, window.Limit)
	} else {
		if window.Backward {
			query += " ORDER BY seq DESC LIMIT ?"
		} else {
			query += " ORDER BY seq ASC LIMIT ?"
		}
		args = append(args, window.Limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	var friends []storage.Friend
	for rows.Next() {
		var (
			friend    storage.Friend
			createdAt int64
		)
		if err := rows.Scan(&friend.UserID, &friend.FriendID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		friend.CreatedAt = fromMillis(createdAt)
		friends = append(friends, friend)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friends: %w", err)
	}
	return friends, nil
}

// FriendsOfUsers resolves friend edges for every given user in one query.
func (s *Store) FriendsOfUsers(ctx context.Context, userIDs []string) ([]storage.FriendPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT user_id, friend_id
FROM friends
WHERE user_id IN (`+placeholders(len(userIDs))+`)
`, idArgs(userIDs)...)
	if err != nil {
		return nil, fmt.Errorf("resolve friends of users: %w", err)
	}
	defer rows.Close()

	var pairs []storage.FriendPair
	for rows.Next() {
		var pair storage.FriendPair
		if err := rows.Scan(&pair.UserID, &pair.FriendID); err != nil {
			return nil, fmt.Errorf("scan friend pair: %w", err)
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend pairs: %w", err)
	}
	return pairs, nil
}

// --- tasks ---

// PutTask inserts one task row.
func (s *Store) PutTask(ctx context.Context, task domain.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	taskID := strings.TrimSpace(task.ID)
	if taskID == "" {
		return fmt.Errorf("task id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO tasks (id, owner_user_id, title, group_size, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, taskID, task.OwnerUserID, task.Title, task.GroupSize, string(task.Status), toMillis(task.CreatedAt), toMillis(task.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put task: %w", err)
	}
	return nil
}

// GetTask loads one task row by public id.
func (s *Store) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return domain.Task{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Task{}, err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return domain.Task{}, fmt.Errorf("task id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, owner_user_id, title, group_size, status, created_at, updated_at
FROM tasks
WHERE id = ?
`, taskID)
	task, err := scanTask(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, storage.ErrNotFound
		}
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// GetRecalculableTasks returns the given tasks still in the waiting/ready pair.
func (s *Store) GetRecalculableTasks(ctx context.Context, taskIDs []string) ([]domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(taskIDs) == 0 {
		return nil, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, owner_user_id, title, group_size, status, created_at, updated_at
FROM tasks
WHERE id IN (`+placeholders(len(taskIDs))+`)
  AND status IN ('waiting', 'ready')
ORDER BY seq ASC
`, idArgs(taskIDs)...)
	if err != nil {
		return nil, fmt.Errorf("get recalculable tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ReadyCounts counts confirmed idle participants per task in one query.
func (s *Store) ReadyCounts(ctx context.Context, taskIDs []string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(taskIDs) == 0 {
		return map[string]int{}, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT p.task_id, COUNT(1)
FROM participants p
JOIN users u ON u.id = p.user_id
WHERE p.task_id IN (`+placeholders(len(taskIDs))+`)
  AND p.response = 'yes'
  AND u.status = 'idle'
GROUP BY p.task_id
`, idArgs(taskIDs)...)
	if err != nil {
		return nil, fmt.Errorf("count ready participants: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int, len(taskIDs))
	for rows.Next() {
		var (
			taskID string
			count  int
		)
		if err := rows.Scan(&taskID, &count); err != nil {
			return nil, fmt.Errorf("scan ready count: %w", err)
		}
		counts[taskID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ready counts: %w", err)
	}
	return counts, nil
}

// TransitionTaskStatus applies one readiness transition if it changes the row.
func (s *Store) TransitionTaskStatus(ctx context.Context, taskID string, status domain.TaskStatus, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.ready(); err != nil {
		return false, err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return false, fmt.Errorf("task id is required")
	}
	if !status.Recalculable() {
		return false, fmt.Errorf("transition target %q is not a readiness status", status)
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE tasks
SET status = ?, updated_at = ?
WHERE id = ?
  AND status <> ?
  AND status IN ('waiting', 'ready')
`, string(status), toMillis(at), taskID, string(status))
	if err != nil {
		return false, fmt.Errorf("transition task status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition task status rows affected: %w", err)
	}
	return affected > 0, nil
}

// StartTask moves one ready task to in_progress.
func (s *Store) StartTask(ctx context.Context, taskID string, at time.Time) error {
	return s.lifecycleUpdate(ctx, taskID, domain.TaskInProgress, []domain.TaskStatus{domain.TaskReady}, at)
}

// CancelTask moves one unfinished task to canceled.
func (s *Store) CancelTask(ctx context.Context, taskID string, at time.Time) error {
	return s.lifecycleUpdate(ctx, taskID, domain.TaskCanceled, []domain.TaskStatus{
		domain.TaskWaiting, domain.TaskReady, domain.TaskInProgress,
	}, at)
}

func (s *Store) lifecycleUpdate(ctx context.Context, taskID string, to domain.TaskStatus, from []domain.TaskStatus, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return fmt.Errorf("task id is required")
	}

	fromArgs := make([]any, 0, len(from)+3)
	fromArgs = append(fromArgs, string(to), toMillis(at), taskID)
	for _, status := range from {
		fromArgs = append(fromArgs, string(status))
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE tasks
SET status = ?, updated_at = ?
WHERE id = ?
  AND status IN (`+placeholders(len(from))+`)
`, fromArgs...)
	if err != nil {
		return fmt.Errorf("update task lifecycle: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task lifecycle rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := s.GetTask(ctx, taskID); err != nil {
		return err
	}
	return storage.ErrInvalidTransition
}

// ListTasksByOwner lists one owner's tasks with keyset pagination.
func (s *Store) ListTasksByOwner(ctx context.Context, ownerUserID string, window storage.Keyset) ([]domain.Task, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, fmt.Errorf("owner user id is required")
	}
	return s.listTasks(ctx, "WHERE t.owner_user_id = ?", []any{ownerUserID}, window)
}

// ListTasksByParticipant lists tasks one user participates in with keyset pagination.
func (s *Store) ListTasksByParticipant(ctx context.Context, userID string, window storage.Keyset) ([]domain.Task, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	where := "JOIN participants p ON p.task_id = t.id WHERE p.user_id = ?"
	return s.listTasks(ctx, where, []any{userID}, window)
}

func (s *Store) listTasks(ctx context.Context, where string, args []any, window storage.Keyset) ([]domain.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if window.Limit <= 0 {
		return nil, fmt.Errorf("list limit must be greater than zero")
	}

	query := `
SELECT t.id, t.owner_user_id, t.title, t.group_size, t.status, t.created_at, t.updated_at
FROM tasks t
` + where
	if anchorID := strings.TrimSpace(window.AnchorID); anchorID != "" {
		var anchorSeq int64
		err := s.sqlDB.QueryRowContext(ctx, "SELECT seq FROM tasks WHERE id = ?", anchorID).Scan(&anchorSeq)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve task anchor: %w", err)
		}
		if window.Backward {
			query += " AND t.seq <= ? ORDER BY t.seq DESC LIMIT ?"
		} else {
			query += " AND t.seq >= ? ORDER BY t.seq ASC LIMIT ?"
		}
		args = append(args, anchorSeq, window.Limit)
	} else {
		if window.Backward {
			query += " ORDER BY t.seq DESC LIMIT ?"
		} else {
			query += " ORDER BY t.seq ASC LIMIT ?"
		}
		args = append(args, window.Limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

func scanTask(scan func(...any) error) (domain.Task, error) {
	var (
		task      domain.Task
		status    string
		createdAt int64
		updatedAt int64
	)
	if err := scan(&task.ID, &task.OwnerUserID, &task.Title, &task.GroupSize, &status, &createdAt, &updatedAt); err != nil {
		return domain.Task{}, err
	}
	task.Status = domain.TaskStatus(status)
	task.CreatedAt = fromMillis(createdAt)
	task.UpdatedAt = fromMillis(updatedAt)
	return task, nil
}

func collectTasks(rows *sql.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// --- participants ---

// PutParticipant inserts one participant row.
func (s *Store) PutParticipant(ctx context.Context, participant domain.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	participantID := strings.TrimSpace(participant.ID)
	if participantID == "" {
		return fmt.Errorf("participant id is required")
	}

	response := sql.NullString{}
	if participant.Response != domain.ResponseNone {
		response = sql.NullString{String: string(participant.Response), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO participants (id, task_id, user_id, response, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
`, participantID, participant.TaskID, participant.UserID, response, toMillis(participant.CreatedAt), toMillis(participant.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put participant: %w", err)
	}
	return nil
}

// GetParticipant loads one participant row by task and user.
func (s *Store) GetParticipant(ctx context.Context, taskID, userID string) (domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return domain.Participant{}, err
	}
	if err := s.ready(); err != nil {
		return domain.Participant{}, err
	}
	taskID = strings.TrimSpace(taskID)
	userID = strings.TrimSpace(userID)
	if taskID == "" || userID == "" {
		return domain.Participant{}, fmt.Errorf("task id and user id are required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, task_id, user_id, response, created_at, updated_at
FROM participants
WHERE task_id = ? AND user_id = ?
`, taskID, userID)
	participant, err := scanParticipant(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Participant{}, storage.ErrNotFound
		}
		return domain.Participant{}, fmt.Errorf("get participant: %w", err)
	}
	return participant, nil
}

// SetParticipantResponse updates one participant's ready-check answer.
func (s *Store) SetParticipantResponse(ctx context.Context, taskID, userID string, response domain.Response, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	taskID = strings.TrimSpace(taskID)
	userID = strings.TrimSpace(userID)
	if taskID == "" || userID == "" {
		return fmt.Errorf("task id and user id are required")
	}
	if response != domain.ResponseYes && response != domain.ResponseNo {
		return domain.ErrInvalidResponse
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE participants
SET response = ?, updated_at = ?
WHERE task_id = ? AND user_id = ?
`, string(response), toMillis(at), taskID, userID)
	if err != nil {
		return fmt.Errorf("set participant response: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set participant response rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListParticipantsByTask lists one task's participants with keyset pagination.
func (s *Store) ListParticipantsByTask(ctx context.Context, taskID string, window storage.Keyset) ([]domain.Participant, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, fmt.Errorf("task id is required")
	}
	return s.listParticipants(ctx, "WHERE task_id = ?", []any{taskID}, window)
}

// ListInvitations lists one user's unanswered participant rows with keyset pagination.
func (s *Store) ListInvitations(ctx context.Context, userID string, window storage.Keyset) ([]domain.Participant, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	return s.listParticipants(ctx, "WHERE user_id = ? AND response IS NULL", []any{userID}, window)
}

func (s *Store) listParticipants(ctx context.Context, where string, args []any, window storage.Keyset) ([]domain.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if window.Limit <= 0 {
		return nil, fmt.Errorf("list limit must be greater than zero")
	}

	query := `
SELECT id, task_id, user_id, response, created_at, updated_at
FROM participants
` + where
	if anchorID := strings.TrimSpace(window.AnchorID); anchorID != "" {
		var anchorSeq int64
		err := s.sqlDB.QueryRowContext(ctx, "SELECT seq FROM participants WHERE id = ?", anchorID).Scan(&anchorSeq)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve participant anchor: %w", err)
		}
		if window.Backward {
			query += " AND seq <= ? ORDER BY seq DESC LIMIT ?"
		} else {
			query += " AND seq >= ? ORDER BY seq ASC LIMIT ?"
		}
		args = append(args, anchorSeq, window.Limit)
	} else {
		if window.Backward {
			query += " ORDER BY seq DESC LIMIT ?"
		} else {
			query += " ORDER BY seq ASC LIMIT ?"
		}
		args = append(args, window.Limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		participant, err := scanParticipant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, participant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return participants, nil
}

// ParticipantsByTasks resolves participating users for every given task in one query.
func (s *Store) ParticipantsByTasks(ctx context.Context, taskIDs []string) ([]storage.TaskParticipant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(taskIDs) == 0 {
		return nil, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT task_id, user_id
FROM participants
WHERE task_id IN (`+placeholders(len(taskIDs))+`)
`, idArgs(taskIDs)...)
	if err != nil {
		return nil, fmt.Errorf("resolve task participants: %w", err)
	}
	defer rows.Close()

	var pairs []storage.TaskParticipant
	for rows.Next() {
		var pair storage.TaskParticipant
		if err := rows.Scan(&pair.TaskID, &pair.UserID); err != nil {
			return nil, fmt.Errorf("scan task participant: %w", err)
		}
		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task participants: %w", err)
	}
	return pairs, nil
}

// TaskIDsForUsers returns the distinct tasks any of the given users participate in.
func (s *Store) TaskIDsForUsers(ctx context.Context, userIDs []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT DISTINCT task_id
FROM participants
WHERE user_id IN (`+placeholders(len(userIDs))+`)
`, idArgs(userIDs)...)
	if err != nil {
		return nil, fmt.Errorf("resolve tasks for users: %w", err)
	}
	defer rows.Close()

	var taskIDs []string
	for rows.Next() {
		var taskID string
		if err := rows.Scan(&taskID); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		taskIDs = append(taskIDs, taskID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task ids: %w", err)
	}
	return taskIDs, nil
}

func scanParticipant(scan func(...any) error) (domain.Participant, error) {
	var (
		participant domain.Participant
		response    sql.NullString
		createdAt   int64
		updatedAt   int64
	)
	if err := scan(&participant.ID, &participant.TaskID, &participant.UserID, &response, &createdAt, &updatedAt); err != nil {
		return domain.Participant{}, err
	}
	if response.Valid {
		participant.Response = domain.Response(response.String)
	}
	participant.CreatedAt = fromMillis(createdAt)
	participant.UpdatedAt = fromMillis(updatedAt)
	return participant, nil
}
