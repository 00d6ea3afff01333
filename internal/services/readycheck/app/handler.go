package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/musterhq/muster/internal/platform/id"
	"github.com/musterhq/muster/internal/platform/pagination"
	"github.com/musterhq/muster/internal/services/readycheck/domain"
	"github.com/musterhq/muster/internal/services/readycheck/fanout"
	"github.com/musterhq/muster/internal/services/readycheck/push"
	"github.com/musterhq/muster/internal/services/readycheck/readiness"
	"github.com/musterhq/muster/internal/services/readycheck/storage"
)

const defaultPageSize = 20

// Store is the persistence surface the HTTP layer works against.
type Store interface {
	storage.UserStore
	storage.FriendStore
	storage.TaskStore
	storage.ParticipantStore
}

type api struct {
	store    Store
	pusher   push.Pusher
	clock    func() time.Time
	newID    func() (string, error)
	pageSize int
}

// NewHandler creates ready-check routes on the given store and push
// transport. Mount extra routes (the websocket gateway, health) on the
// returned mux from the server constructor.
func NewHandler(store Store, pusher push.Pusher) *http.ServeMux {
	a := &api{
		store:    store,
		pusher:   pusher,
		clock:    time.Now,
		newID:    id.NewID,
		pageSize: defaultPageSize,
	}
	return a.routes()
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /users", a.createUser)
	mux.HandleFunc("GET /users/{id}", a.getUser)
	mux.HandleFunc("POST /users/{id}/status", a.setUserStatus)
	mux.HandleFunc("GET /users/{id}/friends", a.listFriends)
	mux.HandleFunc("GET /users/{id}/tasks", a.listOwnedTasks)
	mux.HandleFunc("GET /users/{id}/participating", a.listParticipatingTasks)
	mux.HandleFunc("GET /users/{id}/invitations", a.listInvitations)

	mux.HandleFunc("POST /friends", a.addFriend)
	mux.HandleFunc("DELETE /friends", a.removeFriend)

	mux.HandleFunc("POST /tasks", a.createTask)
	mux.HandleFunc("GET /tasks/{id}", a.getTask)
	mux.HandleFunc("POST /tasks/{id}/participants", a.inviteParticipant)
	mux.HandleFunc("GET /tasks/{id}/participants", a.listParticipants)
	mux.HandleFunc("POST /tasks/{id}/response", a.respond)
	mux.HandleFunc("POST /tasks/{id}/start", a.startTask)
	mux.HandleFunc("POST /tasks/{id}/cancel", a.cancelTask)

	return mux
}

// unitOfWork creates the request-scoped delta bus and the calculator that
// records into it. Both are discarded when the request ends.
func (a *api) unitOfWork() (*fanout.Bus, *readiness.Calculator) {
	bus := fanout.NewBus(a.store, a.pusher)
	return bus, readiness.NewCalculator(a.store, bus, a.clock)
}

// --- wire types ---

type userPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	CurrentTaskID string `json:"currentTaskId,omitempty"`
	CreatedAt     string `json:"createdAt"`
	UpdatedAt     string `json:"updatedAt"`
}

func toUserPayload(user domain.User) userPayload {
	return userPayload{
		ID:            user.ID,
		Name:          user.Name,
		Status:        string(user.Status),
		CurrentTaskID: user.CurrentTaskID,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     user.UpdatedAt.Format(time.RFC3339),
	}
}

type taskPayload struct {
	ID          string `json:"id"`
	OwnerUserID string `json:"ownerUserId"`
	Title       string `json:"title"`
	GroupSize   int    `json:"groupSize"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toTaskPayload(task domain.Task) taskPayload {
	return taskPayload{
		ID:          task.ID,
		OwnerUserID: task.OwnerUserID,
		Title:       task.Title,
		GroupSize:   task.GroupSize,
		Status:      string(task.Status),
		CreatedAt:   task.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   task.UpdatedAt.Format(time.RFC3339),
	}
}

type participantPayload struct {
	ID        string `json:"id"`
	TaskID    string `json:"taskId"`
	UserID    string `json:"userId"`
	Response  string `json:"response,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toParticipantPayload(participant domain.Participant) participantPayload {
	return participantPayload{
		ID:        participant.ID,
		TaskID:    participant.TaskID,
		UserID:    participant.UserID,
		Response:  string(participant.Response),
		CreatedAt: participant.CreatedAt.Format(time.RFC3339),
		UpdatedAt: participant.UpdatedAt.Format(time.RFC3339),
	}
}

type friendPayload struct {
	UserID    string `json:"userId"`
	FriendID  string `json:"friendId"`
	CreatedAt string `json:"createdAt"`
}

type pageInfo struct {
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
	StartCursor     string `json:"startCursor,omitempty"`
	EndCursor       string `json:"endCursor,omitempty"`
}

type pageEnvelope[T any] struct {
	Items    []T      `json:"items"`
	PageInfo pageInfo `json:"pageInfo"`
}

func toPageEnvelope[T, W any](page pagination.Page[T], toWire func(T) W) pageEnvelope[W] {
	items := make([]W, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, toWire(item))
	}
	return pageEnvelope[W]{
		Items: items,
		PageInfo: pageInfo{
			HasNextPage:     page.HasNextPage,
			HasPreviousPage: page.HasPreviousPage,
			StartCursor:     page.StartCursor,
			EndCursor:       page.EndCursor,
		},
	}
}

// --- helpers ---

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrAlreadyExists):
		http.Error(w, "already exists", http.StatusConflict)
	case errors.Is(err, storage.ErrInvalidTransition):
		http.Error(w, "invalid task state for this operation", http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func pageRequestFromQuery(r *http.Request) (pagination.Request, error) {
	query := r.URL.Query()
	var req pagination.Request
	if raw := strings.TrimSpace(query.Get("first")); raw != "" {
		first, err := strconv.Atoi(raw)
		if err != nil {
			return pagination.Request{}, fmt.Errorf("first must be an integer")
		}
		req.First = &first
	}
	if raw := strings.TrimSpace(query.Get("last")); raw != "" {
		last, err := strconv.Atoi(raw)
		if err != nil {
			return pagination.Request{}, fmt.Errorf("last must be an integer")
		}
		req.Last = &last
	}
	req.After = query.Get("after")
	req.Before = query.Get("before")
	return req, nil
}

func keysetFor(spec pagination.Spec) storage.Keyset {
	return storage.Keyset{
		AnchorID: spec.Cursor,
		Backward: spec.Direction == pagination.Backward,
		Limit:    spec.Limit,
	}
}

// servePage runs the shared list pipeline: parse the page request, fetch the
// over-sized keyset window, and trim it into a presentation-ordered page.
func servePage[T, W any](a *api, w http.ResponseWriter, r *http.Request,
	fetch func(storage.Keyset) ([]T, error), getID func(T) string, toWire func(T) W) {
	req, err := pageRequestFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	spec, err := pagination.ParsePage(a.pageSize, req)
	if err != nil {
		if errors.Is(err, pagination.ErrConflictingCursors) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "invalid page request", http.StatusBadRequest)
		return
	}

	items, err := fetch(keysetFor(spec))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	page := pagination.BuildPage(items, spec.Count, spec.Cursor != "", spec.Direction, getID)
	writeJSON(w, http.StatusOK, toPageEnvelope(page, toWire))
}

// --- users ---

func (a *api) createUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	user, err := domain.NewUser(domain.NewUserInput{Name: body.Name}, a.clock, a.newID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.store.PutUser(r.Context(), user); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserPayload(user))
}

func (a *api) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserPayload(user))
}

// setUserStatus persists a presence change, then runs one unit of work:
// recompute every task the user participates in, record the presence delta,
// and drain the coalesced notifications before responding.
func (a *api) setUserStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	var body struct {
		Status        string `json:"status"`
		CurrentTaskID string `json:"currentTaskId"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	status, err := domain.ParseUserStatus(body.Status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.store.SetUserStatus(r.Context(), userID, status, body.CurrentTaskID, a.clock().UTC()); err != nil {
		if errors.Is(err, domain.ErrCurrentTaskRequiresFlow) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeStoreError(w, err)
		return
	}

	bus, calculator := a.unitOfWork()
	bus.RecordUserStatus(userID, status)
	transitions, err := calculator.RecalculateForUsers(r.Context(), []string{userID})
	if err != nil {
		http.Error(w, "readiness recalculation failed", http.StatusInternalServerError)
		return
	}
	if err := bus.Drain(r.Context()); err != nil {
		http.Error(w, "notification fan-out failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		UserID      string                 `json:"userId"`
		Status      string                 `json:"status"`
		Transitions []readiness.Transition `json:"transitions"`
	}{UserID: userID, Status: string(status), Transitions: transitions})
}

func (a *api) listFriends(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	servePage(a, w, r,
		func(window storage.Keyset) ([]storage.Friend, error) {
			return a.store.ListFriends(r.Context(), userID, window)
		},
		func(friend storage.Friend) string { return friend.FriendID },
		func(friend storage.Friend) friendPayload {
			return friendPayload{
				UserID:    friend.UserID,
				FriendID:  friend.FriendID,
				CreatedAt: friend.CreatedAt.Format(time.RFC3339),
			}
		})
}

func (a *api) listOwnedTasks(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	servePage(a, w, r,
		func(window storage.Keyset) ([]domain.Task, error) {
			return a.store.ListTasksByOwner(r.Context(), userID, window)
		},
		func(task domain.Task) string { return task.ID },
		toTaskPayload)
}

func (a *api) listParticipatingTasks(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	servePage(a, w, r,
		func(window storage.Keyset) ([]domain.Task, error) {
			return a.store.ListTasksByParticipant(r.Context(), userID, window)
		},
		func(task domain.Task) string { return task.ID },
		toTaskPayload)
}

func (a *api) listInvitations(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	servePage(a, w, r,
		func(window storage.Keyset) ([]domain.Participant, error) {
			return a.store.ListInvitations(r.Context(), userID, window)
		},
		func(participant domain.Participant) string { return participant.ID },
		toParticipantPayload)
}

// --- friends ---

func (a *api) addFriend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID   string `json:"userId"`
		FriendID string `json:"friendId"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	userID := strings.TrimSpace(body.UserID)
	friendID := strings.TrimSpace(body.FriendID)
	if userID == "" || friendID == "" {
		http.Error(w, "userId and friendId are required", http.StatusBadRequest)
		return
	}
	if userID == friendID {
		http.Error(w, "friendId must differ from userId", http.StatusBadRequest)
		return
	}
	for _, accountID := range []string{userID, friendID} {
		if _, err := a.store.GetUser(r.Context(), accountID); err != nil {
			writeStoreError(w, err)
			return
		}
	}

	if err := a.store.PutFriendPair(r.Context(), userID, friendID, a.clock().UTC()); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		UserID   string `json:"userId"`
		FriendID string `json:"friendId"`
	}{UserID: userID, FriendID: friendID})
}

func (a *api) removeFriend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID   string `json:"userId"`
		FriendID string `json:"friendId"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := a.store.DeleteFriendPair(r.Context(), body.UserID, body.FriendID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- tasks ---

func (a *api) createTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OwnerUserID string `json:"ownerUserId"`
		Title       string `json:"title"`
		GroupSize   int    `json:"groupSize"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	task, err := domain.NewTask(domain.NewTaskInput{
		OwnerUserID: body.OwnerUserID,
		Title:       body.Title,
		GroupSize:   body.GroupSize,
	}, a.clock, a.newID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := a.store.GetUser(r.Context(), task.OwnerUserID); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := a.store.PutTask(r.Context(), task); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskPayload(task))
}

func (a *api) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := a.store.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskPayload(task))
}

func (a *api) inviteParticipant(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	var body struct {
		UserID string `json:"userId"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	task, err := a.store.GetTask(r.Context(), taskID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !task.Status.Recalculable() {
		http.Error(w, "task no longer accepts participants", http.StatusConflict)
		return
	}
	if _, err := a.store.GetUser(r.Context(), strings.TrimSpace(body.UserID)); err != nil {
		writeStoreError(w, err)
		return
	}

	participant, err := domain.NewParticipant(domain.NewParticipantInput{
		TaskID: taskID,
		UserID: body.UserID,
	}, a.clock, a.newID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.store.PutParticipant(r.Context(), participant); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toParticipantPayload(participant))
}

func (a *api) listParticipants(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	servePage(a, w, r,
		func(window storage.Keyset) ([]domain.Participant, error) {
			return a.store.ListParticipantsByTask(r.Context(), taskID, window)
		},
		func(participant domain.Participant) string { return participant.ID },
		toParticipantPayload)
}

// respond stores a yes/no answer, then recomputes the task's readiness and
// drains the resulting notifications in the same unit of work.
func (a *api) respond(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	var body struct {
		UserID   string `json:"userId"`
		Response string `json:"response"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	response, err := domain.ParseResponse(body.Response)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.store.SetParticipantResponse(r.Context(), taskID, body.UserID, response, a.clock().UTC()); err != nil {
		writeStoreError(w, err)
		return
	}

	bus, calculator := a.unitOfWork()
	transitions, err := calculator.Recalculate(r.Context(), []string{taskID})
	if err != nil {
		http.Error(w, "readiness recalculation failed", http.StatusInternalServerError)
		return
	}
	if err := bus.Drain(r.Context()); err != nil {
		http.Error(w, "notification fan-out failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		TaskID      string                 `json:"taskId"`
		UserID      string                 `json:"userId"`
		Response    string                 `json:"response"`
		Transitions []readiness.Transition `json:"transitions"`
	}{TaskID: taskID, UserID: strings.TrimSpace(body.UserID), Response: string(response), Transitions: transitions})
}

func (a *api) startTask(w http.ResponseWriter, r *http.Request) {
	a.lifecycle(w, r, domain.TaskInProgress, a.store.StartTask)
}

func (a *api) cancelTask(w http.ResponseWriter, r *http.Request) {
	a.lifecycle(w, r, domain.TaskCanceled, a.store.CancelTask)
}

// lifecycle applies a start/cancel transition and fans the new status out to
// the task's participants.
func (a *api) lifecycle(w http.ResponseWriter, r *http.Request, to domain.TaskStatus,
	apply func(ctx context.Context, taskID string, at time.Time) error) {
	taskID := r.PathValue("id")
	if err := apply(r.Context(), taskID, a.clock().UTC()); err != nil {
		writeStoreError(w, err)
		return
	}

	bus, _ := a.unitOfWork()
	bus.RecordTaskStatus(taskID, to)
	if err := bus.Drain(r.Context()); err != nil {
		http.Error(w, "notification fan-out failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		TaskID string `json:"taskId"`
		Status string `json:"status"`
	}{TaskID: taskID, Status: string(to)})
}
