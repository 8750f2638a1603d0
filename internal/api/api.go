package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tazhate/tasksync/internal/domain"
	"github.com/tazhate/tasksync/internal/service"
	"github.com/tazhate/tasksync/internal/storage"
)

// API Response types
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type TaskResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Notes       string  `json:"notes,omitempty"`
	DueWithTime *string `json:"due_with_time,omitempty"`
	DueDay      string  `json:"due_day,omitempty"`
	EstimateMin int64   `json:"estimate_min,omitempty"`
	IsDone      bool    `json:"is_done"`
	IssueID     string  `json:"issue_id,omitempty"`
	Provider    string  `json:"provider,omitempty"`
	WasUpdated  bool    `json:"was_updated"`
	CreatedAt   string  `json:"created_at"`
}

type ProviderResponse struct {
	ID             string `json:"id"`
	Enabled        bool   `json:"enabled"`
	URL            string `json:"url"`
	Resource       string `json:"resource"`
	Component      string `json:"component"`
	Auth           string `json:"auth"`
	CategoryFilter string `json:"category_filter,omitempty"`
	WriteBack      bool   `json:"write_back"`
	Transition     bool   `json:"transition"`
	Configured     bool   `json:"configured"`
}

type SearchResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
	URL   string `json:"url,omitempty"`
}

// Server exposes tasks and providers over HTTP with Basic Auth
type Server struct {
	username string
	password string
	storage  *storage.Storage
	tasks    *service.TaskService
	issues   *service.IssueService
}

func New(username, password string, store *storage.Storage, tasks *service.TaskService, issues *service.IssueService) *Server {
	return &Server{
		username: username,
		password: password,
		storage:  store,
		tasks:    tasks,
		issues:   issues,
	}
}

// Handler returns the routes. Without credentials only /health is served.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if s.username == "" || s.password == "" {
		return mux // API disabled if no credentials
	}

	mux.HandleFunc("/api/tasks", s.basicAuth(s.apiTasks))
	mux.HandleFunc("/api/task/", s.basicAuth(s.apiTask))
	mux.HandleFunc("/api/providers", s.basicAuth(s.apiProviders))
	mux.HandleFunc("/api/search", s.basicAuth(s.apiSearch))
	mux.HandleFunc("/api/sync", s.basicAuth(s.apiSync))
	return mux
}

// basicAuth middleware
func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != s.username || password != s.password {
			w.Header().Set("WWW-Authenticate", `Basic realm="TaskSync API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

// serviceError maps sync failures onto HTTP statuses
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrNotConfigured):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch service.KindOf(err) {
	case service.KindItemNotFound, service.KindCalendarNotFound:
		jsonError(w, err.Error(), http.StatusNotFound)
	case service.KindCalendarReadOnly:
		jsonError(w, err.Error(), http.StatusForbidden)
	case service.KindNetwork:
		jsonError(w, err.Error(), http.StatusBadGateway)
	case service.KindUnsupported, service.KindNotConfigured:
		jsonError(w, err.Error(), http.StatusBadRequest)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

// GET /api/tasks - open tasks, ?all=1 includes done
// POST /api/tasks - create a local task
func (s *Server) apiTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tasks, err := s.tasks.List(r.URL.Query().Get("all") == "1")
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		jsonResponse(w, tasksToResponse(tasks))

	case http.MethodPost:
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			jsonError(w, "Title is required", http.StatusBadRequest)
			return
		}

		task, err := s.tasks.Create(req.Title)
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		jsonResponse(w, taskToResponse(task))

	default:
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET    /api/task/{id}
// PATCH  /api/task/{id} - edit title/notes/due, pushed to the linked item
// DELETE /api/task/{id}?event=delete-both|keep-event
// POST   /api/task/{id}/done, /api/task/{id}/undone
func (s *Server) apiTask(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/task/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		jsonError(w, "Task ID required", http.StatusBadRequest)
		return
	}

	taskID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		jsonError(w, "Invalid task ID", http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	// Handle sub-paths
	if len(parts) > 1 {
		if r.Method != http.MethodPost {
			jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		switch parts[1] {
		case "done":
			err = s.tasks.MarkDone(ctx, taskID)
		case "undone":
			err = s.tasks.MarkUndone(ctx, taskID)
		default:
			jsonError(w, "Unknown action", http.StatusNotFound)
			return
		}
		if err != nil {
			serviceError(w, err)
			return
		}
		jsonResponse(w, map[string]bool{"done": parts[1] == "done"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, err := s.tasks.Get(taskID)
		if err != nil {
			serviceError(w, err)
			return
		}
		jsonResponse(w, taskToResponse(task))

	case http.MethodPatch:
		var req struct {
			Title *string `json:"title"`
			Notes *string `json:"notes"`
			Due   *string `json:"due"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		changes := domain.TaskChanges{Title: req.Title, Notes: req.Notes}
		if req.Due != nil {
			due, err := time.Parse(time.RFC3339, *req.Due)
			if err != nil {
				jsonError(w, "Invalid due format (use RFC 3339)", http.StatusBadRequest)
				return
			}
			changes.DueWithTime = &due
		}

		if err := s.tasks.Edit(ctx, taskID, changes); err != nil {
			serviceError(w, err)
			return
		}
		task, err := s.tasks.Get(taskID)
		if err != nil {
			serviceError(w, err)
			return
		}
		jsonResponse(w, taskToResponse(task))

	case http.MethodDelete:
		choice := service.DeleteChoice(r.URL.Query().Get("event"))
		if choice == "" {
			choice = service.KeepEvent
		}
		if choice != service.DeleteBoth && choice != service.KeepEvent {
			jsonError(w, "event must be delete-both or keep-event", http.StatusBadRequest)
			return
		}
		if err := s.tasks.Delete(ctx, taskID, fixedChoice(choice)); err != nil {
			serviceError(w, err)
			return
		}
		jsonResponse(w, map[string]bool{"deleted": true})

	default:
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// GET /api/providers - credentials are never returned
func (s *Server) apiProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providers, err := s.storage.ListProviders(false)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := make([]ProviderResponse, 0, len(providers))
	for _, p := range providers {
		resp = append(resp, ProviderResponse{
			ID:             p.ID,
			Enabled:        p.Enabled,
			URL:            p.URL,
			Resource:       p.ResourceName,
			Component:      string(p.ComponentType),
			Auth:           string(p.AuthType),
			CategoryFilter: p.CategoryFilter,
			WriteBack:      p.WriteBack,
			Transition:     p.TransitionEnabled,
			Configured:     p.Validate() == nil,
		})
	}
	jsonResponse(w, resp)
}

// GET /api/search?provider=ID&q=text
func (s *Server) apiSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg, err := s.storage.GetProvider(r.URL.Query().Get("provider"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if cfg == nil {
		jsonError(w, "Provider not found", http.StatusNotFound)
		return
	}

	results, err := s.issues.Search(r.Context(), cfg, r.URL.Query().Get("q"))
	if err != nil {
		serviceError(w, err)
		return
	}

	resp := make([]SearchResponse, 0, len(results))
	for _, res := range results {
		resp = append(resp, SearchResponse{
			ID:    res.Issue.ID(),
			Title: res.Title,
			Kind:  string(res.Kind),
			URL:   res.Issue.URL(),
		})
	}
	jsonResponse(w, resp)
}

// POST /api/sync - sync all providers now
func (s *Server) apiSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := s.tasks.SyncAll(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]int{"updated": res.Updated, "imported": res.Imported})
}

func tasksToResponse(tasks []*domain.Task) []TaskResponse {
	resp := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp = append(resp, taskToResponse(t))
	}
	return resp
}

func taskToResponse(t *domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Notes:       t.Notes,
		DueDay:      t.DueDay,
		EstimateMin: int64(t.TimeEstimate / time.Minute),
		IsDone:      t.IsDone(),
		IssueID:     t.IssueID,
		Provider:    t.IssueProviderID,
		WasUpdated:  t.IssueWasUpdated,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
	}
	if t.DueWithTime != nil {
		due := t.DueWithTime.Format(time.RFC3339)
		resp.DueWithTime = &due
	}
	return resp
}

// fixedChoice answers the deletion question with the choice from the request
type fixedChoice service.DeleteChoice

func (c fixedChoice) ConfirmEventDeletion(context.Context, *domain.Task) (service.DeleteChoice, error) {
	return service.DeleteChoice(c), nil
}
