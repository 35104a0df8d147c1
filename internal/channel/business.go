package channel

import (
	"errors"
	"net/http"
	"strings"

	"bizassist/internal/auth"
	"bizassist/internal/domain"
	"bizassist/internal/store"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r.Context(), s.logger)

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		TenantID string `json:"tenant_id"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	switch {
	case !validEmail(body.Email):
		writeMessage(w, http.StatusBadRequest, "Valid email is required")
		return
	case len(body.Password) < auth.MinPasswordLength:
		writeMessage(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	case strings.TrimSpace(body.TenantID) == "":
		writeMessage(w, http.StatusBadRequest, "Tenant ID is required")
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		logger.Error("password hashing failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	user, err := s.store.CreateUser(r.Context(), domain.User{
		Email:        body.Email,
		Name:         body.Name,
		TenantID:     body.TenantID,
		PasswordHash: hash,
	})
	if errors.Is(err, store.ErrConflict) {
		writeMessage(w, http.StatusConflict, "User with this email already exists")
		return
	}
	if err != nil {
		logger.Error("registration failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	logger.Info("user registered", "user_id", user.ID, "tenant", user.TenantID)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User created successfully", "user": user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r.Context(), s.logger)

	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	if !validEmail(body.Email) {
		writeMessage(w, http.StatusBadRequest, "Valid email is required")
		return
	}
	if body.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Password is required")
		return
	}
	if !s.users.Configured() {
		logger.Error("user token secret not configured")
		writeMessage(w, http.StatusInternalServerError, "Authentication configuration error.")
		return
	}

	user, err := s.store.UserByEmail(r.Context(), body.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Error("login lookup failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if err != nil || !auth.CheckPassword(user.PasswordHash, body.Password) {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.users.Issue(domain.Principal{
		ID: user.ID, Scope: user.TenantID, Role: user.Role, Email: user.Email, Kind: domain.KindUser,
	}, s.userTTL)
	if err != nil {
		logger.Error("token issue failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"token":   token,
		"user": map[string]string{
			"id":        user.ID,
			"email":     user.Email,
			"name":      user.Name,
			"role":      user.Role,
			"tenant_id": user.TenantID,
		},
	})
}

// KPISummary compares the current calendar month's sales with the previous one.
type KPISummary struct {
	TotalSales            float64 `json:"totalSales"`
	SalesChangePercentage float64 `json:"salesChangePercentage"`
	Range                 string  `json:"range"`
	PreviousMonthTotal    float64 `json:"previousMonthTotal"`
}

func (s *Server) handleKPISummary(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r.Context(), s.logger)
	p, _ := auth.PrincipalFrom(r.Context())

	from, to := domain.MonthWindow(s.now().In(s.loc))
	current, err := s.store.SalesBetween(r.Context(), p.TenantID(), from, to)
	if err != nil {
		logger.Error("kpi summary failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	previous, err := s.store.SalesBetween(r.Context(), p.TenantID(), from.AddDate(0, -1, 0), from)
	if err != nil {
		logger.Error("kpi summary failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	rng := "all_time"
	if r.URL.Query().Get("range") == "month" {
		rng = "month"
	}
	writeJSON(w, http.StatusOK, KPISummary{
		TotalSales:            current.Total,
		SalesChangePercentage: domain.SalesChange(current.Total, previous.Total),
		Range:                 rng,
		PreviousMonthTotal:    previous.Total,
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	tasks, err := s.store.ListTasks(r.Context(), p.TenantID())
	if err != nil {
		requestLogger(r.Context(), s.logger).Error("list tasks failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error while fetching tasks.")
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())

	var body struct {
		Title string `json:"title"`
		DueAt string `json:"dueAt"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	if body.Title == "" {
		writeMessage(w, http.StatusBadRequest, "Title is required and must be a string.")
		return
	}
	dueAt, ok := parseISOTime(body.DueAt)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Valid dueAt (ISO 8601 date string) is required.")
		return
	}

	task, err := s.store.CreateTask(r.Context(), p.TenantID(), body.Title, dueAt)
	if err != nil {
		requestLogger(r.Context(), s.logger).Error("create task failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error while creating task.")
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	task, err := s.store.GetTask(r.Context(), p.TenantID(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Task not found or access denied.")
		return
	}
	if err != nil {
		requestLogger(r.Context(), s.logger).Error("get task failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error while fetching task.")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r.Context(), s.logger)
	p, _ := auth.PrincipalFrom(r.Context())
	id := r.PathValue("id")

	if _, err := s.store.GetTask(r.Context(), p.TenantID(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Task not found or access denied.")
			return
		}
		logger.Error("get task failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error while updating task.")
		return
	}

	var body struct {
		Title     *string `json:"title"`
		DueAt     *string `json:"dueAt"`
		Completed *bool   `json:"completed"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}

	var update domain.TaskUpdate
	if body.Title != nil {
		if strings.TrimSpace(*body.Title) == "" {
			writeMessage(w, http.StatusBadRequest, "Title must be a non-empty string.")
			return
		}
		update.Title = body.Title
	}
	if body.DueAt != nil {
		dueAt, ok := parseISOTime(*body.DueAt)
		if !ok {
			writeMessage(w, http.StatusBadRequest, "Valid dueAt (ISO 8601 date string) is required for update.")
			return
		}
		update.DueAt = &dueAt
	}
	update.Completed = body.Completed
	if update.Empty() {
		writeMessage(w, http.StatusBadRequest, "No valid fields provided for update.")
		return
	}

	task, err := s.store.UpdateTask(r.Context(), p.TenantID(), id, update)
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Task not found or access denied for update.")
		return
	}
	if err != nil {
		logger.Error("update task failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error while updating task.")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r.Context())
	err := s.store.DeleteTask(r.Context(), p.TenantID(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "Task not found or access denied for delete.")
		return
	}
	if err != nil {
		requestLogger(r.Context(), s.logger).Error("delete task failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error while deleting task.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
