package handlers

import (
	"net/http"

	"github.com/sunforge/solar-epc/auth"
	"github.com/sunforge/solar-epc/httpx"
	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/policy"
	"github.com/sunforge/solar-epc/internal/services"
)

type TaskHandler struct {
	svc  *services.TaskService
	gate *policy.Gate
}

func NewTaskHandler(svc *services.TaskService, gate *policy.Gate) *TaskHandler {
	return &TaskHandler{svc: svc, gate: gate}
}

// List answers GET /api/tasks?assigneeId=&inquiryId=&status=&includeDone=1.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	assignee, ok1 := queryID(r, "assigneeId")
	inquiry, ok2 := queryID(r, "inquiryId")
	if !ok1 || !ok2 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	tasks, err := h.svc.List(r.Context(), services.TaskFilter{
		AssigneeID:  assignee,
		InquiryID:   inquiry,
		Status:      r.URL.Query().Get("status"),
		IncludeDone: r.URL.Query().Get("includeDone") == "1",
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeTasks(w, tasks)
}

// Mine answers GET /api/tasks/mine with the caller's open tasks.
func (h *TaskHandler) Mine(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	tasks, err := h.svc.ListForAssignee(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeTasks(w, tasks)
}

func writeTasks(w http.ResponseWriter, tasks []models.Task) {
	if tasks == nil {
		tasks = []models.Task{}
	}
	httpx.JSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	var in services.TaskInput
	if !decode(w, r, &in) {
		return
	}
	t, err := h.svc.Create(r.Context(), uid, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

// authorize loads the task and applies the assignee policy for action.
func (h *TaskHandler) authorize(w http.ResponseWriter, r *http.Request, action policy.Action) (uint, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return 0, false
	}
	t, err := h.svc.Get(r.Context(), id)
	if err == nil {
		err = h.gate.Authorize(r.Context(), action, "task", t)
	}
	if err != nil {
		writeError(w, r, err)
		return 0, false
	}
	return id, true
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	var in services.TaskInput
	if !decode(w, r, &in) {
		return
	}
	t, err := h.svc.Update(r.Context(), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

type assignInput struct {
	AssigneeID *uint `json:"assigneeId"`
}

// Assign answers PUT /api/tasks/{id}/assignee; a null assigneeId unassigns.
func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	var in assignInput
	if !decode(w, r, &in) {
		return
	}
	t, err := h.svc.Assign(r.Context(), id, in.AssigneeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

// SetStatus answers PUT /api/tasks/{id}/status.
func (h *TaskHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, policy.ActionUpdate)
	if !ok {
		return
	}
	var in statusInput
	if !decode(w, r, &in) {
		return
	}
	t, err := h.svc.SetStatus(r.Context(), id, in.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r, policy.ActionDelete)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.OK(w)
}
