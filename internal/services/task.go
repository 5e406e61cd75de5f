package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sunforge/solar-epc/internal/models"
	"github.com/sunforge/solar-epc/internal/store"
	"github.com/sunforge/solar-epc/validation"
	"gorm.io/gorm"
)

// TaskInput is the editable part of a task.
type TaskInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *Timestamp `json:"dueDate"`
	AssigneeID  *uint      `json:"assigneeId"`
	InquiryID   *uint      `json:"inquiryId"`
}

func (in TaskInput) Validate() validation.Violations {
	v := validation.Violations{}
	validation.Required("title", in.Title, v)
	validation.MaxLen("title", in.Title, 255, v)
	validation.OneOf("priority", in.Priority, models.TaskPriorities, v)
	return v
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	AssigneeID  *uint
	InquiryID   *uint
	Status      string
	IncludeDone bool
}

type TaskService struct {
	db *gorm.DB
}

func NewTaskService(db *gorm.DB) *TaskService {
	return &TaskService{db: db}
}

// Create stores a TODO task. Priority defaults to MEDIUM.
func (s *TaskService) Create(ctx context.Context, creatorID uint, in TaskInput) (*models.Task, error) {
	if in.Priority == "" {
		in.Priority = string(models.PriorityMedium)
	}
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}
	task := models.Task{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Priority:    models.TaskPriority(in.Priority),
		Status:      models.TaskTodo,
		DueDate:     ptrTime(in.DueDate),
		AssigneeID:  in.AssigneeID,
		CreatorID:   creatorID,
		InquiryID:   in.InquiryID,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, store.Classify(err)
	}
	return s.Get(ctx, task.ID)
}

// Update overwrites the editable fields; status is changed through SetStatus.
func (s *TaskService) Update(ctx context.Context, id uint, in TaskInput) (*models.Task, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = string(models.PriorityMedium)
	}
	if err := s.validate(ctx, in); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Model(&models.Task{ID: id}).Updates(map[string]any{
		"title":       strings.TrimSpace(in.Title),
		"description": in.Description,
		"priority":    in.Priority,
		"due_date":    ptrTime(in.DueDate),
		"assignee_id": in.AssigneeID,
		"inquiry_id":  in.InquiryID,
	}).Error
	if err != nil {
		return nil, store.Classify(err)
	}
	return s.Get(ctx, id)
}

// Assign sets or clears the assignee.
func (s *TaskService) Assign(ctx context.Context, id uint, assigneeID *uint) (*models.Task, error) {
	if assigneeID != nil {
		v := validation.Violations{}
		if err := checkUser(ctx, s.db, *assigneeID, v); err != nil {
			return nil, err
		}
		if err := v.Err(); err != nil {
			return nil, err
		}
	}
	if err := s.update(ctx, id, "assignee_id", assigneeID); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// SetStatus moves a task between TODO, IN_PROGRESS and DONE.
func (s *TaskService) SetStatus(ctx context.Context, id uint, status string) (*models.Task, error) {
	v := validation.Violations{}
	validation.Required("status", status, v)
	validation.OneOf("status", status, models.TaskStatuses, v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := s.update(ctx, id, "status", status); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Get loads a task with its assignee and inquiry.
func (s *TaskService) Get(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Preload("Assignee").Preload("Inquiry").First(&task, id).Error; err != nil {
		return nil, store.Classify(err)
	}
	return &task, nil
}

// List returns tasks ordered by due date (undated last), then priority.
func (s *TaskService) List(ctx context.Context, f TaskFilter) ([]models.Task, error) {
	q := s.db.WithContext(ctx).Preload("Assignee").Preload("Inquiry")
	if f.AssigneeID != nil {
		q = q.Where("assignee_id = ?", *f.AssigneeID)
	}
	if f.InquiryID != nil {
		q = q.Where("inquiry_id = ?", *f.InquiryID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	} else if !f.IncludeDone {
		q = q.Where("status <> ?", models.TaskDone)
	}
	var tasks []models.Task
	err := q.Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date").
		Order("CASE priority WHEN 'HIGH' THEN 0 WHEN 'MEDIUM' THEN 1 ELSE 2 END").
		Order("id").
		Find(&tasks).Error
	if err != nil {
		return nil, store.Classify(err)
	}
	return tasks, nil
}

// ListForAssignee returns the open tasks of one user.
func (s *TaskService) ListForAssignee(ctx context.Context, userID uint) ([]models.Task, error) {
	return s.List(ctx, TaskFilter{AssigneeID: &userID})
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.Task{}, id)
	if res.Error != nil {
		return store.Classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *TaskService) update(ctx context.Context, id uint, column string, value any) error {
	res := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return store.Classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *TaskService) validate(ctx context.Context, in TaskInput) error {
	v := in.Validate()
	if in.AssigneeID != nil {
		if err := checkUser(ctx, s.db, *in.AssigneeID, v); err != nil {
			return err
		}
	}
	if in.InquiryID != nil {
		var inquiry models.Inquiry
		err := s.db.WithContext(ctx).Select("id").First(&inquiry, *in.InquiryID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			v["inquiryId"] = "unknown"
		} else if err != nil {
			return store.Classify(err)
		}
	}
	return v.Err()
}

func checkUser(ctx context.Context, db *gorm.DB, id uint, v validation.Violations) error {
	var u models.User
	err := db.WithContext(ctx).Select("id", "active").First(&u, id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		v["assigneeId"] = "unknown"
	case err != nil:
		return store.Classify(err)
	case !u.Active:
		v["assigneeId"] = "inactive"
	}
	return nil
}
