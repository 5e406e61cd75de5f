package models

import "time"

// TaskPriority orders work in an assignee's queue.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
)

// TaskStatus is the progress state of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

// TaskPriorities and TaskStatuses list the accepted values.
var (
	TaskPriorities = []string{string(PriorityLow), string(PriorityMedium), string(PriorityHigh)}
	TaskStatuses   = []string{string(TaskTodo), string(TaskInProgress), string(TaskDone)}
)

// Task is a unit of work assigned to an operator, optionally tied to an inquiry.
type Task struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Title       string       `gorm:"size:255;not null" json:"title"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	Priority    TaskPriority `gorm:"size:10;not null" json:"priority"`
	Status      TaskStatus   `gorm:"size:20;not null;index" json:"status"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`

	AssigneeID *uint    `gorm:"index" json:"assigneeId,omitempty"`
	Assignee   *User    `gorm:"foreignKey:AssigneeID;constraint:OnDelete:SET NULL" json:"assignee,omitempty"`
	CreatorID  uint     `gorm:"index;not null" json:"creatorId"`
	InquiryID  *uint    `gorm:"index" json:"inquiryId,omitempty"`
	Inquiry    *Inquiry `gorm:"foreignKey:InquiryID;constraint:OnDelete:SET NULL" json:"inquiry,omitempty"`
}

// GetUserID returns the assignee, the user who owns the task for authorization purposes.
func (t *Task) GetUserID() uint {
	if t.AssigneeID == nil {
		return t.CreatorID
	}
	return *t.AssigneeID
}

// Overdue reports whether an open task has passed its due date.
func (t *Task) Overdue(now time.Time) bool {
	return t.Status != TaskDone && t.DueDate != nil && now.After(*t.DueDate)
}
