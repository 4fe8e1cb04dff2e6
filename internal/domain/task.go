package domain

// Task is the registry record of one asynchronous enhancement. The whole value is
// replaced on every update, so copies handed to readers are always consistent.
type Task struct {
	ID       string  `json:"task_id"`
	Progress int     `json:"progress"` // 0-100
	Message  string  `json:"message"`
	Done     bool    `json:"done"`
	Result   *string `json:"result,omitempty"`
}

// Succeeded reports whether the task reached a terminal state with an artifact.
func (t Task) Succeeded() bool {
	return t.Done && t.Result != nil
}

// TaskStatus is what a progress stream emits to its observer.
type TaskStatus struct {
	Progress int     `json:"progress"`
	Message  string  `json:"message"`
	Done     bool    `json:"done"`
	Result   *string `json:"result,omitempty"`
}

func (t Task) Status() TaskStatus {
	return TaskStatus{
		Progress: t.Progress,
		Message:  t.Message,
		Done:     t.Done,
		Result:   t.Result,
	}
}

const WaitingMessage = "Waiting for task..."

// WaitingStatus is emitted while a task id is not present in the registry.
func WaitingStatus() TaskStatus {
	return TaskStatus{Progress: 0, Message: WaitingMessage}
}
