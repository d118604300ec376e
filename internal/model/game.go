package model

// Task is one entry of the account's task list.
type Task struct {
	TaskID   int64  `json:"taskId"`
	TaskName string `json:"taskName"`
	Finished bool   `json:"finished"`
}

// BarAmount is the depleting tap resource.
type BarAmount struct {
	AvailableAmount int64 `json:"availableAmount"`
	MaxAmount       int64 `json:"maxAmount"`
}

type BoxMall struct {
	Level           int64 `json:"level"`
	AvailableAmount int64 `json:"availableAmount"`
}

type TapResult struct {
	GoldAmount int64 `json:"goldAmount"`
}

// ActionResult carries the service return code of a write call
// (finish task, level up).
type ActionResult struct {
	ReturnCode int    `json:"returnCode"`
	ReturnDesc string `json:"returnDesc,omitempty"`
}

const ReturnCodeOK = 200

func (r ActionResult) OK() bool { return r.ReturnCode == ReturnCodeOK }

// Status renders the result the way the console log reports it.
func (r ActionResult) Status() string {
	if r.OK() {
		return "Success"
	}
	return "Failed"
}
