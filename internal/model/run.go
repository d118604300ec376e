package model

import "time"

// Options are resolved once at startup and never mutated afterwards.
type Options struct {
	AutoClearTasks bool `json:"autoClearTasks"`
	AutoLevelUp    bool `json:"autoLevelUp"`
}

type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseLevelUp    Phase = "level_up"
	PhaseClearTasks Phase = "clear_tasks"
	PhaseTapLoop    Phase = "tap_loop"
	PhaseDone       Phase = "done"
	PhaseIdle       Phase = "idle"
)

type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeAborted   OutcomeStatus = "aborted"
)

type LevelUpStatus string

const (
	LevelUpSkipped LevelUpStatus = "skipped"
	LevelUpSuccess LevelUpStatus = "success"
	LevelUpFailed  LevelUpStatus = "failed"
)

// AccountOutcome is the terminal state of one account in one pass.
type AccountOutcome struct {
	PassID        string        `json:"passId"`
	AccountID     string        `json:"accountId"`
	Label         string        `json:"label"`
	Status        OutcomeStatus `json:"status"`
	Phase         Phase         `json:"phase"`
	LevelUp       LevelUpStatus `json:"levelUp"`
	TasksFinished int           `json:"tasksFinished"`
	TasksFailed   int           `json:"tasksFailed"`
	Taps          int           `json:"taps"`
	Clicks        int64         `json:"clicks"`
	Gold          int64         `json:"gold"`
	LastBar       BarAmount     `json:"lastBar"`
	Error         string        `json:"error,omitempty"`
	StartedAt     time.Time     `json:"startedAt"`
	FinishedAt    time.Time     `json:"finishedAt"`
}

type PassSummary struct {
	ID         string           `json:"id"`
	Seq        int              `json:"seq"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Completed  int              `json:"completed"`
	Aborted    int              `json:"aborted"`
	Gold       int64            `json:"gold"`
	Outcomes   []AccountOutcome `json:"outcomes,omitempty"`
}

type EngineState struct {
	Running        bool         `json:"running"`
	Options        Options      `json:"options"`
	Pass           int          `json:"pass"`
	CurrentAccount string       `json:"currentAccount,omitempty"`
	Phase          Phase        `json:"phase,omitempty"`
	NextPassAtMs   int64        `json:"nextPassAtMs,omitempty"`
	LastPass       *PassSummary `json:"lastPass,omitempty"`
}
