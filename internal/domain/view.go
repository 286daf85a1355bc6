package domain

// GameState is the controller's finite state.
type GameState string

const (
	StateEntry   GameState = "entry"
	StatePlaying GameState = "playing"
	StateResult  GameState = "result"
)

// NoticeKind classifies one-shot messages surfaced to the participant.
type NoticeKind string

const (
	// NoticeUnsaved is raised once when the session could not be created remotely.
	NoticeUnsaved NoticeKind = "unsaved"
	// NoticeFullscreen is raised when the participant leaves fullscreen.
	NoticeFullscreen NoticeKind = "fullscreen"
	// NoticeAborted is raised when the grace period runs out.
	NoticeAborted NoticeKind = "aborted"
)

// Notice is a one-shot message attached to the view it was raised in.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// ChallengeLink is one row of the in-play sidebar.
type ChallengeLink struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Active    bool   `json:"active"`
	Completed bool   `json:"completed"`
	Unlocked  bool   `json:"unlocked"`
}

// View is the snapshot a host renders after every controller event.
type View struct {
	State               GameState       `json:"state"`
	Identity            Identity        `json:"identity"`
	Score               int             `json:"score"`
	ChallengesCompleted int             `json:"challengesCompleted"`
	CurrentChallenge    int             `json:"currentChallenge"`
	TotalChallenges     int             `json:"totalChallenges"`
	Remaining           int             `json:"remaining"`
	Clock               string          `json:"clock,omitempty"`
	TimerLevel          string          `json:"timerLevel,omitempty"`
	Attempts            int             `json:"attempts"`
	Challenge           Challenge       `json:"challenge"`
	Challenges          []ChallengeLink `json:"challenges,omitempty"`
	HintOpen            bool            `json:"hintOpen"`
	Hint                string          `json:"hint,omitempty"`
	Warning             bool            `json:"warning"`
	GraceRemaining      int             `json:"graceRemaining,omitempty"`
	Saved               bool            `json:"saved"`
	Notice              *Notice         `json:"notice,omitempty"`
}
