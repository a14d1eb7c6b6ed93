package protocol

// Settings is the host-tunable configuration of a game session.
type Settings struct {
	Rounds           int    `json:"rounds"`
	RoundDurationMs  int64  `json:"roundDurationMs"`
	Difficulty       string `json:"difficulty,omitempty"`
	GameMode         string `json:"gameMode"`
	Genre            string `json:"genre,omitempty"`
	TeamMode         bool   `json:"teamMode"`
	PowerUps         bool   `json:"powerUps"`
	ProgressiveAudio bool   `json:"progressiveAudio"`
	TimelineTarget   int    `json:"timelineTarget,omitempty"`
	Lives            int    `json:"lives,omitempty"`
}

// Client -> server payloads.

type CreateRoomPayload struct {
	Pseudo    string    `json:"pseudo"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Settings  *Settings `json:"settings,omitempty"`
}

type JoinRoomPayload struct {
	RoomCode  string `json:"roomCode"`
	Pseudo    string `json:"pseudo"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type KickPlayerPayload struct {
	PlayerID string `json:"playerId"`
}

type SubmitAnswerPayload struct {
	Answer    string `json:"answer"`
	Timestamp int64  `json:"timestamp"`
}

type SendMessagePayload struct {
	Message string `json:"message"`
}

type SendEmotePayload struct {
	Emote string `json:"emote"`
}

type SubmitLyricsPayload struct {
	Answers []string `json:"answers"`
}

// Server -> client payloads.

// TimelineCard is a track a player has placed, ordered by release year.
type TimelineCard struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Year   int    `json:"year"`
}

type PlayerState struct {
	ID            string         `json:"id"`
	Pseudo        string         `json:"pseudo"`
	AvatarURL     string         `json:"avatarUrl,omitempty"`
	Score         int            `json:"score"`
	Streak        int            `json:"streak"`
	Ready         bool           `json:"ready"`
	Connected     bool           `json:"connected"`
	IsHost        bool           `json:"isHost"`
	Lives         int            `json:"lives,omitempty"`
	IsEliminated  bool           `json:"isEliminated,omitempty"`
	TeamID        string         `json:"teamId,omitempty"`
	TimelineCards []TimelineCard `json:"timelineCards,omitempty"`
}

type TeamState struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Players int    `json:"players"`
}

// RoundData is what a client needs to render an open round. It never
// carries the answer.
type RoundData struct {
	Number      int    `json:"number"`
	TotalRounds int    `json:"totalRounds"`
	GameMode    string `json:"gameMode"`
	PreviewURL  string `json:"previewUrl"`
	Cover       string `json:"cover,omitempty"`
	StartAt     int64  `json:"startAt"` // server clock, ms since epoch
	EndAt       int64  `json:"endAt"`
}

type RoomState struct {
	Code         string        `json:"code"`
	Phase        string        `json:"phase"`
	HostID       string        `json:"hostId"`
	Players      []PlayerState `json:"players"`
	Teams        []TeamState   `json:"teams,omitempty"`
	Settings     Settings      `json:"settings"`
	CurrentRound int           `json:"currentRound"`
	Round        *RoundData    `json:"round,omitempty"`
	Paused       bool          `json:"paused"`
	PauseVotes   int           `json:"pauseVotes"`
	PauseQuorum  int           `json:"pauseQuorum"`
}

type RoomStatePayload struct {
	RoomState RoomState `json:"roomState"`
}

type PlayerKickedPayload struct {
	PlayerID string `json:"playerId"`
}

type RoundStartPayload struct {
	RoundData RoundData `json:"roundData"`
}

// TimelineReveal tells a timeline-mode player where the card actually
// belongs after a placement attempt.
type TimelineReveal struct {
	Year         int  `json:"year"`
	CorrectIndex int  `json:"correctIndex"`
	Placed       bool `json:"placed"`
}

type AnswerResultPayload struct {
	Correct        bool            `json:"correct"`
	CooldownUntil  int64           `json:"cooldownUntil,omitempty"`
	FoundPart      string          `json:"foundPart,omitempty"`
	TimelineReveal *TimelineReveal `json:"timelineReveal,omitempty"`
	ScoreDelta     int             `json:"scoreDelta,omitempty"`
}

type PlayerResult struct {
	PlayerID   string `json:"playerId"`
	Pseudo     string `json:"pseudo"`
	WasCorrect bool   `json:"wasCorrect"`
	ScoreDelta int    `json:"scoreDelta"`
	Score      int    `json:"score"`
}

// RoundResult is the immutable reveal snapshot, produced exactly once per
// round.
type RoundResult struct {
	Number    int            `json:"number"`
	Title     string         `json:"title"`
	Artist    string         `json:"artist"`
	Year      int            `json:"year,omitempty"`
	Cover     string         `json:"cover,omitempty"`
	Players   []PlayerResult `json:"players"`
	Timestamp int64          `json:"timestamp"`
}

type RoundEndPayload struct {
	RoundResult RoundResult `json:"roundResult"`
}

type Standing struct {
	PlayerID string `json:"playerId"`
	Pseudo   string `json:"pseudo"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
	TeamID   string `json:"teamId,omitempty"`
}

type GameOverPayload struct {
	Standings []Standing `json:"standings"`
	Partial   bool       `json:"partial,omitempty"`
}

// GameOverEnvelope is the one-way notification handed to the results sink
// when a game reaches FINISHED.
type GameOverEnvelope struct {
	RoomCode   string     `json:"roomCode"`
	GameMode   string     `json:"gameMode"`
	Rounds     int        `json:"rounds"`
	Partial    bool       `json:"partial"`
	FinishedAt int64      `json:"finishedAt"`
	Standings  []Standing `json:"standings"`
}

type TimeSyncPayload struct {
	ServerTime int64 `json:"serverTime"` // ms since epoch
}

type NewMessagePayload struct {
	PlayerID  string `json:"playerId"`
	Pseudo    string `json:"pseudo"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type EmoteReceivedPayload struct {
	PlayerID string `json:"playerId"`
	Pseudo   string `json:"pseudo"`
	Emote    string `json:"emote"`
}

type BuzzerLockedPayload struct {
	PlayerID     string `json:"playerId"`
	Pseudo       string `json:"pseudo"`
	BuzzerTimeMs int64  `json:"buzzerTimeMs"`
}

type PlayerEliminatedPayload struct {
	PlayerID string `json:"playerId"`
	Pseudo   string `json:"pseudo"`
}

type IntroTierUnlockPayload struct {
	Tier       int    `json:"tier"`
	Phase      string `json:"phase"` // "listening" or "guessing"
	DurationMs int64  `json:"durationMs"`
}

type LyricsDataPayload struct {
	Lines      []string `json:"lines"` // blanked lines, "____" per hidden word
	Blanks     int      `json:"blanks"`
	DurationMs int64    `json:"durationMs"`
}

type LyricsResultPayload struct {
	Correct    []bool `json:"correct"`
	ScoreDelta int    `json:"scoreDelta"`
}

type HintReceivedPayload struct {
	Hint     string `json:"hint"`
	HintType string `json:"hintType"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
