package model

import "time"

type Source struct {
	Source string  `json:"source"`
	Page   *int    `json:"page,omitempty"`
	Score  float64 `json:"score"`
}

type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

type ChatResult struct {
	Response string     `json:"response"`
	Sources  []Source   `json:"sources"`
	Tokens   TokenUsage `json:"tokens"`
}

// Turn is one journaled question/answer pair.
type Turn struct {
	Time     time.Time `json:"time"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
}
