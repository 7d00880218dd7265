// models/models.go
package models

import (
	"time"
)

// RoundRecord 对局记录
type RoundRecord struct {
	ID     uint   `json:"id"`
	RoomID string `json:"room_id"`
	// Seats maps participant id to its seat index for the round.
	Seats     map[string]int `json:"seats"`
	Winners   []string       `json:"winners"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
}

func (r *RoundRecord) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// JoinRequest 加入房间
type JoinRequest struct {
	Path    []string               `json:"path"`
	Name    string                 `json:"name,omitempty"`
	Rules   map[string]interface{} `json:"rules,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// JoinedResponse 加入房间成功
type JoinedResponse struct {
	RoomID        string `json:"room_id"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
}

// BoardState 单个参与者的棋盘
type BoardState struct {
	ID   string      `json:"id"`
	Data interface{} `json:"data"`
}

// StateRequest asks for a participant state change: "ready" or "idle".
type StateRequest struct {
	State string `json:"state"`
}

// SpecialRequest targets another participant with a special. Payload is
// passed through to the target untouched.
type SpecialRequest struct {
	Target  string      `json:"target"`
	Payload interface{} `json:"payload,omitempty"`
}

// BotRequest 添加机器人
type BotRequest struct {
	Options map[string]interface{} `json:"options,omitempty"`
}

// ErrorResponse 错误信息
type ErrorResponse struct {
	Code    uint16 `json:"code"`
	Message string `json:"message"`
}
