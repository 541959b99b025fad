// Package a2a defines the agent-to-agent message, task and agent card types
// carried inside JSON-RPC envelopes.
package a2a

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	id "finbench/internal/utils/id"
)

// Methods served and called.
const (
	MethodMessageSend   = "message/send"
	MethodMessageStream = "message/stream"
)

// ProtocolVersion is advertised in the agent card.
const ProtocolVersion = "0.3.0"

// Role of a message author.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Part kinds.
const (
	PartKindText = "text"
	PartKindData = "data"
)

// Part is one piece of message or artifact content: text or structured data.
type Part struct {
	Kind string         `json:"kind"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// DataPart builds a structured data part.
func DataPart(data map[string]any) Part {
	return Part{Kind: PartKindData, Data: data}
}

// Message is a single A2A message.
type Message struct {
	Kind      string         `json:"kind"`
	MessageID string         `json:"messageId"`
	Role      Role           `json:"role"`
	Parts     []Part         `json:"parts"`
	ContextID string         `json:"contextId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewTextMessage builds a message with a single text part.
func NewTextMessage(role Role, text string) Message {
	return Message{Kind: "message", MessageID: id.NewMessageID(), Role: role, Parts: []Part{TextPart(text)}}
}

// Text joins the message's text parts.
func (m Message) Text() string {
	return joinText(m.Parts)
}

// MessageSendParams are the params of message/send and message/stream.
type MessageSendParams struct {
	Message  Message        `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateRejected  TaskState = "rejected"
	TaskStateCanceled  TaskState = "canceled"
)

// Terminal reports whether no further updates follow.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateRejected, TaskStateCanceled:
		return true
	}
	return false
}

// TaskStatus is the current state plus an optional message.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

// NewStatus builds a status stamped with the current time.
func NewStatus(state TaskState, text string) TaskStatus {
	st := TaskStatus{State: state, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if text != "" {
		msg := NewTextMessage(RoleAgent, text)
		st.Message = &msg
	}
	return st
}

// Artifact is an output of a task.
type Artifact struct {
	ArtifactID  string `json:"artifactId"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Parts       []Part `json:"parts"`
}

// Task is the stateful unit of work returned for a request.
type Task struct {
	Kind      string     `json:"kind"`
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	History   []Message  `json:"history,omitempty"`
}

// TaskStatusUpdateEvent is streamed when a task changes state.
type TaskStatusUpdateEvent struct {
	Kind      string     `json:"kind"`
	TaskID    string     `json:"taskId"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Final     bool       `json:"final"`
}

// TaskArtifactUpdateEvent is streamed when a task produces an artifact.
type TaskArtifactUpdateEvent struct {
	Kind      string   `json:"kind"`
	TaskID    string   `json:"taskId"`
	ContextID string   `json:"contextId"`
	Artifact  Artifact `json:"artifact"`
	LastChunk bool     `json:"lastChunk"`
}

// NewStatusEvent builds a status-update event.
func NewStatusEvent(taskID, contextID string, status TaskStatus, final bool) TaskStatusUpdateEvent {
	return TaskStatusUpdateEvent{Kind: "status-update", TaskID: taskID, ContextID: contextID, Status: status, Final: final}
}

// NewArtifactEvent builds an artifact-update event.
func NewArtifactEvent(taskID, contextID string, artifact Artifact) TaskArtifactUpdateEvent {
	return TaskArtifactUpdateEvent{Kind: "artifact-update", TaskID: taskID, ContextID: contextID, Artifact: artifact, LastChunk: true}
}

// Result is the decoded result of message/send: either a message or a task.
type Result struct {
	Message *Message
	Task    *Task
}

// DecodeResult decodes a message/send result by its kind.
func DecodeResult(raw json.RawMessage) (Result, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Result{}, fmt.Errorf("decode result: %w", err)
	}
	switch probe.Kind {
	case "message":
		var m Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return Result{}, fmt.Errorf("decode message: %w", err)
		}
		return Result{Message: &m}, nil
	case "task":
		var t Task
		if err := json.Unmarshal(raw, &t); err != nil {
			return Result{}, fmt.Errorf("decode task: %w", err)
		}
		return Result{Task: &t}, nil
	}
	return Result{}, fmt.Errorf("unsupported result kind %q", probe.Kind)
}

// Parts returns every content part of the result: the message parts, or the
// task's artifact parts followed by its status message parts.
func (r Result) Parts() []Part {
	if r.Message != nil {
		return r.Message.Parts
	}
	if r.Task == nil {
		return nil
	}
	var parts []Part
	for _, a := range r.Task.Artifacts {
		parts = append(parts, a.Parts...)
	}
	if r.Task.Status.Message != nil {
		parts = append(parts, r.Task.Status.Message.Parts...)
	}
	return parts
}

// FirstData returns the first data part's payload, if any.
func FirstData(parts []Part) (map[string]any, bool) {
	for _, p := range parts {
		if p.Kind == PartKindData && p.Data != nil {
			return p.Data, true
		}
	}
	return nil, false
}

// JoinText concatenates the text parts.
func JoinText(parts []Part) string {
	return joinText(parts)
}

func joinText(parts []Part) string {
	var texts []string
	for _, p := range parts {
		if p.Kind == PartKindText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}
