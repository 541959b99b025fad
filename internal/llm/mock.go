package llm

import (
	"context"
	"sync"
)

// ScriptedCompleter replays canned responses in order and records every
// request. It is safe for concurrent use.
type ScriptedCompleter struct {
	mu        sync.Mutex
	ModelName string
	Replies   []ScriptedReply
	requests  []Request
}

// ScriptedReply is one canned outcome.
type ScriptedReply struct {
	Content string
	Err     error
}

func (s *ScriptedCompleter) Model() string {
	if s.ModelName == "" {
		return "scripted"
	}
	return s.ModelName
}

// Complete returns the next scripted reply; the last reply repeats once the
// script runs out.
func (s *ScriptedCompleter) Complete(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.requests)
	s.requests = append(s.requests, req)
	if len(s.Replies) == 0 {
		return Response{Model: s.Model()}, nil
	}
	if idx >= len(s.Replies) {
		idx = len(s.Replies) - 1
	}
	reply := s.Replies[idx]
	if reply.Err != nil {
		return Response{}, reply.Err
	}
	return Response{Content: reply.Content, Model: s.Model()}, nil
}

// Requests returns a copy of the requests seen so far.
func (s *ScriptedCompleter) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
