package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"finbench/evaluation/orchestrator"
	"finbench/internal/a2a"
	"finbench/internal/domain/benchmark"
	"finbench/internal/jsonrpc"
	"finbench/internal/logging"
	id "finbench/internal/utils/id"
)

const maxRequestBytes = 1 << 20

func (s *Server) handleRPC(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBytes))
	if err != nil {
		c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(nil, jsonrpc.ParseError, "Failed to read request body", err.Error()))
		return
	}
	req, err := jsonrpc.UnmarshalRequest(body)
	if err != nil {
		c.JSON(http.StatusOK, rpcErrorResponse(nil, err))
		return
	}

	switch req.Method {
	case a2a.MethodMessageSend:
		s.handleSend(c, req)
	case a2a.MethodMessageStream:
		s.handleStream(c, req)
	default:
		c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(req.ID, jsonrpc.MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil))
	}
}

func rpcErrorResponse(reqID any, err error) *jsonrpc.Response {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return jsonrpc.NewErrorResponse(reqID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}
	return jsonrpc.NewErrorResponse(reqID, jsonrpc.InternalError, err.Error(), nil)
}

// decodeEvaluation pulls the evaluation request out of the message: a data
// part wins over text.
func decodeEvaluation(req *jsonrpc.Request) (a2a.Message, orchestrator.Request, error) {
	var params a2a.MessageSendParams
	if err := req.DecodeParams(&params); err != nil {
		return a2a.Message{}, orchestrator.Request{}, err
	}
	msg := params.Message
	if len(msg.Parts) == 0 {
		return msg, orchestrator.Request{}, &jsonrpc.RPCError{Code: jsonrpc.InvalidParams, Message: "Message has no parts"}
	}

	var raw []byte
	if data, ok := a2a.FirstData(msg.Parts); ok {
		encoded, err := json.Marshal(data)
		if err != nil {
			return msg, orchestrator.Request{}, &jsonrpc.RPCError{Code: jsonrpc.InvalidParams, Message: "Invalid data part", Data: err.Error()}
		}
		raw = encoded
	} else {
		raw = []byte(strings.TrimSpace(msg.Text()))
	}
	evalReq, err := orchestrator.ParseRequest(raw)
	return msg, evalReq, err
}

func (s *Server) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func newTask(msg a2a.Message) a2a.Task {
	contextID := msg.ContextID
	if contextID == "" {
		contextID = id.NewContextID()
	}
	taskID := msg.TaskID
	if taskID == "" {
		taskID = id.NewRunID()
	}
	return a2a.Task{
		Kind:      "task",
		ID:        taskID,
		ContextID: contextID,
		Status:    a2a.NewStatus(a2a.TaskStateSubmitted, ""),
		History:   []a2a.Message{msg},
	}
}

// reportArtifact renders the report as a text summary plus structured data.
func reportArtifact(report *orchestrator.Report) (a2a.Artifact, error) {
	encoded, err := json.Marshal(report)
	if err != nil {
		return a2a.Artifact{}, fmt.Errorf("encode report: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(encoded, &data); err != nil {
		return a2a.Artifact{}, fmt.Errorf("decode report: %w", err)
	}
	return a2a.Artifact{
		ArtifactID:  id.NewArtifactID(),
		Name:        ArtifactName,
		Description: "Scores for risk classification, business summary and consistency check",
		Parts:       []a2a.Part{a2a.TextPart(report.Feedback), a2a.DataPart(data)},
	}, nil
}

func failureState(err error) a2a.TaskState {
	switch {
	case errors.Is(err, benchmark.ErrInvalidRequest):
		return a2a.TaskStateRejected
	case errors.Is(err, context.Canceled):
		return a2a.TaskStateCanceled
	default:
		return a2a.TaskStateFailed
	}
}

func (s *Server) handleSend(c *gin.Context, req *jsonrpc.Request) {
	msg, evalReq, err := decodeEvaluation(req)
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		c.JSON(http.StatusOK, rpcErrorResponse(req.ID, err))
		return
	}

	task := newTask(msg)
	logger := logging.FromContext(c.Request.Context(), s.logger)
	if err == nil {
		err = s.evaluator.Validate(evalReq)
	}
	if err == nil {
		ctx, cancel := s.requestContext(id.WithRunID(c.Request.Context(), task.ID))
		var report *orchestrator.Report
		report, err = s.evaluator.Run(ctx, evalReq, nil)
		cancel()
		if err == nil {
			artifact, aerr := reportArtifact(report)
			if aerr != nil {
				err = aerr
			} else {
				task.Artifacts = []a2a.Artifact{artifact}
				task.Status = a2a.NewStatus(a2a.TaskStateCompleted, fmt.Sprintf("Overall score %.1f/100", report.OverallScore))
			}
		}
	}
	if err != nil {
		logger.Warn("task %s not completed: %v", task.ID, err)
		task.Status = a2a.NewStatus(failureState(err), err.Error())
	}

	resp, rerr := jsonrpc.NewResponse(req.ID, task)
	if rerr != nil {
		c.JSON(http.StatusOK, jsonrpc.NewErrorResponse(req.ID, jsonrpc.InternalError, rerr.Error(), nil))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// sseWriter serializes events onto the response stream; the orchestrator
// may report from several goroutines.
type sseWriter struct {
	mu     sync.Mutex
	c      *gin.Context
	reqID  any
	logger logging.Logger
}

func (w *sseWriter) send(result any) {
	resp, err := jsonrpc.NewResponse(w.reqID, result)
	if err != nil {
		w.logger.Warn("encode stream event: %v", err)
		return
	}
	w.write(resp)
}

func (w *sseWriter) write(resp *jsonrpc.Response) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.c.Request.Context().Err() != nil {
		return
	}
	w.c.SSEvent("message", resp)
	w.c.Writer.Flush()
}

func (s *Server) handleStream(c *gin.Context, req *jsonrpc.Request) {
	msg, evalReq, err := decodeEvaluation(req)
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		c.JSON(http.StatusOK, rpcErrorResponse(req.ID, err))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	task := newTask(msg)
	w := &sseWriter{c: c, reqID: req.ID, logger: logging.FromContext(c.Request.Context(), s.logger)}
	w.send(task)

	finish := func(state a2a.TaskState, text string) {
		w.send(a2a.NewStatusEvent(task.ID, task.ContextID, a2a.NewStatus(state, text), true))
	}

	if err == nil {
		err = s.evaluator.Validate(evalReq)
	}
	if err != nil {
		finish(failureState(err), err.Error())
		return
	}

	w.send(a2a.NewStatusEvent(task.ID, task.ContextID, a2a.NewStatus(a2a.TaskStateWorking, "Starting multi-task evaluation..."), false))

	ctx, cancel := s.requestContext(id.WithRunID(c.Request.Context(), task.ID))
	defer cancel()
	observer := orchestrator.ObserverFunc(func(_ context.Context, event orchestrator.Event) {
		if event.Phase.Terminal() {
			return
		}
		w.send(a2a.NewStatusEvent(task.ID, task.ContextID, a2a.NewStatus(a2a.TaskStateWorking, progressText(event)), false))
	})

	report, err := s.evaluator.Run(ctx, evalReq, observer)
	if err != nil {
		w.logger.Warn("task %s not completed: %v", task.ID, err)
		finish(failureState(err), err.Error())
		return
	}
	artifact, err := reportArtifact(report)
	if err != nil {
		finish(a2a.TaskStateFailed, err.Error())
		return
	}
	w.send(a2a.NewArtifactEvent(task.ID, task.ContextID, artifact))
	finish(a2a.TaskStateCompleted, fmt.Sprintf("Overall score %.1f/100", report.OverallScore))
}

func progressText(event orchestrator.Event) string {
	text := event.Message
	if text == "" {
		text = string(event.Phase)
	}
	if event.Task != "" {
		text = fmt.Sprintf("[%s] %s", event.Task, text)
	}
	return text
}
