package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/glowdesk/engage/internal/engine"
	"github.com/glowdesk/engage/internal/models"
	"github.com/glowdesk/engage/internal/scheduler"
	"github.com/glowdesk/engage/internal/util"
)

// turnRequest is the body of POST /v1/turns.
type turnRequest struct {
	ThreadID  string `json:"thread_id"`
	Message   string `json:"message"`
	Recipient string `json:"recipient,omitempty"`
}

// handleTurn runs one full decision turn for an inbound customer message and
// persists the updated conversation state.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if req.Message == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("message is required"))
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = util.GenerateThreadID()
	}

	state, err := s.store.GetConversationState(req.ThreadID)
	if err != nil {
		slog.Error("Server.handleTurn: state load failed", "error", err, "thread_id", req.ThreadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to load conversation state"))
		return
	}
	if state == nil {
		created := models.NewConversationState(req.ThreadID)
		state = &created
	}
	if req.Recipient != "" {
		state.Recipient = req.Recipient
	}

	now := time.Now().In(scheduler.Beijing)
	inbound := models.Message{Role: models.RoleUser, Content: req.Message, Timestamp: now}
	if err := s.store.AddMessage(req.ThreadID, inbound); err != nil {
		slog.Error("Server.handleTurn: message append failed", "error", err, "thread_id", req.ThreadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to record message"))
		return
	}

	history, err := s.store.GetMessages(req.ThreadID)
	if err != nil {
		slog.Error("Server.handleTurn: history load failed", "error", err, "thread_id", req.ThreadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to load history"))
		return
	}

	result, err := s.engine.DecideTurn(r.Context(), engine.TurnInput{
		ThreadID:  req.ThreadID,
		Stage:     state.Stage,
		TurnCount: state.TurnCount,
		History:   history,
		Now:       now,
	})
	if err != nil {
		slog.Error("Server.handleTurn: decision failed", "error", err, "thread_id", req.ThreadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to decide turn"))
		return
	}

	state.Stage = result.Stage
	state.TurnCount++
	state.Emotion = result.Assessment.Emotion
	state.IntentLevel = result.Assessment.IntentLevel
	state.InvitationConfirmed = result.Assessment.InvitationConfirmed
	if result.Assessment.InvitationTime != "" {
		state.InvitationTime = result.Assessment.InvitationTime
	}
	if result.Assessment.InvitationProject != "" {
		state.InvitationProject = result.Assessment.InvitationProject
	}
	state.UserLastReplyTime = now.Truncate(time.Minute).Format(time.RFC3339)
	if err := s.store.SaveConversationState(*state); err != nil {
		slog.Error("Server.handleTurn: state save failed", "error", err, "thread_id", req.ThreadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to save conversation state"))
		return
	}

	reply := models.Message{Role: models.RoleAssistant, Content: result.Final.Text, Timestamp: time.Now().In(scheduler.Beijing)}
	if err := s.store.AddMessage(req.ThreadID, reply); err != nil {
		slog.Error("Server.handleTurn: reply append failed", "error", err, "thread_id", req.ThreadID)
	}

	writeJSONResponse(w, http.StatusOK, models.Success(struct {
		ThreadID string `json:"thread_id"`
		engine.TurnResult
	}{req.ThreadID, result}))
}

// proactiveRequest is the body of POST /v1/proactive/decisions.
type proactiveRequest struct {
	ThreadID string               `json:"thread_id"`
	Mode     models.SchedulerMode `json:"mode"`
	Arm      bool                 `json:"arm,omitempty"`
}

// handleProactiveDecision computes the next proactive event for a thread,
// persists the bookkeeping and optionally arms a dispatch timer.
func (s *Server) handleProactiveDecision(w http.ResponseWriter, r *http.Request) {
	var req proactiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if req.ThreadID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("thread_id is required"))
		return
	}
	if req.Mode != models.ModeTriggered && req.Mode != models.ModeUntriggered {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("mode must be triggered or untriggered"))
		return
	}

	state, err := s.store.GetConversationState(req.ThreadID)
	if err != nil {
		slog.Error("Server.handleProactiveDecision: state load failed", "error", err, "thread_id", req.ThreadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to load conversation state"))
		return
	}
	if state == nil {
		created := models.NewConversationState(req.ThreadID)
		state = &created
	}

	history, err := s.store.GetMessages(req.ThreadID)
	if err != nil {
		slog.Error("Server.handleProactiveDecision: history load failed", "error", err, "thread_id", req.ThreadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to load history"))
		return
	}

	sc := models.SchedulingContext{
		LastEventType:           state.LastEventType,
		LastEventTime:           state.LastEventTime,
		UserLastReplyTime:       state.UserLastReplyTime,
		LastActiveSendTime:      state.LastActiveSendTime,
		AppointmentTime:         state.AppointmentTime,
		TreatmentCompletionInfo: "",
		History:                 history,
	}
	decision, usage := s.scheduler.DecideNext(r.Context(), req.Mode, sc)

	state.UserLastReplyTime = decision.UserLastReplyTime
	state.LastActiveSendTime = decision.LastActiveSendTime
	state.LastEventType = decision.Event.EventType
	state.LastEventTime = decision.Event.EventTime
	if err := s.store.SaveConversationState(*state); err != nil {
		slog.Error("Server.handleProactiveDecision: state save failed", "error", err, "thread_id", req.ThreadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to save conversation state"))
		return
	}
	if err := s.store.SaveScheduledEvent(req.ThreadID, decision.Event); err != nil {
		slog.Error("Server.handleProactiveDecision: event save failed", "error", err, "thread_id", req.ThreadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to save scheduled event"))
		return
	}

	if req.Arm && s.dispatcher != nil {
		if _, err := s.dispatcher.Schedule(req.ThreadID, state.Recipient, decision.Event, history); err != nil {
			// A stale or past event time is a decision outcome, not a server fault.
			decision.Trace = append(decision.Trace, "not armed: "+err.Error())
			slog.Warn("Server.handleProactiveDecision: not armed", "error", err, "thread_id", req.ThreadID)
		}
	}

	writeJSONResponse(w, http.StatusOK, models.Scheduled(struct {
		models.SchedulingDecision
		Usage models.TokenUsage `json:"token_usage"`
	}{decision, usage}))
}

// handleGetThread returns the persisted state and history for a thread.
func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	if threadID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("thread id is required"))
		return
	}

	state, err := s.store.GetConversationState(threadID)
	if err != nil {
		slog.Error("Server.handleGetThread: state load failed", "error", err, "thread_id", threadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to load conversation state"))
		return
	}
	if state == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("thread not found"))
		return
	}
	history, err := s.store.GetMessages(threadID)
	if err != nil {
		slog.Error("Server.handleGetThread: history load failed", "error", err, "thread_id", threadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to load history"))
		return
	}
	event, err := s.store.GetScheduledEvent(threadID)
	if err != nil {
		slog.Error("Server.handleGetThread: event load failed", "error", err, "thread_id", threadID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to load scheduled event"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(struct {
		State   *models.ConversationState `json:"state"`
		History []models.Message          `json:"history"`
		Event   *models.EventInstance     `json:"event,omitempty"`
	}{state, history, event}))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success("healthy"))
}
