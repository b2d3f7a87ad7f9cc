package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request")
		return
	}
	conv, err := s.conversationService.CreateConversation(r.Context(), req)
	if err != nil {
		logger.Error("error creating conversation", zap.Error(err))
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, conv)
}

func (s *Server) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.conversationService.GetConversation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, conv)
}

func (s *Server) HandleListItems(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	items, err := s.conversationService.ListItems(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, items)
}

func (s *Server) HandleMessage(w http.ResponseWriter, r *http.Request) {
	conversationId := mux.Vars(r)["id"]
	var req model.MessageRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid message")
		return
	}
	res, err := s.conversationService.HandleMessage(r.Context(), conversationId, req)
	if err != nil {
		logger.Error("error handling message", zap.String("conversationId", conversationId), zap.Error(err))
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (s *Server) HandleActivateFlow(w http.ResponseWriter, r *http.Request) {
	conversationId := mux.Vars(r)["id"]
	var req model.ActivateFlowRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.FlowId) == 0 {
		respondWithError(w, http.StatusBadRequest, "flowId is required")
		return
	}
	res, err := s.conversationService.ActivateFlow(r.Context(), conversationId, req.FlowId)
	if err != nil {
		logger.Error("error activating flow", zap.String("conversationId", conversationId), zap.String("flowId", req.FlowId), zap.Error(err))
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (s *Server) HandleAssignConversation(w http.ResponseWriter, r *http.Request) {
	conversationId := mux.Vars(r)["id"]
	var req model.AssignRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request")
		return
	}
	res, err := s.conversationService.AssignConversation(r.Context(), conversationId, req.AssignedTo)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.conversationService.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session)
}

func (s *Server) HandleStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondWithError(w, http.StatusNotFound, "streaming disabled")
		return
	}
	conversationId := mux.Vars(r)["id"]
	if _, err := s.conversationService.GetConversation(r.Context(), conversationId); err != nil {
		respondWithServiceError(w, err)
		return
	}
	if err := s.hub.Subscribe(w, r, conversationId); err != nil {
		logger.Warn("stream subscription failed", zap.String("conversationId", conversationId), zap.Error(err))
	}
}
