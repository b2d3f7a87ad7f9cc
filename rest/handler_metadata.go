package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/model"
	"github.com/mohitkumar/agentflow/persistence"
)

func (s *Server) HandleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var fl model.FlowDefinition
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&fl); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid flow definition")
		return
	}
	err := s.metadataService.ValidateFlow(fl)
	if err != nil {
		logger.Error("error validating flow", zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.metadataService.SaveFlow(r.Context(), fl)
	if err != nil {
		logger.Error("error creating flow", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error creating flow")
		return
	}
	respondOK(w, map[string]any{"created": true, "id": fl.Id})
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	flowId := mux.Vars(r)["id"]
	fl, err := s.metadataService.GetFlowDefinition(r.Context(), flowId)
	if err != nil {
		if persistence.IsNotFound(err) {
			logger.Info("flow does not exist", zap.String("id", flowId))
			respondWithError(w, http.StatusNotFound, "flow does not exist")
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, fl)
}

func (s *Server) HandleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	flowId := mux.Vars(r)["id"]
	if err := s.metadataService.DeleteFlow(r.Context(), flowId); err != nil {
		logger.Error("error deleting flow", zap.String("id", flowId), zap.Error(err))
		respondWithServiceError(w, err)
		return
	}
	respondOK(w, map[string]any{"deleted": true})
}

func (s *Server) HandleCreateAttributeDefinition(w http.ResponseWriter, r *http.Request) {
	var def model.AttributeDefinition
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid attribute definition")
		return
	}
	if err := s.metadataService.SaveAttributeDefinition(r.Context(), def); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, map[string]any{"created": true})
}

func (s *Server) HandleGetAttributeDefinitions(w http.ResponseWriter, r *http.Request) {
	attrType := model.AttributeType(mux.Vars(r)["type"])
	if !attrType.Valid() {
		respondWithError(w, http.StatusBadRequest, "invalid attribute type")
		return
	}
	defs, err := s.metadataService.GetAttributeDefinitions(r.Context(), attrType)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, defs)
}
