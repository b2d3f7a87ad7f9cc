package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/agentflow/logger"
	"github.com/mohitkumar/agentflow/metadata"
	"github.com/mohitkumar/agentflow/persistence"
	"github.com/mohitkumar/agentflow/service"
	"github.com/mohitkumar/agentflow/stream"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port                int
	metadataService     metadata.MetadataService
	conversationService *service.ConversationService
	hub                 *stream.Hub
}

func NewServer(httpPort int, metadataService metadata.MetadataService, conversationService *service.ConversationService, hub *stream.Hub) (*Server, error) {

	s := &Server{
		Server: http.Server{
			Addr:              fmt.Sprintf(":%d", httpPort),
			IdleTimeout:       2 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		},
		metadataService:     metadataService,
		conversationService: conversationService,
		hub:                 hub,
		Port:                httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/metadata/flow", s.HandleCreateFlow).Methods(http.MethodPost)
	router.HandleFunc("/metadata/flow/{id}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/metadata/flow/{id}", s.HandleDeleteFlow).Methods(http.MethodDelete)

	router.HandleFunc("/metadata/attribute", s.HandleCreateAttributeDefinition).Methods(http.MethodPost)
	router.HandleFunc("/metadata/attribute/{type}", s.HandleGetAttributeDefinitions).Methods(http.MethodGet)

	router.HandleFunc("/conversation", s.HandleCreateConversation).Methods(http.MethodPost)
	router.HandleFunc("/conversation/{id}", s.HandleGetConversation).Methods(http.MethodGet)
	router.HandleFunc("/conversation/{id}/items", s.HandleListItems).Methods(http.MethodGet)
	router.HandleFunc("/conversation/{id}/message", s.HandleMessage).Methods(http.MethodPost)
	router.HandleFunc("/conversation/{id}/flow", s.HandleActivateFlow).Methods(http.MethodPost)
	router.HandleFunc("/conversation/{id}/assign", s.HandleAssignConversation).Methods(http.MethodPost)
	router.HandleFunc("/conversation/{id}/session", s.HandleGetSession).Methods(http.MethodGet)
	router.HandleFunc("/conversation/{id}/stream", s.HandleStream).Methods(http.MethodGet)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI, zap.String("method", r.Method))
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message map[string]any) {
	respondWithJSON(w, http.StatusOK, message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps domain errors to status codes.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case persistence.IsNotFound(err):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrFlowNotActivated):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrInvalidAssignee), errors.Is(err, service.ErrEmptyMessage):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
