package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"neuron_trainer/neuron_controllers"
	"neuron_trainer/neuron_core"
	"neuron_trainer/neuron_datasets"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/wcharczuk/go-chart"
	"go.uber.org/zap"
)

const customDatasetName = "CUSTOM"

type controlServer struct {
	controller   *neuron_controllers.TrainingController
	broadcaster  *neuron_controllers.StateBroadcaster
	session      *neuron_controllers.SessionController
	dbController *neuron_controllers.DatabaseController
	logger       *zap.Logger
}

type datasetRequestBody struct {
	Name     string                    `json:"name"`
	Examples []neuron_datasets.Example `json:"examples"`
}

type learningRateRequestBody struct {
	LearningRate float64 `json:"learning_rate"`
}

type epochsPerBurstRequestBody struct {
	EpochsPerBurst int `json:"epochs_per_burst"`
}

type stepResponseBody struct {
	MeanError float64                          `json:"mean_error"`
	State     neuron_controllers.TrainingState `json:"state"`
}

type errorResponseBody struct {
	Error string `json:"error"`
}

func (s *controlServer) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/state", s.stateHandler).Methods(http.MethodGet)
	r.HandleFunc("/datasets", s.listDatasetsHandler).Methods(http.MethodGet)
	r.HandleFunc("/dataset", s.loadDatasetHandler).Methods(http.MethodPost)
	r.HandleFunc("/step", s.stepHandler).Methods(http.MethodPost)
	r.HandleFunc("/start", s.startHandler).Methods(http.MethodPost)
	r.HandleFunc("/stop", s.stopHandler).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.resetHandler).Methods(http.MethodPost)
	r.HandleFunc("/learning-rate", s.learningRateHandler).Methods(http.MethodPost)
	r.HandleFunc("/epochs-per-burst", s.epochsPerBurstHandler).Methods(http.MethodPost)
	r.HandleFunc("/events", s.realTimeStateHandler).Methods(http.MethodGet)
	r.HandleFunc("/sessions", s.listSessionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/sessions/finished", s.listFinishedSessionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.listRunsHandler).Methods(http.MethodGet)
	r.HandleFunc("/runs/summary", s.runSummaryHandler).Methods(http.MethodGet)
	r.HandleFunc("/charts/history.png", s.historyChartHandler).Methods(http.MethodGet)
	r.HandleFunc("/charts/activation.png", s.activationChartHandler).Methods(http.MethodGet)
	return r
}

func (s *controlServer) stateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.State())
}

func (s *controlServer) listDatasetsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, neuron_datasets.PresetNames())
}

// loadDatasetHandler loads a preset by name, or the inline examples when
// the body carries any.
func (s *controlServer) loadDatasetHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody datasetRequestBody
	if !s.decodeBody(w, r, &requestBody) {
		return
	}

	var dataset neuron_datasets.Dataset
	var err error
	if len(requestBody.Examples) > 0 {
		name := requestBody.Name
		if name == "" {
			name = customDatasetName
		}
		dataset, err = neuron_datasets.NewDataset(name, requestBody.Examples)
	} else {
		dataset, err = neuron_datasets.DatasetFactory(requestBody.Name)
	}
	if err == nil {
		err = s.controller.LoadDataset(dataset)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.State())
}

func (s *controlServer) stepHandler(w http.ResponseWriter, r *http.Request) {
	meanError, err := s.controller.StepOnce()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponseBody{MeanError: meanError, State: s.controller.State()})
}

func (s *controlServer) startHandler(w http.ResponseWriter, r *http.Request) {
	s.respondWithState(w, s.controller.Start())
}

func (s *controlServer) stopHandler(w http.ResponseWriter, r *http.Request) {
	s.respondWithState(w, s.controller.Stop())
}

func (s *controlServer) resetHandler(w http.ResponseWriter, r *http.Request) {
	s.controller.Reset()
	s.respondWithState(w, nil)
}

func (s *controlServer) learningRateHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody learningRateRequestBody
	if !s.decodeBody(w, r, &requestBody) {
		return
	}
	s.respondWithState(w, s.controller.SetLearningRate(requestBody.LearningRate))
}

func (s *controlServer) epochsPerBurstHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody epochsPerBurstRequestBody
	if !s.decodeBody(w, r, &requestBody) {
		return
	}
	s.respondWithState(w, s.controller.SetEpochsPerBurst(requestBody.EpochsPerBurst))
}

// realTimeStateHandler streams every state change as a server sent event
// until the client goes away.
func (s *controlServer) realTimeStateHandler(w http.ResponseWriter, r *http.Request) {
	// Set http headers required for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	clientGone := r.Context().Done()
	rc := http.NewResponseController(w)

	messages, cancel := s.broadcaster.Subscribe()
	defer cancel()

	if latest, ok := s.broadcaster.Latest(); ok {
		if err := writeEvent(w, rc, latest); err != nil {
			return
		}
	} else if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-clientGone:
			return
		case message, ok := <-messages:
			if !ok {
				return
			}
			if err := writeEvent(w, rc, message); err != nil {
				s.logger.Debug("event stream closed", zap.Error(err))
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, message neuron_controllers.StateMessage) error {
	parsedState, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", parsedState); err != nil {
		return err
	}
	return rc.Flush()
}

func (s *controlServer) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.OpenRuns())
}

func (s *controlServer) listFinishedSessionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Records())
}

func (s *controlServer) listRunsHandler(w http.ResponseWriter, r *http.Request) {
	if s.dbController == nil {
		s.writeError(w, neuron_controllers.ErrNoRunStore)
		return
	}
	jsonString, err := s.dbController.FetchRunsAsJSON(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, jsonString)
}

func (s *controlServer) runSummaryHandler(w http.ResponseWriter, r *http.Request) {
	if s.dbController == nil {
		s.writeError(w, neuron_controllers.ErrNoRunStore)
		return
	}
	summary, err := s.dbController.QueryRunSummary(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *controlServer) historyChartHandler(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = chartViewError
	}
	graph, err := historyChart(s.controller.History(), s.controller.RecordingStride(), view)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeChart(w, graph)
}

func (s *controlServer) activationChartHandler(w http.ResponseWriter, r *http.Request) {
	s.writeChart(w, activationChart())
}

// writeChart renders into a buffer first so a failed render still gets a JSON error.
func (s *controlServer) writeChart(w http.ResponseWriter, graph chart.Chart) {
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf.Bytes())
}

func (s *controlServer) respondWithState(w http.ResponseWriter, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.controller.State())
}

func (s *controlServer) decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponseBody{Error: "Invalid JSON body"})
		return false
	}
	return true
}

func (s *controlServer) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponseBody{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, neuron_controllers.ErrPrecondition):
		return http.StatusConflict
	case errors.Is(err, neuron_controllers.ErrNoRunStore):
		return http.StatusNotFound
	case errors.Is(err, neuron_controllers.ErrInvalidSetting),
		errors.Is(err, neuron_datasets.ErrEmptyDataset),
		errors.Is(err, neuron_datasets.ErrUnknownPreset),
		errors.Is(err, neuron_core.ErrDimensionMismatch),
		errors.Is(err, neuron_core.ErrNonFinite):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
