package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fiscalflow/platform/pkg/common/config"
	"github.com/fiscalflow/platform/pkg/common/database"
	"github.com/fiscalflow/platform/pkg/common/kafka"
	"github.com/fiscalflow/platform/pkg/common/logger"
	"github.com/fiscalflow/platform/pkg/detector"
	"github.com/fiscalflow/platform/pkg/dispatcher"
	"github.com/fiscalflow/platform/pkg/document"
	"github.com/fiscalflow/platform/pkg/family"
	"github.com/fiscalflow/platform/pkg/notify"
	"github.com/fiscalflow/platform/pkg/observability/metrics"
	"github.com/fiscalflow/platform/pkg/poller"
	"github.com/fiscalflow/platform/pkg/responses"
	"github.com/fiscalflow/platform/pkg/submitter"
	"github.com/fiscalflow/platform/pkg/sunat"
	"github.com/gorilla/mux"
)

type fiscalService struct {
	repo     *document.Repository
	detector *detector.Detector
	poller   *poller.Manager
}

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Database connection failed")
	}
	defer database.ClosePostgres()

	repo := document.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Migration failed")
	}

	catalog, err := family.Load(cfg.FamilyCatalog)
	if err != nil {
		logger.Log.WithError(err).Warn("Family catalog load failed, using defaults")
	}

	gatewayClient := sunat.NewClient(cfg)

	disp := dispatcher.NewDispatcher(catalog)
	defer disp.Close()

	notifier := notify.NewNotifier(database.GetRedis(), cfg.NotificationChannel)
	defer database.CloseRedis()

	pollManager := poller.NewManager(repo, gatewayClient, disp, notifier, catalog, cfg.PollInterval, cfg.PollMaxAttempts)
	worker := submitter.NewWorker(repo, gatewayClient, disp, pollManager, notifier)
	respConsumer := responses.NewConsumer(repo, pollManager, notifier)
	det := detector.NewDetector(repo, catalog, disp, cfg.DetectorInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Resume polling for documents stranded in flight by the previous run.
	if recovered, err := pollManager.RecoverPending(ctx); err != nil {
		logger.Log.WithError(err).Error("Recovery scan failed")
	} else if recovered > 0 {
		logger.Log.WithField("documents", recovered).Info("Recovered in-flight documents")
	}

	var consumers []*kafka.Consumer
	for _, name := range catalog.Names() {
		for i := 0; i < cfg.WorkerCount; i++ {
			c := kafka.NewConsumer(family.Topic(name, family.StageRequests), cfg.KafkaGroupID)
			consumers = append(consumers, c)
			go func(c *kafka.Consumer) {
				if err := c.Consume(ctx, worker.Handle); err != nil && ctx.Err() == nil {
					logger.Log.WithError(err).Error("Request consumer stopped")
				}
			}(c)
		}

		rc := kafka.NewConsumer(family.Topic(name, family.StageResponses), cfg.KafkaGroupID+"-responses")
		consumers = append(consumers, rc)
		go func(c *kafka.Consumer) {
			if err := c.Consume(ctx, respConsumer.Handle); err != nil && ctx.Err() == nil {
				logger.Log.WithError(err).Error("Response consumer stopped")
			}
		}(rc)
	}

	go det.Run(ctx)

	service := &fiscalService{repo: repo, detector: det, poller: pollManager}

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods("GET")
	router.HandleFunc("/api/v1/detector/run", service.handleForceDetect).Methods("POST")
	router.HandleFunc("/api/v1/documents/{id}/poll", service.handleForcePoll).Methods("POST")
	router.HandleFunc("/api/v1/documents/{id}/reset", service.handleReset).Methods("POST")
	router.HandleFunc("/api/v1/pollings", service.handleListPollings).Methods("GET")

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler: router,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Fiscal pipeline service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down fiscal pipeline service...")
	cancel()

	// In-flight documents stay in_flight in the store; the next process
	// recovers them at startup.
	pollManager.Shutdown()
	for _, c := range consumers {
		c.Close()
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Fiscal pipeline service stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (s *fiscalService) handleForceDetect(w http.ResponseWriter, r *http.Request) {
	queued, err := s.detector.RunOnce(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"queued": queued})
}

func (s *fiscalService) handleForcePoll(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid document id", http.StatusBadRequest)
		return
	}
	if !s.poller.ForcePoll(r.Context(), id) {
		http.Error(w, "No active polling task for document", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"polled": id})
}

func (s *fiscalService) handleReset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, "Invalid document id", http.StatusBadRequest)
		return
	}
	reset, err := s.repo.ResetToDraft(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !reset {
		http.Error(w, "Document is not in failed state", http.StatusConflict)
		return
	}
	writeJSON(w, map[string]interface{}{"reset": id})
}

func (s *fiscalService) handleListPollings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.poller.Active())
}

func pathID(r *http.Request) (uint, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	return uint(id), err
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}
