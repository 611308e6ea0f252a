package annotatereply

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "assistant-workers/internal/common/errors"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/common/observability"
	"assistant-workers/internal/common/validation"
	"assistant-workers/internal/service"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "annotate-assistant-reply"

var ErrAnnotationFailed = errors.New("ANNOTATION_FAILED")

type Handler struct {
	config       *Config
	service      *service.Service
	validator    *validation.Validator
	errorHandler *apperrors.ErrorHandler
	obs          *observability.Observability
	logger       logger.Logger
}

type HandlerOptions struct {
	Config        *Config
	Service       *service.Service
	Validator     *validation.Validator
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("%s needs an annotation service", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.With(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       cfg,
		service:      opts.Service,
		validator:    opts.Validator,
		errorHandler: apperrors.NewErrorHandler(log),
		obs:          opts.Observability,
		logger:       log,
	}, nil
}

// Handle processes one annotate-assistant-reply job.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := h.parseInput(job)
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
			h.obs.RecordJobProcessed(ctx, TaskType, "completed")
			h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
			return
		}
	}

	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	if h.validator != nil {
		if err := h.validator.ValidateJSON(TaskType, job.Variables); err != nil {
			return nil, err
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, apperrors.NewInvalidAnnotationInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute annotates the job's reply. It is exported for direct use in tests
// and tooling.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	resp, err := h.service.Annotate(ctx, input.request())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnnotationFailed, err)
	}

	h.logger.Info("reply annotated", map[string]interface{}{
		"annotationId":    resp.ID,
		"recommendations": len(resp.Recommendations),
		"matched":         resp.Matched(),
		"cached":          resp.Cached,
	})

	return &Output{
		AnnotationID:       resp.ID,
		Segments:           resp.Segments,
		Recommendations:    resp.Recommendations,
		RenderMode:         resp.Mode,
		HasRecommendations: resp.HasRecommendations,
		CatalogVersion:     resp.CatalogVersion,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		h.errorHandler.HandleJobError(ctx, client, job, apperrors.NewInternalError(err))
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
		return
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":             job.Key,
		"hasRecommendations": output.HasRecommendations,
	})
}

func (h *Handler) TaskType() string { return TaskType }
