package resolveproducts

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

const TaskType = "resolve-catalog-products"

var ErrResolutionFailed = errors.New("RESOLUTION_FAILED")

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

// Handle processes one resolve-catalog-products job.
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

	output, err := h.process(ctx, job)
	if err != nil {
		stdErr := apperrors.Normalize(err)
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

func (h *Handler) process(ctx context.Context, job entities.Job) (*Output, error) {
	if h.validator != nil {
		if err := h.validator.ValidateJSON(TaskType, job.Variables); err != nil {
			return nil, err
		}
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, apperrors.NewInvalidAnnotationInputError(fmt.Sprintf("parse input: %v", err))
	}
	return h.Execute(ctx, &input)
}

// Execute resolves every title against the job's catalog.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if len(input.Titles) == 0 {
		return nil, apperrors.NewInvalidAnnotationInputError("titles must not be empty")
	}
	if len(input.Titles) > h.config.MaxTitles {
		return nil, apperrors.NewBatchTooLargeError(len(input.Titles), h.config.MaxTitles)
	}

	resolutions, err := h.service.ResolveTitles(ctx, input.Titles, service.Request{
		Products:   input.Products,
		ProductIDs: input.ProductIDs,
		Query:      input.Query,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResolutionFailed, err)
	}

	out := &Output{
		Resolutions: resolutions,
		MatchedIDs:  []string{},
		Unmatched:   []string{},
	}
	seen := make(map[string]bool)
	for _, r := range resolutions {
		if r.MatchedEntity == nil {
			out.Unmatched = append(out.Unmatched, r.Title)
			continue
		}
		if !seen[r.MatchedEntity.ID] {
			seen[r.MatchedEntity.ID] = true
			out.MatchedIDs = append(out.MatchedIDs, r.MatchedEntity.ID)
		}
	}
	return out, nil
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
		"jobKey":  job.Key,
		"matched": len(output.MatchedIDs),
	})
}

func (h *Handler) TaskType() string { return TaskType }
