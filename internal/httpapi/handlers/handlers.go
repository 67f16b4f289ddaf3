// Package handlers holds the HTTP handlers behind the public API surface.
package handlers

import (
	"github.com/go-playground/validator/v10"

	"storyreel/internal/orchestrator"
	"storyreel/internal/pkg/logger"
	"storyreel/internal/ports"
	"storyreel/internal/publisher"
	"storyreel/internal/webhook"
	"storyreel/internal/workflow"
)

type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Tracker      *workflow.Tracker
	Webhooks     *webhook.Service
	Publisher    *publisher.Publisher
	Storage      ports.StorageProvider
	Log          *logger.Logger
}

type Handler struct {
	orch      *orchestrator.Orchestrator
	tracker   *workflow.Tracker
	webhooks  *webhook.Service
	publisher *publisher.Publisher
	sp        ports.StorageProvider
	validate  *validator.Validate
	log       *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		orch:      d.Orchestrator,
		tracker:   d.Tracker,
		webhooks:  d.Webhooks,
		publisher: d.Publisher,
		sp:        d.Storage,
		validate:  validator.New(),
		log:       log.WithComponent("httpapi"),
	}
}
