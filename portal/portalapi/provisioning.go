// Copyright (C) 2024 ParentLink, Inc.
// See LICENSE for copying information.

package portalapi

import (
	"encoding/json"
	"net/http"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/parentlink/parentlink/portal/provisioning"
)

// ErrProvisioningAPI - portal provisioning api error type.
var ErrProvisioningAPI = errs.Class("portalapi provisioning")

// Provisioning is an API controller for bulk parent-account
// provisioning.
type Provisioning struct {
	log     *zap.Logger
	service *provisioning.Service
}

// NewProvisioning creates a new provisioning controller.
func NewProvisioning(log *zap.Logger, service *provisioning.Service) *Provisioning {
	return &Provisioning{
		log:     log,
		service: service,
	}
}

// BulkGenerate handles POST /api/v0/provisioning/bulk. Validation
// failures return 400 before any work; an empty candidate set returns
// 404; everything else returns the full per-row accounting.
func (p *Provisioning) BulkGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var err error
	defer mon.Task()(&ctx)(&err)

	var job provisioning.Job
	if err = json.NewDecoder(r.Body).Decode(&job); err != nil {
		serveJSONError(ctx, p.log, w, http.StatusBadRequest, ErrProvisioningAPI.Wrap(err))
		return
	}

	result, err := p.service.Run(ctx, job)
	if err != nil {
		switch {
		case provisioning.ErrValidation.Has(err):
			serveJSONError(ctx, p.log, w, http.StatusBadRequest, err)
		case provisioning.ErrNoCandidates.Has(err):
			serveJSONError(ctx, p.log, w, http.StatusNotFound, err)
		default:
			serveJSONError(ctx, p.log, w, http.StatusInternalServerError, ErrProvisioningAPI.Wrap(err))
		}
		return
	}

	serveJSON(p.log, w, http.StatusOK, result)
}
