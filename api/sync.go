/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/blnkfinance/portalsync"
	"github.com/blnkfinance/portalsync/internal/apierror"
	"github.com/blnkfinance/portalsync/model"
	"github.com/gin-gonic/gin"
)

type manualSyncResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	Failed  int  `json:"failed"`
}

func errorMessage(err error) string {
	var apiErr apierror.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func respondError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), model.PortalResponse{Success: false, Error: errorMessage(err)})
}

// SyncInbound applies an envelope pushed by the Collection Portal.
func (a *Api) SyncInbound(c *gin.Context) {
	var env model.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		respondError(c, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid sync payload", err))
		return
	}
	if env.Type == "" {
		respondError(c, apierror.NewAPIError(apierror.ErrInvalidInput, "type is required", nil))
		return
	}

	if err := a.sync.ProcessInbound(c.Request.Context(), env); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.PortalResponse{Success: true, Message: portalsync.MessageSyncCompleted})
}

func (a *Api) GetSyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, a.sync.SyncStatus())
}

// ManualSync runs the reconciliation sweep. hours overrides the configured
// lookback window.
func (a *Api) ManualSync(c *gin.Context) {
	var lookback time.Duration
	if raw := c.Query("hours"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			respondError(c, apierror.NewAPIError(apierror.ErrBadRequest, "hours must be a positive integer", nil))
			return
		}
		lookback = time.Duration(hours) * time.Hour
	}

	result, err := a.sync.ManualSync(c.Request.Context(), lookback)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, manualSyncResponse{Success: true, Count: result.Processed, Failed: result.Failed})
}

func (a *Api) SyncLoan(c *gin.Context) {
	loanID := c.Param("loan_id")
	if err := a.sync.SyncLoan(c.Request.Context(), loanID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.PortalResponse{Success: true, Message: portalsync.MessageSyncCompleted})
}

// GetFailedEvents lists archived sync events that exhausted their retries.
func (a *Api) GetFailedEvents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(c, apierror.NewAPIError(apierror.ErrBadRequest, "limit must be a positive integer", nil))
			return
		}
		limit = parsed
	}

	events, err := a.sync.FailedEvents(limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
