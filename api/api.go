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
	"net/http"
	"strings"

	"github.com/blnkfinance/portalsync"
	"github.com/blnkfinance/portalsync/api/middleware"
	"github.com/blnkfinance/portalsync/config"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Api struct {
	sync   *portalsync.PortalSync
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/sync", a.SyncInbound)
	router.GET("/sync/status", a.GetSyncStatus)
	router.POST("/sync/manual", a.ManualSync)
	router.POST("/sync/loans/:loan_id", a.SyncLoan)
	router.GET("/sync/failed", a.GetFailedEvents)
	return a.router
}

func NewAPI(ps *portalsync.PortalSync) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware(serviceName(conf)))
	r.Use(middleware.CorsMiddleware(conf))
	r.Use(middleware.RateLimitMiddleware(conf))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	if conf.Server.Secure {
		r.Use(middleware.SecretKeyAuthMiddleware())
	}

	if ps.Queue() != nil {
		mountMonitor(r, conf)
	}

	return &Api{sync: ps, router: r}
}

// mountMonitor serves the asynqmon dashboard for the sync queues.
func mountMonitor(r *gin.Engine, conf *config.Configuration) {
	opt, err := portalsync.RedisConnOpt(conf.Redis.Dns)
	if err != nil {
		logrus.Errorf("queue monitor disabled: %v", err)
		return
	}
	root := "/" + strings.Trim(conf.Queue.MonitoringPath, "/")
	monitor := asynqmon.New(asynqmon.Options{
		RootPath:     root,
		RedisConnOpt: opt,
	})
	r.Any(root+"/*any", gin.WrapH(monitor))
}

func serviceName(conf *config.Configuration) string {
	if conf.ProjectName != "" {
		return conf.ProjectName
	}
	return "portalsync"
}
