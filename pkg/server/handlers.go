package server

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/denysvitali/rclone-api-go/internal/models"
	"github.com/denysvitali/rclone-api-go/pkg/errcodes"
	"github.com/denysvitali/rclone-api-go/pkg/gateway"
	"github.com/denysvitali/rclone-api-go/pkg/telemetry"
)

// handleAlive handles health check requests
func (s *Server) handleAlive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleUploadEncrypted copies a source into the remote
func (s *Server) handleUploadEncrypted(c *gin.Context) {
	ctx, span := otel.Tracer(telemetry.ServiceName).Start(s.detach(c), "handle_upload_encrypted")
	defer span.End()

	var req models.CopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		s.respondError(c, errcodes.BadRequest(gateway.CopyInvalidPayload))
		return
	}
	span.SetAttributes(
		attribute.String("copy.source", req.Source),
		attribute.String("copy.destination", req.Destination),
	)
	s.report(ctx, "copy_request", req)

	msg, err := s.gateway.Copy(ctx, req)
	if err != nil {
		span.RecordError(err)
		s.respondError(c, err)
		return
	}

	c.String(http.StatusOK, msg)
}

// handleDeleteFile deletes a path on the remote
func (s *Server) handleDeleteFile(c *gin.Context) {
	ctx, span := otel.Tracer(telemetry.ServiceName).Start(s.detach(c), "handle_delete_file")
	defer span.End()

	var req models.DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		s.respondError(c, errcodes.BadRequest(gateway.DeleteInvalidPayload))
		return
	}
	span.SetAttributes(attribute.String("delete.remote_path", req.RemotePath))
	s.report(ctx, "delete_request", req)

	resp, err := s.gateway.Delete(ctx, req)
	if err != nil {
		span.RecordError(err)
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleListEncryptedFiles lists the files stored in the remote
func (s *Server) handleListEncryptedFiles(c *gin.Context) {
	ctx, span := otel.Tracer(telemetry.ServiceName).Start(s.detach(c), "handle_list_encrypted_files")
	defer span.End()

	resp, err := s.gateway.List(ctx)
	if err != nil {
		span.RecordError(err)
		s.respondError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("list.files", len(resp.Files)))
	s.report(ctx, "list_response", resp)
	c.JSON(http.StatusOK, resp)
}

// handleServerInfo reports uptime, the rclone version and process resources
func (s *Server) handleServerInfo(c *gin.Context) {
	ctx := c.Request.Context()

	response := models.ServerInfoResponse{
		Uptime:    time.Since(s.startTime).Seconds(),
		Remote:    s.rclone.Remote(),
		Resources: s.systemResources(ctx),
	}

	version, err := s.rclone.Version(ctx)
	if err != nil {
		s.logger.Warnf("Failed to get rclone version: %v", err)
	} else {
		response.RcloneVersion = version
	}

	c.JSON(http.StatusOK, response)
}

func (s *Server) systemResources(ctx context.Context) models.SystemResources {
	resources := models.SystemResources{
		CPUCount:     runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		s.logger.Warnf("Failed to get process info: %v", err)
		return resources
	}

	if cpuPercent, err := proc.CPUPercentWithContext(ctx); err == nil {
		resources.CPUPercent = cpuPercent
	}
	if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
		resources.MemoryRSS = memInfo.RSS
		resources.MemoryVMS = memInfo.VMS
	}
	if memPercent, err := proc.MemoryPercentWithContext(ctx); err == nil {
		resources.MemoryPercent = memPercent
	}

	return resources
}

// detach keeps request values but drops its cancellation, so a transfer
// started by a client runs to completion even if the client goes away.
func (s *Server) detach(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// respondError translates a gateway failure into an HTTP response
func (s *Server) respondError(c *gin.Context, err error) {
	e := errcodes.From(err)
	if e.Plain {
		c.String(e.HTTPCode, e.Message)
		return
	}
	c.JSON(e.HTTPCode, models.ErrorResponse{Error: e.Message})
}

func (s *Server) report(ctx context.Context, operation string, data interface{}) {
	if s.config.Telemetry.Enabled {
		telemetry.ReportJSON(ctx, s.logger, operation, data)
	}
}
