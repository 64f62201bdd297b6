package rclone

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/denysvitali/rclone-api-go/internal/models"
	"github.com/denysvitali/rclone-api-go/pkg/config"
)

// Client wraps the rclone operations the gateway exposes.
// Every path handed to it is namespaced under the configured remote alias.
type Client struct {
	runner  Runner
	logger  *logrus.Logger
	tracer  trace.Tracer
	remote  string
	timeout time.Duration
	retries uint

	// maxElapsedTime caps the total time spent across attempts; zero means no
	// cap and only retries bounds the attempts
	maxElapsedTime time.Duration

	// newBackOff is swapped out by tests to avoid sleeping between attempts
	newBackOff func() backoff.BackOff
}

// NewClient creates a client. A nil runner runs the configured binary as a subprocess.
func NewClient(cfg config.RcloneConfig, runner Runner, logger *logrus.Logger) *Client {
	if runner == nil {
		runner = NewExecRunner(cfg.Binary, cfg.ConfigFile)
	}
	return &Client{
		runner:  runner,
		logger:  logger,
		tracer:  otel.Tracer("rclone-api"),
		remote:  strings.TrimSuffix(cfg.Remote, ":"),
		timeout: cfg.Timeout,
		retries: cfg.Retries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

// Remote returns the remote root, e.g. "encrypted:"
func (c *Client) Remote() string {
	return c.remote + ":"
}

// RemotePath namespaces path under the remote alias
func (c *Client) RemotePath(path string) string {
	return c.Remote() + path
}

// Copy copies source into destination on the remote
func (c *Client) Copy(ctx context.Context, source, destination string) error {
	dest := c.RemotePath(destination)

	c.logger.Debugf("Source Path is: %s", source)
	c.logger.Debugf("Destination Path is: %s", dest)

	if _, err := c.run(ctx, "copy", source, dest); err != nil {
		return err
	}

	c.logger.Debug("Copy successful")
	return nil
}

// Delete removes the files under remotePath on the remote
func (c *Client) Delete(ctx context.Context, remotePath string) error {
	_, err := c.run(ctx, "delete", c.RemotePath(remotePath))
	return err
}

// List returns every entry below the remote root, directories included
func (c *Client) List(ctx context.Context) ([]models.ListEntry, error) {
	res, err := c.run(ctx, "lsjson", c.Remote(), "--recursive")
	if err != nil {
		return nil, err
	}

	var entries []models.ListEntry
	if err := json.Unmarshal([]byte(res.Stdout), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse rclone lsjson output: %w", err)
	}

	return entries, nil
}

// Version returns the first line of `rclone version`
func (c *Client) Version(ctx context.Context) (string, error) {
	res, err := c.run(ctx, "version")
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(res.Stdout), "\n")
	return strings.TrimSpace(line), nil
}

// run invokes rclone, retrying non-zero exits up to the configured number of times
func (c *Client) run(ctx context.Context, op string, args ...string) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "rclone_"+op)
	defer span.End()

	args = append([]string{op}, args...)
	span.SetAttributes(attribute.StringSlice("rclone.args", args))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	attempt := 0
	operation := func() (*Result, error) {
		attempt++
		res, err := c.runner.Run(ctx, args...)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if res.ExitCode != 0 {
			cmdErr := newCommandError(op, res)
			c.logger.WithFields(logrus.Fields{
				"op":        op,
				"attempt":   attempt,
				"exit_code": res.ExitCode,
			}).Warnf("rclone command failed: %v", cmdErr)
			return res, cmdErr
		}
		return res, nil
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.retries+1),
		backoff.WithMaxElapsedTime(c.maxElapsedTime),
	)

	span.SetAttributes(attribute.Int("rclone.attempts", attempt))
	if res != nil {
		span.SetAttributes(attribute.Int("rclone.exit_code", res.ExitCode))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return res, nil
}
