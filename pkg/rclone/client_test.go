package rclone

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/rclone-api-go/pkg/config"
)

type fakeRunner struct {
	results []*Result
	err     error
	calls   [][]string
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) (*Result, error) {
	f.calls = append(f.calls, args)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return &Result{}, nil
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res, nil
}

type slowRunner struct {
	delay  time.Duration
	result *Result
	calls  int
}

func (r *slowRunner) Run(ctx context.Context, args ...string) (*Result, error) {
	r.calls++
	time.Sleep(r.delay)
	return r.result, nil
}

func newTestClient(t *testing.T, runner Runner, retries uint) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := NewClient(config.RcloneConfig{
		Binary:  "rclone",
		Remote:  "encrypted",
		Retries: retries,
	}, runner, logger)
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func TestRemotePath(t *testing.T) {
	c := newTestClient(t, &fakeRunner{}, 0)
	assert.Equal(t, "encrypted:", c.Remote())
	assert.Equal(t, "encrypted:backups/db.sql", c.RemotePath("backups/db.sql"))
}

func TestCopy(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		runner := &fakeRunner{}
		c := newTestClient(t, runner, 0)

		err := c.Copy(context.Background(), "/data/photos", "photos")
		require.NoError(t, err)
		require.Len(t, runner.calls, 1)
		assert.Equal(t, []string{"copy", "/data/photos", "encrypted:photos"}, runner.calls[0])
	})

	t.Run("non-zero exit", func(t *testing.T) {
		runner := &fakeRunner{results: []*Result{{
			ExitCode: 1,
			Stderr:   "2024/01/01 ERROR : photos: directory not found\n\n2024/01/01 ERROR : Attempt 1/3 failed with 1 errors\n",
		}}}
		c := newTestClient(t, runner, 0)

		err := c.Copy(context.Background(), "/missing", "photos")
		require.Error(t, err)

		var cmdErr *CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, "copy", cmdErr.Op)
		assert.Equal(t, 1, cmdErr.ExitCode)
		assert.Len(t, cmdErr.Diagnostics, 2)
		assert.Contains(t, err.Error(), "directory not found")
	})

	t.Run("runner error is not a command error", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("exec: \"rclone\": executable file not found in $PATH")}
		c := newTestClient(t, runner, 3)

		err := c.Copy(context.Background(), "/data", "data")
		require.Error(t, err)

		var cmdErr *CommandError
		assert.False(t, errors.As(err, &cmdErr))
		assert.Contains(t, err.Error(), "executable file not found")
		assert.Len(t, runner.calls, 1, "start failures are not retried")
	})
}

func TestDelete(t *testing.T) {
	runner := &fakeRunner{}
	c := newTestClient(t, runner, 0)

	require.NoError(t, c.Delete(context.Background(), "old/report.pdf"))
	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"delete", "encrypted:old/report.pdf"}, runner.calls[0])
}

func TestList(t *testing.T) {
	t.Run("parses lsjson output", func(t *testing.T) {
		runner := &fakeRunner{results: []*Result{{
			Stdout: `[{"Path":"a.txt","Name":"a.txt","Size":5,"MimeType":"text/plain","ModTime":"2024-03-01T10:00:00.123456789Z","IsDir":false},{"Path":"sub","Name":"sub","Size":-1,"ModTime":"2024-03-01T10:00:00Z","IsDir":true}]`,
		}}}
		c := newTestClient(t, runner, 0)

		entries, err := c.List(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, []string{"lsjson", "encrypted:", "--recursive"}, runner.calls[0])

		assert.Equal(t, "a.txt", entries[0].Name)
		assert.False(t, entries[0].IsDir)
		assert.Equal(t, int64(5), entries[0].Size)
		assert.Equal(t, "2024-03-01T10:00:00.123456789Z", entries[0].ModTime)
		assert.True(t, entries[1].IsDir)
	})

	t.Run("unusual mod times do not fail the listing", func(t *testing.T) {
		runner := &fakeRunner{results: []*Result{{
			Stdout: `[{"Path":"a.txt","Name":"a.txt","Size":1,"ModTime":"","IsDir":false},{"Path":"b.txt","Name":"b.txt","Size":2,"ModTime":"2024-03-01 10:00:00","IsDir":false},{"Path":"c.txt","Name":"c.txt","Size":3,"IsDir":false}]`,
		}}}
		c := newTestClient(t, runner, 0)

		entries, err := c.List(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "", entries[0].ModTime)
		assert.Equal(t, "2024-03-01 10:00:00", entries[1].ModTime)
		assert.Equal(t, "c.txt", entries[2].Path)
	})

	t.Run("empty listing", func(t *testing.T) {
		c := newTestClient(t, &fakeRunner{results: []*Result{{Stdout: "[]"}}}, 0)

		entries, err := c.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("invalid json", func(t *testing.T) {
		c := newTestClient(t, &fakeRunner{results: []*Result{{Stdout: "not json"}}}, 0)

		_, err := c.List(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse rclone lsjson output")
	})

	t.Run("command failure", func(t *testing.T) {
		c := newTestClient(t, &fakeRunner{results: []*Result{{ExitCode: 3, Stderr: "directory not found"}}}, 0)

		_, err := c.List(context.Background())
		var cmdErr *CommandError
		require.True(t, errors.As(err, &cmdErr))
		assert.Equal(t, 3, cmdErr.ExitCode)
	})
}

func TestRetries(t *testing.T) {
	t.Run("succeeds after transient failure", func(t *testing.T) {
		runner := &fakeRunner{results: []*Result{
			{ExitCode: 1, Stderr: "ERROR : connection reset"},
			{ExitCode: 0},
		}}
		c := newTestClient(t, runner, 2)

		require.NoError(t, c.Delete(context.Background(), "x"))
		assert.Len(t, runner.calls, 2)
	})

	t.Run("gives up after configured retries", func(t *testing.T) {
		runner := &fakeRunner{results: []*Result{{ExitCode: 1, Stderr: "ERROR : permission denied"}}}
		c := newTestClient(t, runner, 2)

		err := c.Delete(context.Background(), "x")
		require.Error(t, err)
		assert.Len(t, runner.calls, 3)
		assert.Contains(t, err.Error(), "permission denied")
	})

	t.Run("retry count does not depend on elapsed time", func(t *testing.T) {
		slow := &slowRunner{delay: 30 * time.Millisecond, result: &Result{ExitCode: 1}}
		c := newTestClient(t, slow, 2)

		err := c.Delete(context.Background(), "x")
		require.Error(t, err)
		assert.Equal(t, 3, slow.calls, "every configured retry runs regardless of how long attempts took")
	})

	t.Run("elapsed cap stops retries when set", func(t *testing.T) {
		slow := &slowRunner{delay: 30 * time.Millisecond, result: &Result{ExitCode: 1}}
		c := newTestClient(t, slow, 2)
		c.maxElapsedTime = 10 * time.Millisecond

		err := c.Delete(context.Background(), "x")
		require.Error(t, err)
		assert.Equal(t, 1, slow.calls)
	})

	t.Run("no retries by default", func(t *testing.T) {
		runner := &fakeRunner{results: []*Result{{ExitCode: 1}}}
		c := newTestClient(t, runner, 0)

		err := c.Delete(context.Background(), "x")
		require.Error(t, err)
		assert.Len(t, runner.calls, 1)
		assert.Equal(t, "rclone delete exited with status 1", err.Error())
	})
}

func TestVersion(t *testing.T) {
	runner := &fakeRunner{results: []*Result{{Stdout: "rclone v1.66.0\n- os/version: debian 12\n"}}}
	c := newTestClient(t, runner, 0)

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rclone v1.66.0", v)
}

func TestExecRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("captures stdout", func(t *testing.T) {
		r := NewExecRunner("echo", "")
		res, err := r.Run(ctx, "lsjson", "encrypted:")
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Equal(t, "lsjson encrypted:\n", res.Stdout)
	})

	t.Run("prepends config file", func(t *testing.T) {
		r := NewExecRunner("echo", "/etc/rclone.conf")
		res, err := r.Run(ctx, "version")
		require.NoError(t, err)
		assert.Equal(t, "--config /etc/rclone.conf version\n", res.Stdout)
	})

	t.Run("reports exit code and stderr", func(t *testing.T) {
		r := NewExecRunner("sh", "")
		res, err := r.Run(ctx, "-c", "echo 'ERROR : boom' >&2; exit 7")
		require.NoError(t, err)
		assert.Equal(t, 7, res.ExitCode)
		assert.Contains(t, res.Stderr, "ERROR : boom")
	})

	t.Run("missing binary", func(t *testing.T) {
		r := NewExecRunner("rclone-binary-that-does-not-exist-qwertyuiop", "")
		_, err := r.Run(ctx, "version")
		require.Error(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		r := NewExecRunner("sh", "")
		tctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := r.Run(tctx, "-c", "sleep 5")
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Less(t, time.Since(start), 3*time.Second)
	})

	t.Run("timeout with child holding the pipes", func(t *testing.T) {
		r := NewExecRunner("sh", "")
		r.WaitDelay = 200 * time.Millisecond
		tctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		// the backgrounded sleep survives the kill of sh and inherits stdout/stderr
		start := time.Now()
		_, err := r.Run(tctx, "-c", "sleep 5 & wait")
		elapsed := time.Since(start)

		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.Less(t, elapsed, 2*time.Second, "Run must return shortly after the deadline")
	})

	t.Run("clean exit with lingering child", func(t *testing.T) {
		r := NewExecRunner("sh", "")
		r.WaitDelay = 200 * time.Millisecond

		start := time.Now()
		res, err := r.Run(ctx, "-c", "sleep 5 & echo started")
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Stdout, "started")
		assert.Less(t, elapsed, 2*time.Second)
	})
}
