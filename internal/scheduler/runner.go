package scheduler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

// ExecRunner runs each job as a child process and reads its JobResult from
// stdout. The exit code decides success; the decoded result is attached
// when present.
type ExecRunner struct {
	Bin     string
	Args    []string // placed before the area id
	Dir     string
	Env     []string
	Timeout time.Duration
	Log     *logging.Logger
}

func (r *ExecRunner) RunJob(ctx context.Context, id string) models.JobStatus {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	log := r.Log
	if log == nil {
		log = logging.Nop()
	}

	args := append(append([]string{}, r.Args...), id)
	cmd := exec.CommandContext(ctx, r.Bin, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	for _, line := range strings.Split(strings.TrimSpace(stderr.String()), "\n") {
		if line != "" {
			log.Debug("job output", logging.String("id", id), logging.String("line", line))
		}
	}

	res, decodeErr := DecodeResult(stdout.Bytes())
	js := models.JobStatus{ID: id, Result: res}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		code := 0
		js.ExitCode = &code
		js.Status = models.JobSuccess
	case errors.As(runErr, &exitErr):
		code := exitErr.ExitCode()
		js.ExitCode = &code
		js.Status = models.JobFailed
	default:
		// never started, or killed by the timeout
		js.Status = models.JobFailed
	}

	if js.Result == nil {
		js.Result = &models.JobResult{AreaID: id, ElapsedMS: elapsed.Milliseconds()}
		switch {
		case runErr != nil:
			js.Result.Error = runErr.Error()
		case decodeErr != nil:
			js.Result.Error = "no job result: " + decodeErr.Error()
		}
		js.Result.OK = js.Status == models.JobSuccess
	}
	return js
}

// DecodeResult reads the last JSON object line of out as a JobResult.
func DecodeResult(out []byte) (*models.JobResult, error) {
	var last []byte
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) > 0 && line[0] == '{' {
			last = append(last[:0], line...)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if last == nil {
		return nil, errors.New("no JSON line on stdout")
	}
	var res models.JobResult
	if err := json.Unmarshal(last, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
