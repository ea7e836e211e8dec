// Package prover bridges the wallet to a local proving binary. The
// binary receives one execution request as JSON on stdin and writes the
// proved transaction string to stdout. Keeping proving in a subprocess
// keeps the spending key on this machine.
package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/obscura-systems/wallet-core/internal/config"
	"github.com/obscura-systems/wallet-core/internal/logging"
	"github.com/obscura-systems/wallet-core/internal/service"
	"github.com/obscura-systems/wallet-core/internal/werr"
)

// execPayload is the stdin contract with the proving binary.
type execPayload struct {
	PrivateKey string   `json:"privateKey"`
	ProgramID  string   `json:"programId"`
	FunctionID string   `json:"functionId"`
	Inputs     []string `json:"inputs"`
	Fee        uint64   `json:"fee"`
}

// ExecProver runs a configured proving command per request.
type ExecProver struct {
	command string
	timeout time.Duration
	logger  *logging.Logger
}

// New creates an exec prover, or nil when no command is configured.
func New(cfg *config.ProverConfig, logger *logging.Logger) *ExecProver {
	if cfg.Command == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Global()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	return &ExecProver{
		command: cfg.Command,
		timeout: timeout,
		logger:  logger.WithField("component", "prover"),
	}
}

// Prove satisfies service.Prover.
func (p *ExecProver) Prove(ctx context.Context, req *service.ProveRequest) (string, error) {
	payload, err := json.Marshal(&execPayload{
		PrivateKey: req.PrivateKey,
		ProgramID:  req.ProgramID,
		FunctionID: req.FunctionID,
		Inputs:     req.Inputs,
		Fee:        req.Fee,
	})
	if err != nil {
		return "", werr.Internal("prove request marshal failed", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, p.command)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", werr.Timeout("proving timed out after " + p.timeout.String())
		}
		return "", werr.Internal("proving command failed: "+strings.TrimSpace(stderr.String()), err)
	}

	transaction := strings.TrimSpace(stdout.String())
	if transaction == "" {
		return "", werr.Internal("proving command produced no output", nil)
	}

	p.logger.WithFields(map[string]interface{}{
		"programId":  req.ProgramID,
		"functionId": req.FunctionID,
		"duration":   time.Since(start).String(),
	}).Info("execution proved")
	return transaction, nil
}
