package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/natserract/baiduapi/pkg/journal/postgres"
	"github.com/natserract/baiduapi/pkg/openapi"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const errNoResponse = "no response"

// callSpec is one entry of the calls file.
type callSpec struct {
	APIPath  string            `json:"api_path"`
	Category string            `json:"category"`
	Method   string            `json:"method"`
	Params   map[string]string `json:"params"`
}

type callResult struct {
	APIPath  string `json:"api_path"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// journal is the subset of *postgres.DB the runner writes to.
type journal interface {
	Record(ctx context.Context, e postgres.Entry) (uuid.UUID, error)
}

type runner struct {
	client      openapi.APIClient
	journal     journal
	runID       uuid.UUID
	concurrency int
	serialOnly  bool
	logger      *zap.Logger
}

func readCalls(r io.Reader) ([]callSpec, error) {
	var specs []callSpec
	if err := json.NewDecoder(r).Decode(&specs); err != nil {
		return nil, fmt.Errorf("failed to decode calls: %w", err)
	}
	for i, s := range specs {
		if s.APIPath == "" {
			return nil, fmt.Errorf("call %d: api_path is required", i)
		}
		if s.Category == "" {
			specs[i].Category = string(openapi.CategoryRest)
		}
	}
	return specs, nil
}

// runCalls issues every call on its own through a bounded pool. Results keep
// input order.
func (r *runner) runCalls(ctx context.Context, specs []callSpec) []callResult {
	results := make([]callResult, len(specs))

	p := pool.New().WithMaxGoroutines(max(r.concurrency, 1))
	for i, spec := range specs {
		p.Go(func() {
			start := time.Now()
			body, err := r.client.Call(ctx, spec.APIPath, openapi.Category(spec.Category), spec.Params, spec.Method)

			res := callResult{APIPath: spec.APIPath, Response: body}
			if err != nil {
				res.Error = err.Error()
				r.logger.Warn("Call failed", zap.String("api_path", spec.APIPath), zap.Error(err))
			}
			results[i] = res
			r.record(ctx, spec, res, false, time.Since(start))
		})
	}
	p.Wait()

	return results
}

// runBatches sends specs in chunks of openapi.MaxBatchItems, one chunk after
// another.
func (r *runner) runBatches(ctx context.Context, specs []callSpec) []callResult {
	results := make([]callResult, 0, len(specs))
	serial := openapi.BatchModeServerParallel
	if r.serialOnly {
		serial = openapi.BatchModeSerialOnly
	}

	for start := 0; start < len(specs); start += openapi.MaxBatchItems {
		chunk := specs[start:min(start+openapi.MaxBatchItems, len(specs))]
		items := make([]*openapi.BatchItem, len(chunk))
		for i, spec := range chunk {
			items[i] = openapi.NewBatchItem(spec.APIPath, openapi.Category(spec.Category), spec.Params, spec.Method)
		}

		began := time.Now()
		err := r.client.BatchCall(ctx, items, serial)
		elapsed := time.Since(began)
		if err != nil {
			r.logger.Warn("Batch failed",
				zap.Int("offset", start),
				zap.Int("items", len(chunk)),
				zap.Error(err))
		}

		for i, item := range items {
			res := callResult{APIPath: chunk[i].APIPath}
			switch body, ok := item.Response(); {
			case err != nil:
				res.Error = err.Error()
			case ok:
				res.Response = body
			default:
				res.Error = errNoResponse
			}
			results = append(results, res)
			r.record(ctx, chunk[i], res, true, elapsed)
		}
	}

	return results
}

func (r *runner) record(ctx context.Context, spec callSpec, res callResult, batched bool, elapsed time.Duration) {
	if r.journal == nil {
		return
	}
	_, err := r.journal.Record(ctx, postgres.Entry{
		RunID:    r.runID,
		APIPath:  spec.APIPath,
		Category: spec.Category,
		Method:   openapi.NormalizeMethod(spec.Method),
		Batched:  batched,
		Response: res.Response,
		Error:    res.Error,
		Duration: elapsed,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("Failed to journal call", zap.String("api_path", spec.APIPath), zap.Error(err))
	}
}
