// Package merge reconciles the current endpoint signatures with a previously
// generated document. Only new and changed endpoints reach the generator;
// everything else, including the manual-edit region, is carried over as is.
package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"docagent/internal/document"
	"docagent/internal/endpoint"
	"docagent/internal/generator"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds in-flight generator calls when Engine.Concurrency
// is not set.
const DefaultConcurrency = 4

// Status classifies a section key during a merge.
type Status string

const (
	StatusNew       Status = "new"
	StatusStale     Status = "stale"
	StatusUnchanged Status = "unchanged"
	StatusOrphaned  Status = "orphaned"
)

var errEmptyBody = errors.New("generator returned an empty body")

// Change is the outcome for one key.
type Change struct {
	Key    string
	Status Status
	// Failed is set when the section needed generation and it did not succeed.
	Failed bool
}

// SectionError records a failed generation. The merge carries on without it.
type SectionError struct {
	Key    string
	Status Status
	Err    error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("%s section %s: %v", e.Status, e.Key, e.Err)
}

func (e *SectionError) Unwrap() error {
	return e.Err
}

// Result is what a merge produced.
type Result struct {
	Document       *document.Document
	Changes        []Change
	Errors         []*SectionError
	GeneratorCalls int
	// Duplicates lists keys that appeared more than once in the input; only
	// the first occurrence was used.
	Duplicates []string
}

// Count returns how many keys ended with the given status.
func (r *Result) Count(status Status) int {
	n := 0
	for _, c := range r.Changes {
		if c.Status == status {
			n++
		}
	}
	return n
}

// Keys returns the keys with the given status in output order.
func (r *Result) Keys(status Status) []string {
	var keys []string
	for _, c := range r.Changes {
		if c.Status == status {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// Engine runs merges. The zero value is not usable: Generator is required.
type Engine struct {
	Generator   generator.Generator
	Project     string
	Concurrency int
	// Clock defaults to time.Now.
	Clock  func() time.Time
	Logger *zap.Logger
}

type slot struct {
	sig    endpoint.Signature
	key    string
	hash   string
	status Status
	prev   document.Section
	body   string
	err    error
}

// Merge builds the next version of prior for sigs. prior may be nil. Merge
// never fails as a whole: generator errors are reported per section in the
// result and the returned document is always valid.
func (e *Engine) Merge(ctx context.Context, sigs []endpoint.Signature, prior *document.Document) *Result {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := e.now()
	if prior == nil {
		prior = document.New(e.Project)
	}

	priorByKey := make(map[string]document.Section, len(prior.Sections))
	for _, s := range prior.Sections {
		if _, ok := priorByKey[s.Key]; !ok {
			priorByKey[s.Key] = s
		}
	}

	res := &Result{}
	slots := make([]*slot, 0, len(sigs))
	current := make(map[string]bool, len(sigs))
	for _, sig := range sigs {
		key := sig.Key()
		if current[key] {
			res.Duplicates = append(res.Duplicates, key)
			continue
		}
		current[key] = true

		s := &slot{sig: sig, key: key, hash: sig.ContentHash()}
		prev, ok := priorByKey[key]
		switch {
		case !ok:
			s.status = StatusNew
		case prev.Hash == s.hash:
			s.status = StatusUnchanged
			s.prev = prev
		default:
			s.status = StatusStale
			s.prev = prev
		}
		slots = append(slots, s)
	}
	if len(res.Duplicates) > 0 {
		logger.Warn("duplicate endpoint keys ignored", zap.Strings("keys", res.Duplicates))
	}

	res.GeneratorCalls = e.generate(ctx, slots, logger)

	out := &document.Document{
		Meta:   prior.Meta,
		Manual: prior.Manual,
	}
	out.Meta.UpdatedAt = now
	if e.Project != "" {
		out.Meta.Project = e.Project
	}
	out.Sections = make([]document.Section, 0, len(slots))

	for _, s := range slots {
		change := Change{Key: s.key, Status: s.status}
		switch {
		case s.status == StatusUnchanged:
			out.Sections = append(out.Sections, s.prev)
		case s.err == nil:
			out.Sections = append(out.Sections, document.Section{
				Key:         s.key,
				Hash:        s.hash,
				Body:        s.body,
				GeneratedAt: now,
			})
		case s.status == StatusStale:
			change.Failed = true
			out.Sections = append(out.Sections, s.prev)
			res.Errors = append(res.Errors, &SectionError{Key: s.key, Status: s.status, Err: s.err})
		default:
			change.Failed = true
			out.Sections = append(out.Sections, document.Section{
				Key:         s.key,
				Body:        placeholder(s.key),
				GeneratedAt: now,
			})
			res.Errors = append(res.Errors, &SectionError{Key: s.key, Status: s.status, Err: s.err})
		}
		res.Changes = append(res.Changes, change)
	}

	for _, s := range prior.Sections {
		if current[s.Key] {
			continue
		}
		// Mark so a duplicated prior key is only carried once.
		current[s.Key] = true
		out.Sections = append(out.Sections, s)
		res.Changes = append(res.Changes, Change{Key: s.Key, Status: StatusOrphaned})
	}

	res.Document = out
	logger.Info("merge finished",
		zap.Int("new", res.Count(StatusNew)),
		zap.Int("stale", res.Count(StatusStale)),
		zap.Int("unchanged", res.Count(StatusUnchanged)),
		zap.Int("orphaned", res.Count(StatusOrphaned)),
		zap.Int("failed", len(res.Errors)),
		zap.Int("generator_calls", res.GeneratorCalls))
	return res
}

// generate fills body or err for every new and stale slot and returns the
// number of generator calls made.
func (e *Engine) generate(ctx context.Context, slots []*slot, logger *zap.Logger) int {
	limit := e.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var calls atomic.Int64
	var g errgroup.Group
	g.SetLimit(limit)

	for _, s := range slots {
		if s.status == StatusUnchanged {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				s.err = generator.NewGenerationError(s.key, err)
				return nil
			}
			req := generator.Request{Signature: s.sig, Project: e.Project}
			if s.status == StatusStale && !s.prev.Pending() {
				req.Existing = s.prev.Body
			}

			calls.Add(1)
			body, err := e.Generator.Generate(ctx, req)
			if err != nil {
				s.err = generator.NewGenerationError(s.key, err)
				logger.Warn("section generation failed", zap.String("key", s.key), zap.Error(err))
				return nil
			}
			body = strings.TrimSpace(document.StripMarkers(body))
			if body == "" {
				s.err = generator.NewGenerationError(s.key, errEmptyBody)
				return nil
			}
			s.body = body
			logger.Debug("section generated", zap.String("key", s.key), zap.String("status", string(s.status)))
			return nil
		})
	}
	_ = g.Wait()
	return int(calls.Load())
}

func (e *Engine) now() time.Time {
	clock := e.Clock
	if clock == nil {
		clock = time.Now
	}
	return clock().UTC().Truncate(time.Second)
}

func placeholder(key string) string {
	return fmt.Sprintf("> Documentation for `%s` is pending: generation failed.", key)
}
