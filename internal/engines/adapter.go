package engines

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	xxhash "github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/docgate/docgate/internal/types"
)

// Adapter fans the artifact out to every configured engine in parallel
// and settles partial results under a global deadline. It fails open:
// total engine unavailability degrades verdict confidence but never
// blocks the run. The aggregator, not the adapter, decides what the
// degradation means for the verdict.
type Adapter struct {
	engines []Engine
	// RunTimeout bounds the whole external scan phase. In-flight calls
	// past the deadline are cancelled and recorded as unknown.
	RunTimeout time.Duration
}

func NewAdapter(engines []Engine, runTimeout time.Duration) *Adapter {
	return &Adapter{engines: engines, RunTimeout: runTimeout}
}

// Names lists the configured engine names in submission order.
func (a *Adapter) Names() []string {
	out := make([]string, len(a.engines))
	for i, e := range a.engines {
		out[i] = e.Name()
	}
	return out
}

// ScanAll returns exactly one result per configured engine, in
// configuration order, regardless of how engines behave.
func (a *Adapter) ScanAll(ctx context.Context, artifact []byte, sha256hex string) []types.ExternalScanResult {
	if len(a.engines) == 0 {
		return nil
	}
	if a.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.RunTimeout)
		defer cancel()
	}

	results := make([]types.ExternalScanResult, len(a.engines))
	g, ctx := errgroup.WithContext(ctx)
	for i, e := range a.engines {
		i, e := i, e
		g.Go(func() error {
			results[i] = a.scanOne(ctx, e, artifact, sha256hex)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// scanOne runs one engine with the retry policy: at most one retry, and
// only on transient transport failure. A definitive verdict, malformed
// response or HTTP-level rejection is never retried.
func (a *Adapter) scanOne(ctx context.Context, e Engine, artifact []byte, sha256hex string) types.ExternalScanResult {
	start := time.Now()
	v, err := e.Scan(ctx, artifact, sha256hex)
	if err != nil && isTransient(err) && ctx.Err() == nil {
		v, err = e.Scan(ctx, artifact, sha256hex)
	}
	res := types.ExternalScanResult{
		EngineName: e.Name(),
		Latency:    time.Since(start),
	}
	if err != nil {
		res.Verdict = types.VerdictUnknown
		res.Err = errString(ctx, err)
		return res
	}
	res.Verdict = types.EngineVerdict(v.Value)
	res.RawDigest = fmt.Sprintf("%016x", xxhash.Sum64(v.Raw))
	return res
}

// isTransient classifies transport-level failures worth one retry.
func isTransient(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

func errString(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return "timeout: " + err.Error()
	}
	return err.Error()
}
