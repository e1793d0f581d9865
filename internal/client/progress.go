package client

import (
	"io"
	"sync"
)

// uploadCeiling is the most progress reported before the server answers.
const uploadCeiling = 0.95

// ProgressFunc receives upload progress in [0, 1].
type ProgressFunc func(fraction float64)

// progress reports a monotonic fraction. Bytes written to the transport
// map onto [0, uploadCeiling]; 1 is reported only by done.
type progress struct {
	mu   sync.Mutex
	fn   ProgressFunc
	last float64
}

func newProgress(fn ProgressFunc) *progress {
	if fn == nil {
		return nil
	}
	return &progress{fn: fn}
}

func (p *progress) report(f float64) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if f <= p.last {
		return
	}
	p.last = f
	p.fn(f)
}

func (p *progress) done() { p.report(1) }

// reader wraps an attempt's request body. A retried attempt re-reads from
// zero but reported progress never moves backwards.
func (p *progress) reader(r io.Reader, total int64) io.Reader {
	if p == nil || total <= 0 {
		return r
	}
	return &progressReader{r: r, total: total, p: p}
}

type progressReader struct {
	r     io.Reader
	read  int64
	total int64
	p     *progress
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.read += int64(n)
		pr.p.report(uploadCeiling * float64(pr.read) / float64(pr.total))
	}
	return n, err
}
