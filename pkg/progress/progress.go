// Package progress reports how many work items of a stage are complete.
package progress

import (
	"io"
	"sync"

	"github.com/cheggaaa/pb"

	"github.com/mwantia/phoenix-tracker/pkg/log"
)

// Sink receives "done of total" updates. Update is called from the
// coordinator goroutine only.
type Sink interface {
	Start(name string, total int)
	Update(done, total int)
	Finish()
}

// Nop discards every update.
type Nop struct{}

func (Nop) Start(string, int) {}
func (Nop) Update(int, int)   {}
func (Nop) Finish()           {}

// Bar renders a terminal progress bar.
type Bar struct {
	out io.Writer
	bar *pb.ProgressBar
}

func NewBar(out io.Writer) *Bar {
	return &Bar{out: out}
}

func (b *Bar) Start(name string, total int) {
	b.bar = pb.New(total)
	b.bar.Output = b.out
	b.bar.Prefix(name + " ")
	b.bar.ShowSpeed = false
	b.bar.Start()
}

func (b *Bar) Update(done, _ int) {
	if b.bar != nil {
		b.bar.Set(done)
	}
}

func (b *Bar) Finish() {
	if b.bar != nil {
		b.bar.Finish()
		b.bar = nil
	}
}

// Logger writes an info line every Every completed items and at the end.
type Logger struct {
	Log   log.LoggerService
	Every int

	name string
	last int
}

func NewLogger(logger log.LoggerService, every int) *Logger {
	if every <= 0 {
		every = 100
	}
	return &Logger{Log: logger, Every: every}
}

func (l *Logger) Start(name string, total int) {
	l.name = name
	l.last = 0
	l.Log.Info("%s: %d work items", name, total)
}

func (l *Logger) Update(done, total int) {
	if done-l.last >= l.Every || done == total {
		l.last = done
		l.Log.Info("%s: %d of %d complete", l.name, done, total)
	}
}

func (l *Logger) Finish() {}

// Recorder keeps every update; tests use it to observe progress.
type Recorder struct {
	mutex   sync.Mutex
	Name    string
	Total   int
	Updates []int
	Done    bool
}

func (r *Recorder) Start(name string, total int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Name, r.Total = name, total
}

func (r *Recorder) Update(done, _ int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Updates = append(r.Updates, done)
}

func (r *Recorder) Finish() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.Done = true
}
