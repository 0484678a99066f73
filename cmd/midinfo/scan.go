package main

import (
	"context"
	"sync"

	"github.com/None-later/MidiSlicer/pkg/midi"
)

type result struct {
	name string
	file *midi.File
	err  error
}

func scanFile(name string) *result {
	out := &result{name: name}
	out.file, out.err = midi.ReadFile(name)
	return out
}

// scanWorker decodes paths concurrently, at most cntRoutines at a time. The
// done channel closes after the last result is delivered.
func scanWorker(ctx context.Context, paths <-chan string, cntRoutines int) (<-chan *result, <-chan struct{}) {
	out := make(chan *result)
	done := make(chan struct{}, 1)

	go func() {
		var wg sync.WaitGroup
		goroutines := make(chan struct{}, cntRoutines)

	loop:
		for path := range paths {
			select {
			case goroutines <- struct{}{}:
			case <-ctx.Done():
				break loop
			}
			wg.Add(1)
			go func(path string) {
				defer wg.Done()

				select {
				case out <- scanFile(path):
				case <-ctx.Done():
				}
				<-goroutines
			}(path)
		}

		wg.Wait()
		close(goroutines)
		close(out)

		done <- struct{}{}
		close(done)
	}()

	return out, done
}
