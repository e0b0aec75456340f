// Package utils holds small helpers shared by the relay's long running servers.
package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import "sync"

// MergeErrorChans fans every input channel into one output channel. The
// output is closed once all inputs are closed.
//
//	errs := MergeErrorChans(httpErrs, grpcErrs)
//	if err := <-errs; err != nil {
//		log.Error("Server stopped", logger.ErrorField(err))
//	}
func MergeErrorChans(channels ...<-chan error) <-chan error {
	out := make(chan error, len(channels))
	var wg sync.WaitGroup

	for _, ch := range channels {
		if ch == nil {
			continue
		}
		wg.Add(1)
		go func(c <-chan error) {
			defer wg.Done()
			for err := range c {
				out <- err
			}
		}(ch)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
