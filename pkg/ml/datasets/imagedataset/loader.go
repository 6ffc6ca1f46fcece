// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package imagedataset

import (
	"io"
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrLoaderStopped is returned by Loader.Next after Loader.Stop is called.
var ErrLoaderStopped = errors.New("loader stopped")

// Loader iterates over the examples of a Dataset in epochs, loading examples in parallel goroutines.
//
// Configure it with Parallelism, Buffer, Shuffle and Infinite, then call Start. To avoid leaking goroutines,
// call Stop when done.
//
// The order of the examples is not preserved when loading with more than one goroutine.
type Loader struct {
	ds          *Dataset
	parallelism int
	bufferSize  int
	shuffle     *rand.Rand
	infinite    bool

	impl *loaderImpl
}

// loaderImpl doesn't point back to the Loader, so the Loader can be garbage collected and its
// finalizer stops the goroutines.
type loaderImpl struct {
	ds          *Dataset
	parallelism int
	shuffle     *rand.Rand
	infinite    bool

	err      error
	muErr    sync.Mutex
	stopOnce sync.Once

	buffer                                chan *Example
	epochFinished, stopEpoch, stopLoader chan struct{}
}

// NewLoader creates a Loader for ds, using by default one goroutine per CPU, a buffer of the same size,
// sequential order and one epoch at a time.
func NewLoader(ds *Dataset) *Loader {
	l := &Loader{ds: ds}
	l.Parallelism(0)
	l.bufferSize = l.parallelism
	return l
}

// Parallelism sets the number of goroutines loading examples. If n <= 0 it uses the number of CPUs.
//
// This must be called before Start. It returns the Loader, so calls can be cascaded.
func (l *Loader) Parallelism(n int) *Loader {
	if l.impl != nil {
		klog.Warningf("Loader.Parallelism called after Start, ignored.")
		return l
	}
	if n <= 0 {
		n = runtime.NumCPU()
	}
	l.parallelism = n
	return l
}

// Buffer sets the number of examples loaded ahead.
//
// This must be called before Start. It returns the Loader, so calls can be cascaded.
func (l *Loader) Buffer(n int) *Loader {
	if l.impl != nil {
		klog.Warningf("Loader.Buffer called after Start, ignored.")
		return l
	}
	l.bufferSize = max(n, 0)
	return l
}

// Shuffle makes each epoch visit the examples in a random permutation drawn from rng.
// If rng is nil, examples are visited in order.
//
// This must be called before Start. It returns the Loader, so calls can be cascaded.
func (l *Loader) Shuffle(rng *rand.Rand) *Loader {
	if l.impl != nil {
		klog.Warningf("Loader.Shuffle called after Start, ignored.")
		return l
	}
	l.shuffle = rng
	return l
}

// Infinite makes the Loader loop over the dataset forever, so Next never returns io.EOF.
//
// This must be called before Start. It returns the Loader, so calls can be cascaded.
func (l *Loader) Infinite(infinite bool) *Loader {
	if l.impl != nil {
		klog.Warningf("Loader.Infinite called after Start, ignored.")
		return l
	}
	l.infinite = infinite
	return l
}

// Name of the underlying dataset.
func (l *Loader) Name() string { return l.ds.Name() }

// Start the loading goroutines. After Start the configuration can no longer be changed.
//
// It returns the Loader, so calls can be cascaded.
func (l *Loader) Start() *Loader {
	if l.impl != nil {
		klog.Warningf("Loader.Start called more than once, ignored.")
		return l
	}
	impl := &loaderImpl{
		ds:          l.ds,
		parallelism: l.parallelism,
		shuffle:     l.shuffle,
		infinite:    l.infinite,
		buffer:      make(chan *Example, l.bufferSize),
		stopLoader:  make(chan struct{}),
	}
	l.impl = impl
	runtime.SetFinalizer(l, func(l *Loader) {
		if l.impl != nil {
			l.impl.stop(nil)
		}
	})
	impl.startEpoch()
	return l
}

// order returns the indices to visit in one epoch.
func (impl *loaderImpl) order() []int {
	n := impl.ds.Len()
	if impl.shuffle != nil {
		return impl.shuffle.Perm(n)
	}
	indices := make([]int, n)
	for ii := range indices {
		indices[ii] = ii
	}
	return indices
}

// stop closes stopLoader once, recording err if it is the first error.
func (impl *loaderImpl) stop(err error) {
	impl.muErr.Lock()
	if impl.err == nil {
		impl.err = err
	}
	impl.muErr.Unlock()
	impl.stopOnce.Do(func() { close(impl.stopLoader) })
}

func (impl *loaderImpl) error() error {
	impl.muErr.Lock()
	defer impl.muErr.Unlock()
	if impl.err == nil {
		return ErrLoaderStopped
	}
	return impl.err
}

func (impl *loaderImpl) startEpoch() {
	impl.epochFinished = make(chan struct{})
	impl.stopEpoch = make(chan struct{})
	stopEpoch := impl.stopEpoch
	indices := make(chan int)
	var wg sync.WaitGroup

	// Producer of indices.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(indices)
		for {
			for _, idx := range impl.order() {
				select {
				case <-stopEpoch:
					return
				case <-impl.stopLoader:
					return
				case indices <- idx:
				}
			}
			if !impl.infinite || impl.ds.Len() == 0 {
				return
			}
		}
	}()

	// Workers.
	for range impl.parallelism {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				var idx int
				var ok bool
				select {
				case <-stopEpoch:
					return
				case <-impl.stopLoader:
					return
				case idx, ok = <-indices:
					if !ok {
						return
					}
				}
				example, err := impl.ds.Get(idx)
				if err != nil {
					klog.Errorf("Loader of %q failed: %+v", impl.ds.Name(), err)
					impl.stop(err)
					return
				}
				select {
				case <-stopEpoch:
					return
				case <-impl.stopLoader:
					return
				case impl.buffer <- example:
				}
			}
		}()
	}

	epochFinished := impl.epochFinished
	go func() {
		wg.Wait()
		close(epochFinished)
	}()
}

// Next returns the next example of the epoch.
//
// At the end of the epoch it returns io.EOF, until Reset is called. If loading an example failed,
// it returns that error from then on, and the Loader is stopped.
func (l *Loader) Next() (*Example, error) {
	impl := l.impl
	if impl == nil {
		return nil, errors.New("Loader.Next called before Start")
	}
	select {
	case <-impl.stopLoader:
		return nil, impl.error()
	default:
	}
	select {
	case <-impl.stopLoader:
		return nil, impl.error()
	case example := <-impl.buffer:
		return example, nil
	case <-impl.epochFinished:
		select {
		case example := <-impl.buffer:
			return example, nil
		default:
		}
		select {
		case <-impl.stopLoader:
			return nil, impl.error()
		default:
			return nil, io.EOF
		}
	}
}

// Reset discards the rest of the current epoch and starts a new one.
func (l *Loader) Reset() {
	impl := l.impl
	if impl == nil {
		klog.Warningf("Loader.Reset called before Start")
		return
	}
	select {
	case <-impl.stopLoader:
		return
	default:
	}
	close(impl.stopEpoch)
drain:
	for {
		select {
		case <-impl.stopLoader:
			return
		case <-impl.epochFinished:
			break drain
		case <-impl.buffer:
		}
	}
	// Discard whatever was still buffered.
	for {
		select {
		case <-impl.buffer:
			continue
		default:
		}
		break
	}
	impl.startEpoch()
}

// Stop the loading goroutines. Afterwards Next returns ErrLoaderStopped, or the load error that stopped
// the Loader earlier. It can be called more than once.
func (l *Loader) Stop() {
	impl := l.impl
	if impl == nil {
		return
	}
	impl.stop(nil)
	<-impl.epochFinished
}
