package bfl

import (
	"math/rand"
	"runtime"
)

//Options holds the aggregation and forest settings.
type Options struct {
	rescale          float64
	disableBootstrap bool
	useJackknife     bool
	batched          bool
	workers          int
	observer         Observer
	rng              *rand.Rand
}

//Option is a configuration function.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		rescale:      1.0,
		useJackknife: true,
		workers:      runtime.GOMAXPROCS(0),
		observer:     nopObserver{},
		rng:          rand.New(rand.NewSource(0)),
	}
}

func newOptions(opts []Option) Options {
	o := defaultOptions()
	for _, f := range opts {
		f(&o)
	}
	return o
}

//Rescale multiplies the observational standard deviation, e.g. by a calibration ratio.
func Rescale(ratio float64) Option {
	return func(o *Options) {
		o.rescale = ratio
	}
}

//DisableBootstrap declares that members were trained without resampling: there is no valid
//observational dispersion and the mean uncertainty degenerates to the observational estimate.
func DisableBootstrap() Option {
	return func(o *Options) {
		o.disableBootstrap = true
	}
}

//UseJackknife toggles the jackknife estimators for the mean uncertainty. Without them the mean
//uncertainty falls back to the observational estimate and importance scores are unavailable.
func UseJackknife(use bool) Option {
	return func(o *Options) {
		o.useJackknife = use
	}
}

//Batched selects the matrix formulation of the uncertainty engine.
func Batched(batched bool) Option {
	return func(o *Options) {
		o.batched = batched
	}
}

//Workers bounds the number of goroutines used by forest fan-outs.
func Workers(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.workers = n
		}
	}
}

//WithObserver installs the receiver of rectification warnings.
func WithObserver(observer Observer) Option {
	return func(o *Options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

//TieBreaker sets the random source used to break classification vote ties.
func TieBreaker(rng *rand.Rand) Option {
	return func(o *Options) {
		if rng != nil {
			o.rng = rng
		}
	}
}
