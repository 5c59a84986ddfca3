package targets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jbpuryear/dakka/internal/config"
	"github.com/jbpuryear/dakka/internal/vm"
	"github.com/sirupsen/logrus"
)

// maxTicks bounds how long a fuzzed script may keep threads sleeping.
const maxTicks = 64

// newScheduler returns a scheduler that logs nothing and swallows script
// errors, with a small property-map type for spawn.
func newScheduler() *vm.Scheduler {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	s := vm.NewScheduler(vm.Options{Logger: logger, MaxFrames: 256})
	s.OnError(func(vm.Target, error) {})
	s.AddType(config.DefaultTypeKey, vm.PropertyMapFactory(map[string]vm.Value{
		"x": vm.NumberVal(0),
		"y": vm.NumberVal(0),
	}))
	return s
}

// runToCompletion starts fn and ticks until no thread is left or the tick
// budget runs out.
func runToCompletion(s *vm.Scheduler, fn *vm.CompiledFunction) {
	if _, err := s.Run(fn, vm.RunOptions{}); err != nil {
		return
	}
	for i := 0; i < maxTicks && s.ThreadCount() > 0; i++ {
		s.Update(1)
	}
	s.KillAll()
}

// LoadCorpus loads all script files from the given directories and adds them to the fuzz corpus.
func LoadCorpus(f *testing.F, dirs ...string) {
	for _, dir := range dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && config.HasSourceExt(path) {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				f.Add(data)
			}
			return nil
		})
		if err != nil {
			// It's okay if we can't load examples, just log it
			f.Logf("Failed to load corpus from %s: %v", dir, err)
		}
	}
}
