package targets

import (
	"testing"

	"github.com/jbpuryear/dakka/internal/lexer"
	"github.com/jbpuryear/dakka/internal/vm"
	"github.com/jbpuryear/dakka/tests/fuzz/mutator"
)

func FuzzMutation(f *testing.F) {
	f.Add([]byte("var a = 1; while (a < 4) { a += 1; } return a;"))
	f.Add([]byte("global hp = 3; fun hit(n) { hp -= n; return hp <= 0; } hit(1);"))
	f.Add([]byte("for (var i = 0, 3) { spawn [x = i] (fun() { sleep 1; }); }"))
	LoadCorpus(f, "../../../examples")

	f.Fuzz(func(t *testing.T, data []byte) {
		// 1. Scan the seed
		toks, err := lexer.Scan(string(data))
		if err != nil {
			return
		}

		// 2. Mutate the token stream
		// Use a deterministic seed based on the input data to ensure reproducibility
		seed := int64(len(data))
		for _, b := range data {
			seed = seed*31 + int64(b)
		}
		m := mutator.NewTokenMutator(seed)

		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("compiler panic on mutated %q: %v", data, r)
			}
		}()

		for i := 0; i < 4; i++ {
			toks = m.Mutate(toks)

			// 3. Compile the tokens directly and through their rendered text
			_, _ = vm.CompileTokens(toks, vm.CompileOptions{})
			_, _ = vm.Compile(mutator.Render(toks))
		}
	})
}
