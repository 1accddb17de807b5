package ember

import (
	"bytes"
	"strings"
	"testing"
)

func TestInterpretPrintsOutput(t *testing.T) {
	var out bytes.Buffer
	v := NewVM(&out)

	if res := v.Interpret(`print 1 + 2;`); res != OK {
		t.Fatalf("expected OK, got %v (compile err: %v)", res, v.LastCompileError())
	}
	if got := strings.TrimSpace(out.String()); got != "3" {
		t.Fatalf("expected 3, got %q", got)
	}
}

func TestInterpretPersistsGlobalsAcrossCalls(t *testing.T) {
	var out bytes.Buffer
	v := NewVM(&out)

	if res := v.Interpret(`var greeting = "hi";`); res != OK {
		t.Fatalf("expected OK, got %v", res)
	}
	if res := v.Interpret(`print greeting;`); res != OK {
		t.Fatalf("expected OK, got %v", res)
	}
	if got := strings.TrimSpace(out.String()); got != "hi" {
		t.Fatalf("expected hi, got %q", got)
	}
}

func TestInterpretReportsCompileError(t *testing.T) {
	var out bytes.Buffer
	v := NewVM(&out)

	res := v.Interpret(`var x = ;`)
	if res != CompileError {
		t.Fatalf("expected CompileError, got %v", res)
	}
	if v.LastCompileError() == nil {
		t.Fatal("expected a non-nil compile error")
	}
}

func TestInterpretReportsRuntimeError(t *testing.T) {
	var out bytes.Buffer
	v := NewVM(&out)

	res := v.Interpret(`print undefinedThing;`)
	if res != RuntimeError {
		t.Fatalf("expected RuntimeError, got %v", res)
	}
	rerr := v.LastRuntimeError()
	if rerr == nil {
		t.Fatal("expected a non-nil runtime error")
	}
	if !strings.Contains(rerr.Message, "Undefined variable 'undefinedThing'") {
		t.Fatalf("unexpected message: %s", rerr.Message)
	}
}

func TestInterpretOnlyClockIsPredefined(t *testing.T) {
	var out bytes.Buffer
	v := NewVM(&out)

	if res := v.Interpret(`print clock() >= 0;`); res != OK {
		t.Fatalf("expected OK, got %v (runtime err: %v)", res, v.LastRuntimeError())
	}
	if got := strings.TrimSpace(out.String()); got != "true" {
		t.Fatalf("expected true, got %q", got)
	}

	if res := v.Interpret(`print type;`); res != RuntimeError {
		t.Fatalf("expected RuntimeError for undefined global type, got %v", res)
	}

	out.Reset()
	src := `var type = "mine"; print type;`
	if res := v.Interpret(src); res != OK {
		t.Fatalf("expected OK, got %v (compile err: %v)", res, v.LastCompileError())
	}
	if got := strings.TrimSpace(out.String()); got != "mine" {
		t.Fatalf("expected mine, got %q", got)
	}
}

func TestInterpretClassesAndClosures(t *testing.T) {
	var out bytes.Buffer
	v := NewVM(&out)

	src := `
		class Counter {
			init() {
				this.count = 0;
			}
			increment() {
				this.count = this.count + 1;
				return this.count;
			}
		}

		var c = Counter();
		c.increment();
		c.increment();
		print c.increment();
	`
	if res := v.Interpret(src); res != OK {
		t.Fatalf("expected OK, got %v (runtime err: %v)", res, v.LastRuntimeError())
	}
	if got := strings.TrimSpace(out.String()); got != "3" {
		t.Fatalf("expected 3, got %q", got)
	}
}
