package sandbox

import "testing"

func TestCheckDisabledAndFullAccessSkipWalk(t *testing.T) {
	src := `package main
import "os"
func main() { os.RemoveAll("/") }
`
	for _, level := range []Level{Disabled, FullAccess} {
		res, err := Check(src, level)
		if err != nil {
			t.Fatalf("Check(%v) error = %v", level, err)
		}
		if !res.Valid() {
			t.Errorf("Check(%v) = %+v, want no violations", level, res.Violations)
		}
	}
}

func TestCheckRestrictedAllowsUnusedDeniedImport(t *testing.T) {
	src := `package main
import "os"
func main() {}
`
	res, err := Check(src, Restricted)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.Valid() {
		t.Errorf("import with no usage site must compile clean, got %+v", res.Violations)
	}
}

func TestCheckRestrictedFlagsDangerousCall(t *testing.T) {
	src := `package main
import "os"
func main() { os.Remove("x") }
`
	res, _ := Check(src, Restricted)
	found := false
	for _, v := range res.Violations {
		if v.Kind == KindDangerousCall && v.APIName == "os.Remove" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected dangerous_call violation for os.Remove, got %+v", res.Violations)
	}
}

func TestCheckRestrictedFlagsDangerousType(t *testing.T) {
	src := `package main
import "os"
func handle(p *os.Process) {}
func main() {}
`
	res, _ := Check(src, Restricted)
	found := false
	for _, v := range res.Violations {
		if v.Kind == KindDangerousType && v.APIName == "os.Process" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected dangerous_type violation for os.Process, got %+v", res.Violations)
	}
}

func TestCheckRestrictedAllowsAllowlistedImport(t *testing.T) {
	src := `package main
import (
	"fmt"
	"strings"
)
func main() { fmt.Println(strings.ToUpper("ok")) }
`
	res, err := Check(src, Restricted)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.Valid() {
		t.Errorf("expected no violations, got %+v", res.Violations)
	}
}

func TestAdmittedDenyDominatesAllow(t *testing.T) {
	// os/exec is never allow-listed but exercise the dominance rule
	// directly: a deny-prefixed path is never admitted even though its
	// parent "os" could otherwise be read as a project-relative name.
	if Admitted("os/exec") {
		t.Error("os/exec must not be admitted under Restricted")
	}
	if !Admitted("fmt") {
		t.Error("fmt must be admitted under Restricted")
	}
	if !Admitted("github.com/brennhill/editor-bridge/internal/hostapi") {
		t.Error("hostapi must be admitted as user-project scope")
	}
}

func TestCheckInvalidSourceReturnsError(t *testing.T) {
	_, err := Check("this is not go code {{{", Restricted)
	if err == nil {
		t.Fatal("expected a parse error")
	}
}
