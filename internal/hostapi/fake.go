package hostapi

import "context"

// Fake is a minimal in-memory Host used by tests and local development
// when no real host editor is attached.
type Fake struct {
	CompileResults []CompileResult
	LogRecords     []LogRecord
	Objects        []GameObjectRef
	Tree           HierarchyNode
	TestSummary    TestResultSummary
	MenuCalls      []string
	ConsoleCleared int
}

func (f *Fake) Compile(ctx context.Context, forceRecompile bool) (CompileResult, error) {
	if len(f.CompileResults) == 0 {
		return CompileResult{}, nil
	}
	r := f.CompileResults[0]
	f.CompileResults = f.CompileResults[1:]
	return r, nil
}

func (f *Fake) Logs(ctx context.Context, filter LogFilter) ([]LogRecord, error) {
	return f.LogRecords, nil
}

func (f *Fake) ClearConsole(ctx context.Context) error {
	f.ConsoleCleared++
	return nil
}

func (f *Fake) FindGameObjects(ctx context.Context, criteria SearchCriteria) ([]GameObjectRef, error) {
	return f.Objects, nil
}

func (f *Fake) Hierarchy(ctx context.Context, opts HierarchyOptions) (HierarchyNode, error) {
	return f.Tree, nil
}

func (f *Fake) RunTests(ctx context.Context, filter TestFilter) (TestResultSummary, error) {
	return f.TestSummary, nil
}

func (f *Fake) ExecuteMenuItem(ctx context.Context, path string) error {
	f.MenuCalls = append(f.MenuCalls, path)
	return nil
}

var _ Host = (*Fake)(nil)
