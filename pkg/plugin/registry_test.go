package plugin

import (
	"errors"
	"testing"

	"github.com/skeinflow/skein/pkg/types"
)

type stubChannel struct{ name string }

func (c *stubChannel) CreateTask(taskCtx *types.TaskExecutionContext) (Task, error) {
	return nil, errors.New("stub")
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	shell := &stubChannel{name: "shell"}
	r.Register("SHELL", shell)

	got, err := r.Get("SHELL")
	if err != nil {
		t.Fatalf("Get(SHELL) error = %v", err)
	}
	if got != shell {
		t.Errorf("Get(SHELL) = %v, want the registered channel", got)
	}
}

func TestRegistryGetUnknownType(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("FLINK")
	if !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("Get(FLINK) error = %v, want ErrChannelNotFound", err)
	}
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	first := &stubChannel{name: "first"}
	second := &stubChannel{name: "second"}
	r.Register("SHELL", first)
	r.Register("SHELL", second)

	got, err := r.Get("SHELL")
	if err != nil {
		t.Fatalf("Get(SHELL) error = %v", err)
	}
	if got != second {
		t.Errorf("Get(SHELL) = %v, want the replacement channel", got)
	}
}

func TestRegistryTypes(t *testing.T) {
	r := NewRegistry()
	r.Register("SHELL", &stubChannel{})
	r.Register("PYTHON", &stubChannel{})

	got := r.Types()
	if len(got) != 2 {
		t.Fatalf("Types() = %v, want 2 entries", got)
	}
	seen := map[string]bool{}
	for _, typ := range got {
		seen[typ] = true
	}
	if !seen["SHELL"] || !seen["PYTHON"] {
		t.Errorf("Types() = %v, want SHELL and PYTHON", got)
	}
}
