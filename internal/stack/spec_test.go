package stack

import (
	"bytes"
	"strings"
	"testing"
)

func TestDefaultSpec_Invariants(t *testing.T) {
	spec := DefaultSpec(SpecConfig{CorpusDir: "/data/corpus"})

	if err := spec.Validate(); err != nil {
		t.Fatalf("default spec should validate: %v", err)
	}
	if len(spec.Services) != 3 {
		t.Fatalf("expected 3 services, got %d", len(spec.Services))
	}
	if spec.Network == "" {
		t.Fatal("expected a stack network")
	}

	ingester, ok := spec.Service("ingester")
	if !ok {
		t.Fatal("ingester service missing")
	}
	if ingester.Restart != RestartOnFailure {
		t.Errorf("ingester restart = %q, want %q", ingester.Restart, RestartOnFailure)
	}
	if len(ingester.Ports) != 0 {
		t.Errorf("ingester must not publish ports, got %v", ingester.Ports)
	}
	if len(ingester.Mounts) != 1 || ingester.Mounts[0].Source != "/data/corpus" || !ingester.Mounts[0].ReadOnly {
		t.Errorf("unexpected ingester mounts: %+v", ingester.Mounts)
	}

	api, _ := spec.Service("api")
	if api.Restart != RestartAlways {
		t.Errorf("api restart = %q, want %q", api.Restart, RestartAlways)
	}
	if len(api.Ports) != 1 || api.Ports[0] != (PortBinding{Host: 8000, Container: 8000}) {
		t.Errorf("unexpected api ports: %v", api.Ports)
	}

	app, _ := spec.Service("app")
	if app.Restart != RestartAlways {
		t.Errorf("app restart = %q, want %q", app.Restart, RestartAlways)
	}
	if len(app.Ports) != 1 || app.Ports[0] != (PortBinding{Host: 8501, Container: 8501}) {
		t.Errorf("unexpected app ports: %v", app.Ports)
	}
}

func TestDefaultSpec_EnvPerService(t *testing.T) {
	spec := DefaultSpec(SpecConfig{})

	ingester, _ := spec.Service("ingester")
	api, _ := spec.Service("api")
	app, _ := spec.Service("app")

	for _, svc := range []ServiceSpec{ingester, api} {
		if svc.Env["OPENSEARCH_ENDPOINT"] != "http://opensearch:9200" {
			t.Errorf("%s OPENSEARCH_ENDPOINT = %q", svc.Name, svc.Env["OPENSEARCH_ENDPOINT"])
		}
		if svc.Env["OPENSEARCH_INDEX"] != "webinar_pdf_index" {
			t.Errorf("%s OPENSEARCH_INDEX = %q", svc.Name, svc.Env["OPENSEARCH_INDEX"])
		}
		if _, ok := svc.Env["API_URL"]; ok {
			t.Errorf("%s must not carry app configuration", svc.Name)
		}
	}

	if app.Env["API_URL"] != "http://api:8000" {
		t.Errorf("app API_URL = %q", app.Env["API_URL"])
	}
	if app.Env["OLLAMA_URL"] != "http://ollama:11434" {
		t.Errorf("app OLLAMA_URL = %q", app.Env["OLLAMA_URL"])
	}
	if app.Env["MODEL_NAME"] != "qwen2:0.5b" {
		t.Errorf("app MODEL_NAME = %q", app.Env["MODEL_NAME"])
	}
	if _, ok := app.Env["OPENSEARCH_ENDPOINT"]; ok {
		t.Error("app must not carry index configuration")
	}
}

func TestStartOrder(t *testing.T) {
	spec := DefaultSpec(SpecConfig{})

	ordered, err := spec.StartOrder()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := make([]string, 0, len(ordered))
	for _, svc := range ordered {
		got = append(got, svc.Name)
	}
	want := []string{"ingester", "api", "app"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("start order = %v, want %v", got, want)
		}
	}
}

func TestValidate_UnknownDependency(t *testing.T) {
	spec := StackSpec{
		Name:    "s",
		Network: "s",
		Services: []ServiceSpec{
			{Name: "a", Image: "img", DependsOn: []string{"missing"}},
		},
	}
	if err := spec.Validate(); err == nil {
		t.Fatal("expected error for unknown dependency")
	}
}

func TestValidate_CircularDependency(t *testing.T) {
	spec := StackSpec{
		Name:    "s",
		Network: "s",
		Services: []ServiceSpec{
			{Name: "a", Image: "img", DependsOn: []string{"b"}},
			{Name: "b", Image: "img", DependsOn: []string{"a"}},
		},
	}
	err := spec.Validate()
	if err == nil || !strings.Contains(err.Error(), "circular") {
		t.Fatalf("expected circular dependency error, got %v", err)
	}
}

func TestValidate_DuplicateService(t *testing.T) {
	spec := StackSpec{
		Name:    "s",
		Network: "s",
		Services: []ServiceSpec{
			{Name: "a", Image: "img"},
			{Name: "a", Image: "img"},
		},
	}
	if err := spec.Validate(); err == nil {
		t.Fatal("expected error for duplicate service name")
	}
}

func TestValidate_BadRestartPolicy(t *testing.T) {
	spec := StackSpec{
		Name:     "s",
		Network:  "s",
		Services: []ServiceSpec{{Name: "a", Image: "img", Restart: "sometimes"}},
	}
	if err := spec.Validate(); err == nil {
		t.Fatal("expected error for unknown restart policy")
	}
}

func TestEnvList_Sorted(t *testing.T) {
	got := envList(map[string]string{"B": "2", "A": "1", "C": "3"})
	want := []string{"A=1", "B=2", "C=3"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("envList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDemuxLogs(t *testing.T) {
	frame := func(stream byte, payload string) []byte {
		b := []byte{stream, 0, 0, 0, 0, 0, 0, byte(len(payload))}
		return append(b, payload...)
	}

	src := bytes.NewBuffer(nil)
	src.Write(frame(1, "out line\n"))
	src.Write(frame(2, "err line\n"))
	src.Write(frame(1, "more out\n"))

	var out, errOut bytes.Buffer
	if err := demuxLogs(&out, &errOut, src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "out line\nmore out\n" {
		t.Errorf("stdout = %q", out.String())
	}
	if errOut.String() != "err line\n" {
		t.Errorf("stderr = %q", errOut.String())
	}
}
