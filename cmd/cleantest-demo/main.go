package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum-optimism/infra/cleantest"
	"github.com/ethereum-optimism/infra/cleantest/registry"
	"github.com/ethereum-optimism/infra/cleantest/unit"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

// settings is process-wide state that some demo tests overwrite
var settings = struct {
	sync.Mutex
	values map[string]string
}{values: map[string]string{"network": "mainnet"}}

func setSetting(key, value string) {
	settings.Lock()
	defer settings.Unlock()
	settings.values[key] = value
}

func setting(key string) string {
	settings.Lock()
	defer settings.Unlock()
	return settings.values[key]
}

func register(reg *registry.Registry) error {
	return reg.RegisterCases(
		unit.Isolate(unit.CaseType{
			Name: "demo.SettingsOverrideTests",
			SetUp: func(t *unit.T) {
				setSetting("network", "devnet")
			},
			Methods: []unit.Method{
				{Name: "TestOverrideApplies", Fn: func(t *unit.T) {
					if got := setting("network"); got != "devnet" {
						t.Fatalf("network = %q, want devnet", got)
					}
				}},
				{Name: "TestEnvironmentPatched", Fn: func(t *unit.T) {
					if err := os.Setenv("DEMO_NETWORK", "devnet"); err != nil {
						t.Fatal(err)
					}
					t.Logf("patched DEMO_NETWORK in pid %d", os.Getpid())
				}},
			},
		}),
		unit.CaseType{
			Name: "demo.SettingsTests",
			Methods: []unit.Method{
				{Name: "TestDefaultNetwork", Fn: func(t *unit.T) {
					if got := setting("network"); got != "mainnet" {
						t.Errorf("network = %q, want mainnet", got)
					}
				}},
				{Name: "TestEnvironmentClean", Fn: func(t *unit.T) {
					if v := os.Getenv("DEMO_NETWORK"); v != "" {
						t.Errorf("DEMO_NETWORK leaked into the parent: %q", v)
					}
				}},
				unit.IsolateMethod(unit.Method{Name: "TestUppercaseNetwork", Fn: func(t *unit.T) {
					setSetting("network", strings.ToUpper(setting("network")))
					if got := setting("network"); got != "MAINNET" {
						t.Errorf("network = %q, want MAINNET", got)
					}
				}}),
			},
		},
	)
}

func main() {
	cleantest.Main("cleantest-demo", fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate), register)
}
