package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		global        string
		local         string
		flagHg        string
		flagWorkspace string
		want          Config
	}{
		"local overrides global": {
			global: "hg = \"/usr/bin/hg\"\n",
			local:  "hg = \"/opt/hg/bin/hg\"\n",
			want:   Config{Hg: "/opt/hg/bin/hg"},
		},
		"flags override everything": {
			global: "hg = \"/usr/bin/hg\"\n",
			local:  "hg = \"/opt/hg/bin/hg\"\n",
			flagHg: "/home/me/hg",
			want:   Config{Hg: "/home/me/hg"},
		},
		"keys merge across files": {
			global: "hg = \"/usr/bin/hg\"\n",
			local:  "workspace = \"/scratch/checkouts\"\n",
			want:   Config{Hg: "/usr/bin/hg", Workspace: "/scratch/checkouts"},
		},
		"only global config": {
			global: "workspace = \"/scratch/checkouts\"\n",
			want:   Config{Workspace: "/scratch/checkouts"},
		},
		"no config files": {
			want: Config{},
		},
		"workspace flag": {
			global:        "workspace = \"/scratch/checkouts\"\n",
			flagWorkspace: "/tmp/elsewhere",
			want:          Config{Workspace: "/tmp/elsewhere"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()

			globalPath := filepath.Join(dir, "global-config.toml")
			localPath := filepath.Join(dir, LocalConfigFile)

			if tc.global != "" {
				writeTestConfig(t, globalPath, tc.global)
			}
			if tc.local != "" {
				writeTestConfig(t, localPath, tc.local)
			}

			cfg, err := load(tc.flagHg, tc.flagWorkspace, globalPath, localPath)
			if err != nil {
				t.Fatalf("load() error = %v", err)
			}

			if *cfg != tc.want {
				t.Errorf("load() = %+v, want %+v", *cfg, tc.want)
			}
		})
	}
}

func writeTestConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
